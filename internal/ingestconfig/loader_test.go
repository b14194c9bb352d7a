package ingestconfig

import (
	"strings"
	"testing"

	"github.com/brightpitch/fixtureflow/internal/domain/league"
	"github.com/brightpitch/fixtureflow/internal/scope"
)

const baseDocument = `
upstream:
  base_url: https://v3.football.api-sports.io
  api_key_env: FOOTBALL_API_KEY
  timeout: 10s
  retry:
    max_attempts: 3
    backoff_base: 500ms
    backoff_max: 30s

rate_limit:
  per_minute_capacity: 300
  emergency_stop_threshold: 50

tracked_leagues:
  - id: 39
    season: 2025
    name: Premier League
  - id: 61
    season: 2025
    name: Ligue 1

scope_policy:
  league_type_defaults:
    Cup:
      - /standings
      - /players/topscorers
      - /teams/statistics
  overrides:
    - league_id: 39
      season: 2025
      endpoint: /standings
      in_scope: false

coverage_targets:
  - endpoint: /fixtures
    max_lag_minutes: 60
    expected_count: 10

jobs:
  static:
    - name: bootstrap-leagues
      endpoint: /leagues
      interval: {type: cron, cron: "0 0 3 * * *"}
  daily:
    - name: daily-fixtures
      endpoint: /fixtures
      params: {date: "{today_utc}"}
      interval: {type: cron, cron: "0 */5 * * * *"}
  backfill:
    - name: backfill-fixtures
      endpoint: /fixtures
      interval: {type: interval, seconds: 60}
      mode: {window_days: 30, max_tasks_per_run: 5}
  reconcile:
    - name: auto-finish
      interval: {type: cron, cron: "0 0 * * * *"}
      mode: {threshold_hours: 3, try_fetch_first: true}

concurrency:
  transform_workers: 8

scheduler:
  timezone: UTC
`

func TestLoadString_ParsesWellFormedDocument(t *testing.T) {
	snap, err := LoadString(baseDocument)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if snap.Upstream.BaseURL != "https://v3.football.api-sports.io" {
		t.Fatalf("base url = %q", snap.Upstream.BaseURL)
	}
	if len(snap.TrackedLeagues) != 2 {
		t.Fatalf("tracked leagues = %d, want 2", len(snap.TrackedLeagues))
	}
	if len(snap.Jobs) != 4 {
		t.Fatalf("jobs = %d, want 4", len(snap.Jobs))
	}
}

func TestLoadString_RejectsUnknownKeys(t *testing.T) {
	doc := baseDocument + "\nbogus_top_level_key: true\n"
	if _, err := LoadString(doc); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoadString_RejectsMissingRequiredField(t *testing.T) {
	doc := strings.Replace(baseDocument, "base_url: https://v3.football.api-sports.io", "", 1)
	if _, err := LoadString(doc); err == nil {
		t.Fatal("expected validation error for missing base_url")
	}
}

func TestLoadString_RejectsCronTriggerMissingSpec(t *testing.T) {
	doc := strings.Replace(baseDocument,
		`interval: {type: cron, cron: "0 0 3 * * *"}`,
		`interval: {type: cron}`, 1)
	if _, err := LoadString(doc); err == nil {
		t.Fatal("expected error for cron trigger with no cron spec")
	}
}

func TestLoadString_RejectsIntervalTriggerWithNonPositiveSeconds(t *testing.T) {
	doc := strings.Replace(baseDocument,
		`interval: {type: interval, seconds: 60}`,
		`interval: {type: interval, seconds: 0}`, 1)
	if _, err := LoadString(doc); err == nil {
		t.Fatal("expected error for interval trigger with seconds <= 0")
	}
}

func TestResolve_StaticJobInheritsTrackedLeaguesFromDaily(t *testing.T) {
	snap, err := LoadString(baseDocument)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	static := snap.JobsByCategory(JobCategoryStatic)
	if len(static) != 1 {
		t.Fatalf("static jobs = %d, want 1", len(static))
	}
	ids := static[0].TrackedLeagueIDs()
	if len(ids) != 2 || ids[0] != 39 || ids[1] != 61 {
		t.Fatalf("inherited tracked league ids = %v", ids)
	}
}

func TestResolve_InfersSeasonWhenAllTrackedLeaguesShareOne(t *testing.T) {
	snap, err := LoadString(baseDocument)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	daily := snap.JobsByCategory(JobCategoryDaily)
	season, ok := daily[0].Season()
	if !ok || season != 2025 {
		t.Fatalf("season = %d, ok = %v, want 2025/true", season, ok)
	}
}

func TestResolve_SeasonUnresolvedWhenTrackedLeaguesDiffer(t *testing.T) {
	doc := strings.Replace(baseDocument, "    season: 2025\n    name: Ligue 1", "    season: 2024\n    name: Ligue 1", 1)
	snap, err := LoadString(doc)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	daily := snap.JobsByCategory(JobCategoryDaily)
	_, ok := daily[0].Season()
	if ok {
		t.Fatal("expected season to be unresolved when tracked leagues disagree")
	}
}

func TestJobSpec_IsEnabledDefaultsTrue(t *testing.T) {
	job := JobSpec{}
	if !job.IsEnabled() {
		t.Fatal("expected job to default to enabled")
	}
}

func TestMode_TypedAccessorsFallBackOnMissingOrWrongType(t *testing.T) {
	m := Mode{"window_days": 14, "try_fetch_first": true, "cooldown": "6h"}
	if got := m.Int("window_days", 30); got != 14 {
		t.Fatalf("Int = %d, want 14", got)
	}
	if got := m.Int("missing", 30); got != 30 {
		t.Fatalf("Int fallback = %d, want 30", got)
	}
	if got := m.Bool("try_fetch_first", false); !got {
		t.Fatal("Bool = false, want true")
	}
	if got := m.Duration("cooldown", 0); got.String() != "6h0m0s" {
		t.Fatalf("Duration = %v", got)
	}
}

func TestSnapshot_BuildScopePolicyAppliesOverridesAndDefaults(t *testing.T) {
	snap, err := LoadString(baseDocument)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	policy := snap.BuildScopePolicy()
	decision := policy.Decide(39, 2025, scope.Endpoint("/standings"), league.TypeCup)
	if decision.InScope {
		t.Fatalf("expected /standings out of scope for cup override, got %+v", decision)
	}
}

func TestSnapshot_CoverageTargetForLooksUpByEndpoint(t *testing.T) {
	snap, err := LoadString(baseDocument)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	target, ok := snap.CoverageTargetFor("/fixtures")
	if !ok || target.MaxLagMinutes != 60 {
		t.Fatalf("target = %+v, ok = %v", target, ok)
	}
	if _, ok := snap.CoverageTargetFor("/unknown"); ok {
		t.Fatal("expected no target for unconfigured endpoint")
	}
}

func TestJobSpec_TriggerConvertsIntervalAndCron(t *testing.T) {
	cronJob := JobSpec{Interval: Interval{Type: "cron", Cron: "0 0 * * * *"}}
	if cronJob.Trigger().Cron != "0 0 * * * *" {
		t.Fatalf("cron trigger = %+v", cronJob.Trigger())
	}

	intervalJob := JobSpec{Interval: Interval{Type: "interval", Seconds: 60}}
	if intervalJob.Trigger().Interval.Seconds() != 60 {
		t.Fatalf("interval trigger = %+v", intervalJob.Trigger())
	}
}
