package ingestconfig

import "time"

// TrackedLeague names one (league, season) pair the pipeline actively
// follows (§3: tracked leagues drive daily/backfill/reconcile job scope).
type TrackedLeague struct {
	ID     int64  `yaml:"id" validate:"required"`
	Season int    `yaml:"season" validate:"required"`
	Name   string `yaml:"name"`
}

// RetryPolicy bounds the Upstream Client's backoff on rate_limited/
// server_error outcomes (§4.3).
type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts" validate:"required,gte=1"`
	BackoffBase time.Duration `yaml:"backoff_base" validate:"required,gt=0"`
	BackoffMax  time.Duration `yaml:"backoff_max" validate:"required,gtfield=BackoffBase"`
}

// Upstream configures the HTTP client (§4.3, §6.1, §6.4).
type Upstream struct {
	BaseURL   string        `yaml:"base_url" validate:"required,url"`
	APIKeyEnv string        `yaml:"api_key_env" validate:"required"`
	Timeout   time.Duration `yaml:"timeout" validate:"required,gt=0"`
	Retry     RetryPolicy   `yaml:"retry" validate:"required"`
}

// RateLimit configures the Rate Governor (§4.2).
type RateLimit struct {
	PerMinuteCapacity      int `yaml:"per_minute_capacity" validate:"required,gte=1"`
	EmergencyStopThreshold int `yaml:"emergency_stop_threshold" validate:"gte=0"`
}

// ScopeOverride forces an endpoint in or out of scope for one
// (league, season) pair, taking precedence over the league-type default
// (§4.8 step 2).
type ScopeOverride struct {
	LeagueID int64  `yaml:"league_id" validate:"required"`
	Season   int    `yaml:"season" validate:"required"`
	Endpoint string `yaml:"endpoint" validate:"required"`
	InScope  bool   `yaml:"in_scope"`
}

// ScopePolicyConfig configures league-type defaults and overrides (§4.8
// steps 2-3). LeagueTypeDefaults maps a league type name ("cup") to the
// set of endpoints disabled for that type.
type ScopePolicyConfig struct {
	LeagueTypeDefaults map[string][]string `yaml:"league_type_defaults"`
	Overrides          []ScopeOverride     `yaml:"overrides"`
}

// CoverageTarget names the expected-count and freshness budget for one
// endpoint (§4.7). ExpectedCount is nil when count coverage does not
// apply to this endpoint.
type CoverageTarget struct {
	Endpoint      string  `yaml:"endpoint" validate:"required"`
	MaxLagMinutes float64 `yaml:"max_lag_minutes" validate:"required,gt=0"`
	ExpectedCount *int    `yaml:"expected_count"`
}

// Interval is a job's trigger: either a cron expression or a fixed
// interval in seconds (§4.1 `interval.type ∈ {cron, interval}`).
type Interval struct {
	Type    string `yaml:"type" validate:"required,oneof=cron interval"`
	Cron    string `yaml:"cron"`
	Seconds int    `yaml:"seconds"`
}

// Filters narrows a job's (league, season) scope away from the globally
// tracked set (§4.1 `filters.tracked_leagues`).
type Filters struct {
	TrackedLeagueIDs []int64 `yaml:"tracked_leagues"`
}

// Mode carries job-local knobs whose shape varies per job category
// (batch size, window_days, try_fetch_first, ...). Kept as a free-form
// map and read through the typed accessors below rather than given a
// fixed struct, since §4.1 documents `mode.*` as an open-ended bag.
type Mode map[string]any

func (m Mode) Int(key string, fallback int) int {
	v, ok := m[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func (m Mode) Bool(key string, fallback bool) bool {
	v, ok := m[key]
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

func (m Mode) Duration(key string, fallback time.Duration) time.Duration {
	v, ok := m[key]
	if !ok {
		return fallback
	}
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return fallback
		}
		return parsed
	case int:
		return time.Duration(d) * time.Second
	case float64:
		return time.Duration(d) * time.Second
	default:
		return fallback
	}
}

// JobCategory is the cadence partition a job definition lives in (§4.1,
// §6.4: "job definitions partitioned by cadence").
type JobCategory string

const (
	JobCategoryStatic    JobCategory = "static"
	JobCategoryDaily     JobCategory = "daily"
	JobCategoryBackfill  JobCategory = "backfill"
	JobCategoryReconcile JobCategory = "reconcile"
)

// JobSpec is one declared job, regardless of category (§4.1's table of
// recognized knobs).
type JobSpec struct {
	Category JobCategory       `yaml:"-"`
	Name     string            `yaml:"name" validate:"required"`
	Enabled  *bool             `yaml:"enabled"`
	Endpoint string            `yaml:"endpoint"`
	Params   map[string]string `yaml:"params"`
	Interval Interval          `yaml:"interval" validate:"required"`
	Filters  Filters           `yaml:"filters"`
	Mode     Mode              `yaml:"mode"`

	// resolvedTrackedLeagueIDs is filled in during Resolve(): the job's
	// explicit Filters.TrackedLeagueIDs if set, else inherited per the
	// category rules in §4.1.
	resolvedTrackedLeagueIDs []int64
	resolvedSeason           int
	seasonResolved           bool
}

// IsEnabled reports whether the job should be scheduled; jobs default to
// enabled when the key is omitted.
func (j JobSpec) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// TrackedLeagueIDs returns the job's resolved league scope. Only valid
// after Resolve().
func (j JobSpec) TrackedLeagueIDs() []int64 {
	return j.resolvedTrackedLeagueIDs
}

// Season returns the job's inferred season and whether one could be
// determined (§4.1: "when it omits season, infer only if safe").
func (j JobSpec) Season() (int, bool) {
	return j.resolvedSeason, j.seasonResolved
}

// Concurrency bounds the CPU-bound worker pools (§5).
type Concurrency struct {
	TransformWorkers int `yaml:"transform_workers" validate:"required,gte=1"`
}

// SchedulerConfig carries deployment knobs for trigger evaluation (§6.4:
// "scheduler timezone (cron evaluation only - storage remains UTC)").
type SchedulerConfig struct {
	TimezoneName string `yaml:"timezone"`
}

// document is the raw shape decoded straight from YAML, before
// derived-field resolution.
type document struct {
	Upstream       Upstream          `yaml:"upstream" validate:"required"`
	RateLimit      RateLimit         `yaml:"rate_limit" validate:"required"`
	TrackedLeagues []TrackedLeague   `yaml:"tracked_leagues" validate:"required,dive"`
	ScopePolicy    ScopePolicyConfig `yaml:"scope_policy"`
	CoverageTargets []CoverageTarget `yaml:"coverage_targets"`
	Jobs           struct {
		Static    []JobSpec `yaml:"static"`
		Daily     []JobSpec `yaml:"daily"`
		Backfill  []JobSpec `yaml:"backfill"`
		Reconcile []JobSpec `yaml:"reconcile"`
	} `yaml:"jobs"`
	Concurrency Concurrency     `yaml:"concurrency" validate:"required"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
}

// Snapshot is the fully resolved, immutable configuration the rest of the
// pipeline reads from (§4.1: "emits a validated, immutable configuration
// snapshot"). Construct one via Load.
type Snapshot struct {
	Upstream        Upstream
	RateLimit       RateLimit
	TrackedLeagues  []TrackedLeague
	ScopePolicy     ScopePolicyConfig
	CoverageTargets []CoverageTarget
	Jobs            []JobSpec
	Concurrency     Concurrency
	Scheduler       SchedulerConfig
}

// JobsByCategory returns only the jobs declared under the given cadence.
func (s Snapshot) JobsByCategory(category JobCategory) []JobSpec {
	out := make([]JobSpec, 0, len(s.Jobs))
	for _, j := range s.Jobs {
		if j.Category == category {
			out = append(out, j)
		}
	}
	return out
}
