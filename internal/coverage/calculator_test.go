package coverage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/brightpitch/fixtureflow/internal/domain/coveragestatus"
)

func TestCompute_FreshnessDecaysWithLag(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Inputs{
		Now:           now,
		MaxUpdatedAt:  now.Add(-30 * time.Minute),
		MaxLagMinutes: 60,
		CoreCount:     10,
		RawCount:      10,
	}
	result := Compute(in)
	if result.FreshnessCoverage != 50 {
		t.Fatalf("expected freshness 50 at half the max lag, got %v", result.FreshnessCoverage)
	}
}

func TestCompute_FreshnessNeverNegative(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Inputs{
		Now:           now,
		MaxUpdatedAt:  now.Add(-10 * time.Hour),
		MaxLagMinutes: 60,
	}
	result := Compute(in)
	if result.FreshnessCoverage != 0 {
		t.Fatalf("expected freshness clamped to 0, got %v", result.FreshnessCoverage)
	}
	if result.Overall < 0 {
		t.Fatalf("overall must never be negative, got %v", result.Overall)
	}
}

func TestCompute_PipelineCoverage_HundredWhenRawEmpty(t *testing.T) {
	result := Compute(Inputs{Now: time.Now(), CoreCount: 0, RawCount: 0})
	if result.PipelineCoverage != 100 {
		t.Fatalf("expected pipeline coverage 100 when raw is empty, got %v", result.PipelineCoverage)
	}
}

func TestCompute_CountCoverage_NilWhenNotConfigured(t *testing.T) {
	result := Compute(Inputs{Now: time.Now(), ActualCount: 5})
	if result.CountCoverage != nil {
		t.Fatalf("expected count coverage nil when no expected count configured, got %v", *result.CountCoverage)
	}
}

func TestCompute_OverallUsesConfiguredWeights(t *testing.T) {
	expected := 10
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Inputs{
		Now:           now,
		MaxUpdatedAt:  now,
		MaxLagMinutes: 60,
		CoreCount:     10,
		RawCount:      10,
		ActualCount:   10,
		ExpectedCount: &expected,
	}
	result := Compute(in)
	if result.FreshnessCoverage != 100 || result.PipelineCoverage != 100 || *result.CountCoverage != 100 {
		t.Fatalf("expected all-100 components, got %+v", result)
	}
	if result.Overall != 100 {
		t.Fatalf("expected overall 100 when every dimension is maxed, got %v", result.Overall)
	}
}

func TestCompute_RenormalisesWhenCountNotApplicable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Inputs{
		Now:           now,
		MaxUpdatedAt:  now,
		MaxLagMinutes: 60,
		CoreCount:     10,
		RawCount:      20,
	}
	result := Compute(in)
	wantOverall := 100*weightFreshnessNoCount + 50*weightPipelineNoCount
	if diff := result.Overall - wantOverall; diff > 0.0001 || diff < -0.0001 {
		t.Fatalf("expected renormalised overall %v, got %v", wantOverall, result.Overall)
	}
}

// TestCompute_NoMatchesScheduledScenario is spec scenario 8: a league with
// no scheduled fixtures in the window and actual_count > 0 must not have
// its freshness drift counted as a failure.
func TestCompute_NoMatchesScheduledScenario(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	zero := 0
	in := Inputs{
		Now:           now,
		MaxUpdatedAt:  now.Add(-72 * time.Hour),
		MaxLagMinutes: 60,
		CoreCount:     5,
		RawCount:      5,
		ActualCount:   5,
		ExpectedCount: &zero,
	}
	result := Compute(in)
	if !result.Flags["no_matches_scheduled"] {
		t.Fatalf("expected no_matches_scheduled flag to be set")
	}
	if result.FreshnessCoverage != 100 {
		t.Fatalf("expected freshness not counted as a failure, got %v", result.FreshnessCoverage)
	}
}

type fakeCoverageStatusRepo struct {
	replaced coveragestatus.Status
}

func (f *fakeCoverageStatusRepo) Replace(ctx context.Context, s coveragestatus.Status) error {
	f.replaced = s
	return nil
}
func (f *fakeCoverageStatusRepo) Get(ctx context.Context, leagueID int64, season int, endpoint string) (coveragestatus.Status, bool, error) {
	return f.replaced, true, nil
}

func TestRecorder_RecordReplacesRow(t *testing.T) {
	repo := &fakeCoverageStatusRepo{}
	recorder := NewRecorder(repo)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := recorder.Record(context.Background(), 8, 2026, "/fixtures", Inputs{
		Now:           now,
		MaxUpdatedAt:  now,
		MaxLagMinutes: 60,
		CoreCount:     10,
		RawCount:      10,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if repo.replaced.LeagueID != 8 || repo.replaced.Endpoint != "/fixtures" {
		t.Fatalf("unexpected replaced row: %+v", repo.replaced)
	}

	var flags map[string]bool
	if err := json.Unmarshal(repo.replaced.FlagsJSON, &flags); err != nil {
		t.Fatalf("unmarshal flags: %v", err)
	}
	if len(flags) != 0 {
		t.Fatalf("expected no flags for a routine coverage row, got %v", flags)
	}
}
