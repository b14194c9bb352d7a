// Package coverage computes the three coverage dimensions of §4.7 and
// their weighted overall score, and persists the result to the MART
// coverage table.
package coverage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/brightpitch/fixtureflow/internal/domain/coveragestatus"
)

// Weights when every dimension is available.
const (
	weightCount     = 0.50
	weightFreshness = 0.30
	weightPipeline  = 0.20
)

// Renormalised weights when count coverage is not applicable (DESIGN.md
// open-question resolution: proportionally redistribute count's weight
// rather than silently down-weighting the metric).
const (
	weightFreshnessNoCount = weightFreshness / (weightFreshness + weightPipeline)
	weightPipelineNoCount  = weightPipeline / (weightFreshness + weightPipeline)
)

// Inputs are the raw counts and timestamps a caller gathers for one
// (league, season, endpoint) tuple before computing coverage.
type Inputs struct {
	Now time.Time

	// MaxUpdatedAt is the latest updated_at among CORE rows for this
	// tuple; zero means there are no rows at all.
	MaxUpdatedAt  time.Time
	MaxLagMinutes float64

	// CoreCount/RawCount are counts within the trailing window (default
	// 24h, chosen by the caller).
	CoreCount int
	RawCount  int

	// ActualCount is the current CORE row count for this tuple.
	ActualCount int
	// ExpectedCount is nil when no expected count is configured for this
	// endpoint (count coverage is then not-applicable).
	ExpectedCount *int
}

// Result is the computed coverage row, minus the identity fields the
// caller already knows (league, season, endpoint).
type Result struct {
	CountCoverage     *float64
	FreshnessCoverage float64
	PipelineCoverage  float64
	Overall           float64
	LagMinutes        float64
	Flags             map[string]bool
}

// Compute derives the three coverage dimensions and their weighted mean.
// It never emits a negative metric and never silently masks a genuine
// pipeline gap: pipeline coverage is always computed from the real
// core/raw ratio, even when freshness is suppressed by
// no_matches_scheduled.
func Compute(in Inputs) Result {
	lagMinutes := 0.0
	noScheduled := in.ExpectedCount != nil && *in.ExpectedCount == 0 && in.ActualCount > 0

	var freshness float64
	switch {
	case noScheduled:
		// Nothing is expected to be live right now; a stale max(updated_at)
		// is not a freshness failure (§4.7, §8 scenario 8).
		freshness = 100
	case in.MaxUpdatedAt.IsZero():
		freshness = 0
	default:
		lagMinutes = in.Now.Sub(in.MaxUpdatedAt).Minutes()
		freshness = freshnessFromLag(lagMinutes, in.MaxLagMinutes)
	}

	pipeline := pipelineCoverage(in.CoreCount, in.RawCount)

	var count *float64
	if in.ExpectedCount != nil {
		c := countCoverage(in.ActualCount, *in.ExpectedCount)
		count = &c
	}

	overall := weightedMean(count, freshness, pipeline)

	flags := map[string]bool{}
	if noScheduled {
		flags["no_matches_scheduled"] = true
	}

	return Result{
		CountCoverage:     count,
		FreshnessCoverage: freshness,
		PipelineCoverage:  pipeline,
		Overall:           overall,
		LagMinutes:        math.Max(lagMinutes, 0),
		Flags:             flags,
	}
}

func freshnessFromLag(lagMinutes, maxLagMinutes float64) float64 {
	if maxLagMinutes <= 0 {
		if lagMinutes <= 0 {
			return 100
		}
		return 0
	}
	if lagMinutes <= 0 {
		return 100
	}
	return clamp(100 * (1 - lagMinutes/maxLagMinutes))
}

func pipelineCoverage(coreCount, rawCount int) float64 {
	if rawCount <= 0 {
		return 100
	}
	return clamp(100 * float64(coreCount) / float64(rawCount))
}

func countCoverage(actual, expected int) float64 {
	if expected <= 0 {
		return 100
	}
	return clamp(100 * float64(actual) / float64(expected))
}

func weightedMean(count *float64, freshness, pipeline float64) float64 {
	if count == nil {
		return clamp(freshness*weightFreshnessNoCount + pipeline*weightPipelineNoCount)
	}
	return clamp(*count*weightCount + freshness*weightFreshness + pipeline*weightPipeline)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Recorder persists a computed Result for one (league, season, endpoint).
type Recorder struct {
	repo coveragestatus.Repository
}

func NewRecorder(repo coveragestatus.Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Record computes and replaces the MART coverage row for this tuple. Per
// §4.7, the row is fully recomputed and replaced, not merged, after every
// relevant transform.
func (r *Recorder) Record(ctx context.Context, leagueID int64, season int, endpoint string, in Inputs) (Result, error) {
	result := Compute(in)

	flagsJSON, err := json.Marshal(result.Flags)
	if err != nil {
		return Result{}, fmt.Errorf("marshal coverage flags league_id=%d season=%d endpoint=%s: %w", leagueID, season, endpoint, err)
	}

	status := coveragestatus.Status{
		LeagueID:          leagueID,
		Season:            season,
		Endpoint:          endpoint,
		CountCoverage:     result.CountCoverage,
		FreshnessCoverage: result.FreshnessCoverage,
		PipelineCoverage:  result.PipelineCoverage,
		Overall:           result.Overall,
		LagMinutes:        result.LagMinutes,
		FlagsJSON:         flagsJSON,
		UpdatedAt:         in.Now,
	}

	if err := r.repo.Replace(ctx, status); err != nil {
		return Result{}, fmt.Errorf("replace coverage status league_id=%d season=%d endpoint=%s: %w", leagueID, season, endpoint, err)
	}
	return result, nil
}
