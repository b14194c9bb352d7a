// Package reconciler runs the three cooperating sub-jobs (plus one
// longer-cadence sibling) that detect and finalise fixtures drifting from
// upstream reality, per §4.10.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brightpitch/fixtureflow/internal/domain/fixture"
	"github.com/brightpitch/fixtureflow/internal/platform/logging"
	"github.com/brightpitch/fixtureflow/internal/transform"
	"github.com/brightpitch/fixtureflow/internal/upstream"
)

// ErrQuotaTooLow is returned by Verify when the observed daily remaining
// quota has dropped below the configured minimum, per §4.10.2.
var ErrQuotaTooLow = errors.New("reconciler: daily quota too low to verify")

// Fetcher is the slice of upstream.Client the reconciler depends on.
type Fetcher interface {
	Get(ctx context.Context, endpoint string, params map[string]string) (upstream.Result, error)
}

// RawRecorder is the slice of rawarchive.Writer the reconciler depends on.
type RawRecorder interface {
	Record(ctx context.Context, endpoint string, params map[string]string, result upstream.Result) (int64, error)
}

// QuotaObserver is the slice of ratelimit.Governor the verifier consults
// before spending any quota on re-verification.
type QuotaObserver interface {
	DailyRemaining() (remaining int, observed bool)
}

// Config bounds every sub-job. Zero values are replaced with the spec's
// documented defaults by normalized().
type Config struct {
	TrackedLeagueIDs []int64

	// Auto-finish (§4.10.1).
	AutoFinishThreshold time.Duration // kickoff age required
	AutoFinishSafetyLag time.Duration // updated_at age required
	TryFetchFirst       bool
	FetchBatchSize      int
	MaxFixturesPerRun   int
	DryRun              bool

	// Verifier (§4.10.2).
	VerifierCooldown      time.Duration
	VerifierMinDailyQuota int
	VerifierMaxAttempts   int
	VerifierLimit         int

	// Stale live refresh (§4.10.3).
	StaleLiveThreshold time.Duration
	StaleLiveLimit     int

	// Past-kickoff finalizer (fourth sibling).
	PastKickoffGrace time.Duration
	PastKickoffLimit int
}

func (c Config) normalized() Config {
	if c.AutoFinishThreshold <= 0 {
		c.AutoFinishThreshold = 3 * time.Hour
	}
	if c.AutoFinishSafetyLag <= 0 {
		c.AutoFinishSafetyLag = time.Hour
	}
	if c.FetchBatchSize <= 0 {
		c.FetchBatchSize = 20
	}
	if c.MaxFixturesPerRun <= 0 {
		c.MaxFixturesPerRun = 200
	}
	if c.VerifierCooldown <= 0 {
		c.VerifierCooldown = 6 * time.Hour
	}
	if c.VerifierMaxAttempts <= 0 {
		c.VerifierMaxAttempts = 5
	}
	if c.VerifierLimit <= 0 {
		c.VerifierLimit = 100
	}
	if c.StaleLiveThreshold <= 0 {
		c.StaleLiveThreshold = 15 * time.Minute
	}
	if c.StaleLiveLimit <= 0 {
		c.StaleLiveLimit = 200
	}
	if c.PastKickoffGrace <= 0 {
		c.PastKickoffGrace = 6 * time.Hour
	}
	if c.PastKickoffLimit <= 0 {
		c.PastKickoffLimit = 200
	}
	return c
}

// Reconciler runs auto-finish, verification, stale-live-refresh, and the
// past-kickoff finalizer against one fixture repository.
type Reconciler struct {
	cfg      Config
	fixtures fixture.Repository
	fetcher  Fetcher
	raw      RawRecorder
	quota    QuotaObserver
	txform   *transform.Engine
	logger   *logging.Logger
}

func New(
	cfg Config,
	fixtures fixture.Repository,
	fetcher Fetcher,
	raw RawRecorder,
	quota QuotaObserver,
	txform *transform.Engine,
	logger *logging.Logger,
) *Reconciler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		cfg:      cfg.normalized(),
		fixtures: fixtures,
		fetcher:  fetcher,
		raw:      raw,
		quota:    quota,
		txform:   txform,
		logger:   logger,
	}
}

// RunResult summarises the outcome of one sub-job invocation.
type RunResult struct {
	Considered int
	Fetched    int // resolved with a real upstream response
	Finalized  int // resolved without one (force-finish or not_found)
	Failed     int
}

// AutoFinish implements §4.10.1. It selects liveish and pre-kickoff
// fixtures old enough to be considered abandoned and either force-finishes
// them directly, or (when TryFetchFirst is set) attempts one last batch
// fetch before falling back to force-finish.
func (r *Reconciler) AutoFinish(ctx context.Context, now time.Time) (RunResult, error) {
	kickoffBefore := now.Add(-r.cfg.AutoFinishThreshold)
	updatedBefore := now.Add(-r.cfg.AutoFinishSafetyLag)

	candidates, err := r.fixtures.ListAutoFinishCandidates(ctx, r.cfg.TrackedLeagueIDs, kickoffBefore, updatedBefore)
	if err != nil {
		return RunResult{}, fmt.Errorf("list auto-finish candidates: %w", err)
	}
	if len(candidates) > r.cfg.MaxFixturesPerRun {
		candidates = candidates[:r.cfg.MaxFixturesPerRun]
	}

	result := RunResult{Considered: len(candidates)}
	if len(candidates) == 0 || r.cfg.DryRun {
		return result, nil
	}

	if !r.cfg.TryFetchFirst {
		r.forceFinishAll(ctx, now, fixtureIDs(candidates), &result)
		return result, nil
	}

	for _, batch := range batchIDs(fixtureIDs(candidates), r.cfg.FetchBatchSize) {
		if r.fetchAndApply(ctx, now, batch) {
			result.Fetched += len(batch)
			continue
		}
		r.forceFinishAll(ctx, now, batch, &result)
	}
	return result, nil
}

// Verify implements §4.10.2. It only runs while the observed daily quota
// clears the configured minimum; fixtures the upstream no longer carries
// are marked not_found, transient fetch failures bump the attempt count
// and cooldown without resolving the fixture, and a fixture that exhausts
// its attempt budget is marked blocked.
func (r *Reconciler) Verify(ctx context.Context, now time.Time) (RunResult, error) {
	if remaining, observed := r.quota.DailyRemaining(); observed && remaining < r.cfg.VerifierMinDailyQuota {
		return RunResult{}, ErrQuotaTooLow
	}

	cooldownBefore := now.Add(-r.cfg.VerifierCooldown)
	candidates, err := r.fixtures.ListNeedingVerification(ctx, cooldownBefore, r.cfg.VerifierLimit)
	if err != nil {
		return RunResult{}, fmt.Errorf("list fixtures needing verification: %w", err)
	}

	result := RunResult{Considered: len(candidates)}
	if len(candidates) == 0 {
		return result, nil
	}

	byID := make(map[int64]fixture.Fixture, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	for _, batch := range batchIDs(fixtureIDs(candidates), r.cfg.FetchBatchSize) {
		params := map[string]string{"ids": joinIDs(batch)}
		res, err := r.fetcher.Get(ctx, "/fixtures", params)
		if err != nil {
			r.logger.WarnContext(ctx, "verifier batch fetch failed", "ids", params["ids"], "error", err)
			r.markInconclusive(ctx, now, batch, byID, &result)
			continue
		}
		if _, recErr := r.raw.Record(ctx, "/fixtures", params, res); recErr != nil {
			r.logger.WarnContext(ctx, "verifier failed to archive batch fetch", "error", recErr)
		}
		if res.Outcome != upstream.OutcomeOK {
			r.markInconclusive(ctx, now, batch, byID, &result)
			continue
		}

		seenIDs, err := transform.ExtractFixtureIDs(res.Envelope.Response)
		if err != nil {
			r.logger.WarnContext(ctx, "verifier failed to read batch response", "error", err)
			r.markInconclusive(ctx, now, batch, byID, &result)
			continue
		}
		if _, err := r.txform.ApplyFixtures(ctx, res.Envelope.Response, now); err != nil {
			r.logger.WarnContext(ctx, "verifier failed to apply batch response", "error", err)
			r.markInconclusive(ctx, now, batch, byID, &result)
			continue
		}

		seen := make(map[int64]struct{}, len(seenIDs))
		for _, id := range seenIDs {
			seen[id] = struct{}{}
		}
		for _, id := range batch {
			if _, ok := seen[id]; ok {
				if err := r.fixtures.SetVerificationState(ctx, id, fixture.VerificationVerified, now); err != nil {
					r.logger.WarnContext(ctx, "verifier failed to mark verified", "fixture_id", id, "error", err)
					result.Failed++
					continue
				}
				result.Fetched++
				continue
			}
			if err := r.fixtures.SetVerificationState(ctx, id, fixture.VerificationNotFound, now); err != nil {
				r.logger.WarnContext(ctx, "verifier failed to mark not_found", "fixture_id", id, "error", err)
				result.Failed++
				continue
			}
			result.Finalized++
		}
	}
	return result, nil
}

// markInconclusive bumps the attempt count and cooldown for every id in
// batch without resolving it, unless the fixture has exhausted its attempt
// budget, in which case it is marked blocked instead.
func (r *Reconciler) markInconclusive(ctx context.Context, now time.Time, batch []int64, byID map[int64]fixture.Fixture, result *RunResult) {
	for _, id := range batch {
		state := fixture.VerificationPending
		if row, ok := byID[id]; ok && row.VerificationAttemptCount+1 >= r.cfg.VerifierMaxAttempts {
			state = fixture.VerificationBlocked
		}
		if err := r.fixtures.SetVerificationState(ctx, id, state, now); err != nil {
			r.logger.WarnContext(ctx, "verifier failed to record inconclusive attempt", "fixture_id", id, "error", err)
		}
		result.Failed++
	}
}

// RefreshStaleLive implements §4.10.3. It batch-fetches liveish fixtures
// whose last update has gone stale and re-applies whatever upstream
// returns, closing the residual drift window auto-finish cannot yet reach.
func (r *Reconciler) RefreshStaleLive(ctx context.Context, now time.Time) (RunResult, error) {
	staleBefore := now.Add(-r.cfg.StaleLiveThreshold)
	candidates, err := r.fixtures.ListStaleLive(ctx, staleBefore, r.cfg.StaleLiveLimit)
	if err != nil {
		return RunResult{}, fmt.Errorf("list stale live fixtures: %w", err)
	}

	result := RunResult{Considered: len(candidates)}
	if len(candidates) == 0 {
		return result, nil
	}

	for _, batch := range batchIDs(fixtureIDs(candidates), r.cfg.FetchBatchSize) {
		if r.fetchAndApply(ctx, now, batch) {
			result.Fetched += len(batch)
		} else {
			result.Failed += len(batch)
		}
	}
	return result, nil
}

// FinalizePastKickoff is the fourth sibling: it force-finishes NS/TBD
// fixtures whose kickoff is well past on a longer cadence than auto-finish,
// catching whatever that job's shorter window missed.
func (r *Reconciler) FinalizePastKickoff(ctx context.Context, now time.Time) (RunResult, error) {
	kickoffBefore := now.Add(-r.cfg.PastKickoffGrace)
	candidates, err := r.fixtures.ListPastKickoffPending(ctx, kickoffBefore, r.cfg.PastKickoffLimit)
	if err != nil {
		return RunResult{}, fmt.Errorf("list past-kickoff pending fixtures: %w", err)
	}

	result := RunResult{Considered: len(candidates)}
	r.forceFinishAll(ctx, now, fixtureIDs(candidates), &result)
	return result, nil
}

func (r *Reconciler) forceFinishAll(ctx context.Context, now time.Time, ids []int64, result *RunResult) {
	for _, id := range ids {
		if err := r.fixtures.ForceFinish(ctx, id, now); err != nil {
			r.logger.WarnContext(ctx, "force-finish failed", "fixture_id", id, "error", err)
			result.Failed++
			continue
		}
		result.Finalized++
	}
}

func (r *Reconciler) fetchAndApply(ctx context.Context, now time.Time, ids []int64) bool {
	params := map[string]string{"ids": joinIDs(ids)}
	res, err := r.fetcher.Get(ctx, "/fixtures", params)
	if err != nil {
		r.logger.WarnContext(ctx, "reconciler batch fetch failed", "ids", params["ids"], "error", err)
		return false
	}
	if _, recErr := r.raw.Record(ctx, "/fixtures", params, res); recErr != nil {
		r.logger.WarnContext(ctx, "reconciler failed to archive batch fetch", "error", recErr)
	}
	if res.Outcome != upstream.OutcomeOK {
		return false
	}
	if _, err := r.txform.ApplyFixtures(ctx, res.Envelope.Response, now); err != nil {
		r.logger.WarnContext(ctx, "reconciler failed to apply batch response", "error", err)
		return false
	}
	return true
}

func fixtureIDs(rows []fixture.Fixture) []int64 {
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids
}

func batchIDs(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]int64
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[i:end])
	}
	return out
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "-")
}
