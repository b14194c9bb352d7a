package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/brightpitch/fixtureflow/internal/domain/fixture"
	"github.com/brightpitch/fixtureflow/internal/domain/standing"
	"github.com/brightpitch/fixtureflow/internal/domain/venue"
	"github.com/brightpitch/fixtureflow/internal/platform/logging"
	"github.com/brightpitch/fixtureflow/internal/transform"
	"github.com/brightpitch/fixtureflow/internal/upstream"
)

type fakeFixtureRepo struct {
	rows              map[int64]fixture.Fixture
	forceFinished     []int64
	verificationCalls map[int64]fixture.VerificationState
}

func newFakeFixtureRepo(rows ...fixture.Fixture) *fakeFixtureRepo {
	r := &fakeFixtureRepo{rows: map[int64]fixture.Fixture{}, verificationCalls: map[int64]fixture.VerificationState{}}
	for _, row := range rows {
		r.rows[row.ID] = row
	}
	return r
}

func (f *fakeFixtureRepo) Upsert(ctx context.Context, row fixture.Fixture) error {
	f.rows[row.ID] = row
	return nil
}
func (f *fakeFixtureRepo) GetByID(ctx context.Context, id int64) (fixture.Fixture, bool, error) {
	row, ok := f.rows[id]
	return row, ok, nil
}
func (f *fakeFixtureRepo) ListAutoFinishCandidates(ctx context.Context, leagueIDs []int64, kickoffBefore, updatedBefore time.Time) ([]fixture.Fixture, error) {
	return f.all(), nil
}
func (f *fakeFixtureRepo) ListNeedingVerification(ctx context.Context, cooldownBefore time.Time, limit int) ([]fixture.Fixture, error) {
	out := make([]fixture.Fixture, 0, len(f.rows))
	for _, row := range f.rows {
		if row.NeedsScoreVerification {
			out = append(out, row)
		}
	}
	return out, nil
}
func (f *fakeFixtureRepo) ListStaleLive(ctx context.Context, staleBefore time.Time, limit int) ([]fixture.Fixture, error) {
	return f.all(), nil
}
func (f *fakeFixtureRepo) ListPastKickoffPending(ctx context.Context, kickoffBefore time.Time, limit int) ([]fixture.Fixture, error) {
	return f.all(), nil
}
func (f *fakeFixtureRepo) ForceFinish(ctx context.Context, id int64, now time.Time) error {
	f.forceFinished = append(f.forceFinished, id)
	row := f.rows[id]
	row.StatusShort = "FT"
	row.NeedsScoreVerification = true
	f.rows[id] = row
	return nil
}
func (f *fakeFixtureRepo) SetVerificationState(ctx context.Context, id int64, state fixture.VerificationState, attemptedAt time.Time) error {
	f.verificationCalls[id] = state
	row := f.rows[id]
	row.VerificationState = state
	row.VerificationAttemptCount++
	row.NeedsScoreVerification = state == fixture.VerificationPending
	f.rows[id] = row
	return nil
}
func (f *fakeFixtureRepo) all() []fixture.Fixture {
	out := make([]fixture.Fixture, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	return out
}

type fakeStandingRepo struct{}

func (f *fakeStandingRepo) ReplaceForSeason(ctx context.Context, leagueID int64, season int, rows []standing.Standing) error {
	return nil
}
func (f *fakeStandingRepo) ListForSeason(ctx context.Context, leagueID int64, season int) ([]standing.Standing, error) {
	return nil, nil
}

type fakeResolver struct{}

func (fakeResolver) EnsureLeague(ctx context.Context, leagueID int64) error { return nil }
func (fakeResolver) EnsureTeams(ctx context.Context, leagueID int64, season int, teamIDs []int64) error {
	return nil
}
func (fakeResolver) EnsureVenue(ctx context.Context, v *venue.Venue) error { return nil }

func newTestTransformEngine(t *testing.T, fixtures fixture.Repository) *transform.Engine {
	t.Helper()
	engine, err := transform.New(fakeResolver{}, transform.Repositories{
		Fixtures:  fixtures,
		Standings: &fakeStandingRepo{},
	}, 1, logging.NewNop())
	if err != nil {
		t.Fatalf("build transform engine: %v", err)
	}
	t.Cleanup(engine.Release)
	return engine
}

type fakeFetcher struct {
	results map[string]upstream.Result
	err     error
	calls   int
}

func (f *fakeFetcher) Get(ctx context.Context, endpoint string, params map[string]string) (upstream.Result, error) {
	f.calls++
	if f.err != nil {
		return upstream.Result{}, f.err
	}
	if res, ok := f.results[endpoint]; ok {
		return res, nil
	}
	return upstream.Result{Outcome: upstream.OutcomeOK, Envelope: upstream.Envelope{Response: json.RawMessage(`[]`)}}, nil
}

type fakeRawRecorder struct{}

func (f *fakeRawRecorder) Record(ctx context.Context, endpoint string, params map[string]string, result upstream.Result) (int64, error) {
	return 1, nil
}

type fakeQuota struct {
	remaining int
	observed  bool
}

func (f fakeQuota) DailyRemaining() (int, bool) { return f.remaining, f.observed }

func TestAutoFinish_ForceFinishesWithoutFetchWhenTryFetchFirstDisabled(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, StatusShort: "NS"}, fixture.Fixture{ID: 2, StatusShort: "1H"})
	txform := newTestTransformEngine(t, repo)

	r := New(Config{TryFetchFirst: false}, repo, &fakeFetcher{}, &fakeRawRecorder{}, fakeQuota{}, txform, logging.NewNop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := r.AutoFinish(context.Background(), now)
	if err != nil {
		t.Fatalf("auto-finish: %v", err)
	}
	if result.Considered != 2 || result.Finalized != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(repo.forceFinished) != 2 {
		t.Fatalf("expected both fixtures force-finished, got %v", repo.forceFinished)
	}
}

func TestAutoFinish_DryRunTakesNoAction(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, StatusShort: "NS"})
	txform := newTestTransformEngine(t, repo)

	r := New(Config{DryRun: true}, repo, &fakeFetcher{}, &fakeRawRecorder{}, fakeQuota{}, txform, logging.NewNop())

	result, err := r.AutoFinish(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("auto-finish: %v", err)
	}
	if result.Considered != 1 || result.Finalized != 0 {
		t.Fatalf("expected no finalization in dry-run, got %+v", result)
	}
	if len(repo.forceFinished) != 0 {
		t.Fatalf("dry-run must not force-finish anything")
	}
}

const sampleFetchedFixture = `[{"id":1,"league_id":8,"season":2026,"date":"2026-03-01T12:00:00-00:00","teams":{"home":{"id":33},"away":{"id":34}},"status":{"short":"FT","long":"Match Finished","elapsed":90},"goals":{"home":2,"away":1}}]`

func TestAutoFinish_AppliesFetchedBatchWithoutForceFinish(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, StatusShort: "1H"})
	txform := newTestTransformEngine(t, repo)

	fetcher := &fakeFetcher{results: map[string]upstream.Result{
		"/fixtures": {Outcome: upstream.OutcomeOK, Envelope: upstream.Envelope{Response: json.RawMessage(sampleFetchedFixture)}},
	}}
	r := New(Config{TryFetchFirst: true}, repo, fetcher, &fakeRawRecorder{}, fakeQuota{}, txform, logging.NewNop())

	now := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	result, err := r.AutoFinish(context.Background(), now)
	if err != nil {
		t.Fatalf("auto-finish: %v", err)
	}
	if result.Fetched != 1 || result.Finalized != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(repo.forceFinished) != 0 {
		t.Fatalf("a successful fetch must not also force-finish")
	}
	if repo.rows[1].StatusShort != "FT" {
		t.Fatalf("expected fixture upserted with real FT status, got %+v", repo.rows[1])
	}
}

func TestAutoFinish_FallsBackToForceFinishOnFetchFailure(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, StatusShort: "1H"})
	txform := newTestTransformEngine(t, repo)

	fetcher := &fakeFetcher{err: errors.New("upstream down")}
	r := New(Config{TryFetchFirst: true}, repo, fetcher, &fakeRawRecorder{}, fakeQuota{}, txform, logging.NewNop())

	result, err := r.AutoFinish(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("auto-finish: %v", err)
	}
	if result.Finalized != 1 || result.Fetched != 0 {
		t.Fatalf("expected fallback force-finish, got %+v", result)
	}
	if len(repo.forceFinished) != 1 {
		t.Fatalf("expected exactly one fallback force-finish")
	}
}

func TestVerify_RefusesWhenQuotaTooLow(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, VerificationState: fixture.VerificationPending})
	txform := newTestTransformEngine(t, repo)

	r := New(Config{VerifierMinDailyQuota: 100}, repo, &fakeFetcher{}, &fakeRawRecorder{}, fakeQuota{remaining: 10, observed: true}, txform, logging.NewNop())

	_, err := r.Verify(context.Background(), time.Now())
	if !errors.Is(err, ErrQuotaTooLow) {
		t.Fatalf("expected ErrQuotaTooLow, got %v", err)
	}
}

func TestVerify_MarksVerifiedOnSuccessfulRefetch(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, StatusShort: "FT", VerificationState: fixture.VerificationPending, NeedsScoreVerification: true})
	txform := newTestTransformEngine(t, repo)

	fetcher := &fakeFetcher{results: map[string]upstream.Result{
		"/fixtures": {Outcome: upstream.OutcomeOK, Envelope: upstream.Envelope{Response: json.RawMessage(sampleFetchedFixture)}},
	}}
	r := New(Config{}, repo, fetcher, &fakeRawRecorder{}, fakeQuota{remaining: 1000, observed: true}, txform, logging.NewNop())

	result, err := r.Verify(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Fetched != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if repo.verificationCalls[1] != fixture.VerificationVerified {
		t.Fatalf("expected fixture 1 marked verified, got %v", repo.verificationCalls[1])
	}
}

func TestVerify_MarksNotFoundWhenUpstreamOmitsFixture(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 99, VerificationState: fixture.VerificationPending, NeedsScoreVerification: true})
	txform := newTestTransformEngine(t, repo)

	fetcher := &fakeFetcher{results: map[string]upstream.Result{
		"/fixtures": {Outcome: upstream.OutcomeOK, Envelope: upstream.Envelope{Response: json.RawMessage(`[]`)}},
	}}
	r := New(Config{}, repo, fetcher, &fakeRawRecorder{}, fakeQuota{remaining: 1000, observed: true}, txform, logging.NewNop())

	result, err := r.Verify(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Finalized != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if repo.verificationCalls[99] != fixture.VerificationNotFound {
		t.Fatalf("expected fixture 99 marked not_found, got %v", repo.verificationCalls[99])
	}
}

func TestVerify_BumpsAttemptCountWithoutResolvingOnTransientFailure(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, VerificationState: fixture.VerificationPending, VerificationAttemptCount: 0, NeedsScoreVerification: true})
	txform := newTestTransformEngine(t, repo)

	fetcher := &fakeFetcher{err: errors.New("timeout")}
	r := New(Config{VerifierMaxAttempts: 5}, repo, fetcher, &fakeRawRecorder{}, fakeQuota{remaining: 1000, observed: true}, txform, logging.NewNop())

	_, err := r.Verify(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if repo.verificationCalls[1] != fixture.VerificationPending {
		t.Fatalf("expected fixture to stay pending after a transient failure, got %v", repo.verificationCalls[1])
	}
	if repo.rows[1].VerificationAttemptCount != 1 {
		t.Fatalf("expected attempt count bumped, got %d", repo.rows[1].VerificationAttemptCount)
	}
}

func TestVerify_BlocksAfterExhaustingAttempts(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, VerificationState: fixture.VerificationPending, VerificationAttemptCount: 4, NeedsScoreVerification: true})
	txform := newTestTransformEngine(t, repo)

	fetcher := &fakeFetcher{err: errors.New("timeout")}
	r := New(Config{VerifierMaxAttempts: 5}, repo, fetcher, &fakeRawRecorder{}, fakeQuota{remaining: 1000, observed: true}, txform, logging.NewNop())

	_, err := r.Verify(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if repo.verificationCalls[1] != fixture.VerificationBlocked {
		t.Fatalf("expected fixture blocked after exhausting attempts, got %v", repo.verificationCalls[1])
	}
}

func TestVerify_BlockedFixtureIsNotReselectedOnNextPass(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, VerificationState: fixture.VerificationPending, VerificationAttemptCount: 4, NeedsScoreVerification: true})
	txform := newTestTransformEngine(t, repo)

	fetcher := &fakeFetcher{err: errors.New("timeout")}
	r := New(Config{VerifierMaxAttempts: 5}, repo, fetcher, &fakeRawRecorder{}, fakeQuota{remaining: 1000, observed: true}, txform, logging.NewNop())

	if _, err := r.Verify(context.Background(), time.Now()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if repo.verificationCalls[1] != fixture.VerificationBlocked {
		t.Fatalf("expected fixture blocked after first pass, got %v", repo.verificationCalls[1])
	}
	if repo.rows[1].NeedsScoreVerification {
		t.Fatalf("expected needs_score_verification cleared once blocked")
	}

	callsAfterFirstPass := fetcher.calls
	result, err := r.Verify(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if result.Considered != 0 {
		t.Fatalf("expected blocked fixture to be excluded from a second pass, got %+v", result)
	}
	if fetcher.calls != callsAfterFirstPass {
		t.Fatalf("expected no upstream fetch on a second pass, calls went from %d to %d", callsAfterFirstPass, fetcher.calls)
	}
}

func TestRefreshStaleLive_AppliesFetchedBatch(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, StatusShort: "1H"})
	txform := newTestTransformEngine(t, repo)

	fetcher := &fakeFetcher{results: map[string]upstream.Result{
		"/fixtures": {Outcome: upstream.OutcomeOK, Envelope: upstream.Envelope{Response: json.RawMessage(sampleFetchedFixture)}},
	}}
	r := New(Config{}, repo, fetcher, &fakeRawRecorder{}, fakeQuota{}, txform, logging.NewNop())

	result, err := r.RefreshStaleLive(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("refresh stale live: %v", err)
	}
	if result.Fetched != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestFinalizePastKickoff_ForceFinishesEveryCandidate(t *testing.T) {
	repo := newFakeFixtureRepo(fixture.Fixture{ID: 1, StatusShort: "NS"}, fixture.Fixture{ID: 2, StatusShort: "TBD"})
	txform := newTestTransformEngine(t, repo)

	r := New(Config{}, repo, &fakeFetcher{}, &fakeRawRecorder{}, fakeQuota{}, txform, logging.NewNop())

	result, err := r.FinalizePastKickoff(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("finalize past kickoff: %v", err)
	}
	if result.Finalized != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
