package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brightpitch/fixtureflow/internal/domain/backfillprogress"
	"github.com/brightpitch/fixtureflow/internal/domain/fixture"
	"github.com/brightpitch/fixtureflow/internal/domain/standing"
	"github.com/brightpitch/fixtureflow/internal/domain/venue"
	"github.com/brightpitch/fixtureflow/internal/platform/logging"
	"github.com/brightpitch/fixtureflow/internal/ratelimit"
	"github.com/brightpitch/fixtureflow/internal/transform"
	"github.com/brightpitch/fixtureflow/internal/upstream"
)

type fakeProgressRepo struct {
	rows map[string]backfillprogress.Progress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{rows: map[string]backfillprogress.Progress{}}
}

func progressKey(jobID string, leagueID int64, season int) string {
	return fmt.Sprintf("%s|%d|%d", jobID, leagueID, season)
}

func (f *fakeProgressRepo) Get(ctx context.Context, jobID string, leagueID int64, season int) (backfillprogress.Progress, bool, error) {
	row, ok := f.rows[progressKey(jobID, leagueID, season)]
	return row, ok, nil
}

func (f *fakeProgressRepo) EnsureCreated(ctx context.Context, jobID string, leagueID int64, season int) (backfillprogress.Progress, error) {
	key := progressKey(jobID, leagueID, season)
	if row, ok := f.rows[key]; ok {
		return row, nil
	}
	row := backfillprogress.Progress{JobID: jobID, LeagueID: leagueID, Season: season}
	f.rows[key] = row
	return row, nil
}

func (f *fakeProgressRepo) ListNotCompleted(ctx context.Context, jobID string, limit int) ([]backfillprogress.Progress, error) {
	var out []backfillprogress.Progress
	for _, row := range f.rows {
		if row.JobID != jobID || row.Completed {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeProgressRepo) AdvanceWindow(ctx context.Context, jobID string, leagueID int64, season int, nextWindowIndex int, completed bool, now time.Time) error {
	key := progressKey(jobID, leagueID, season)
	row := f.rows[key]
	row.NextWindowIndex = nextWindowIndex
	row.Completed = completed
	row.LastError = ""
	row.LastRunAt = now
	f.rows[key] = row
	return nil
}

func (f *fakeProgressRepo) RecordError(ctx context.Context, jobID string, leagueID int64, season int, errMsg string, now time.Time) error {
	key := progressKey(jobID, leagueID, season)
	row := f.rows[key]
	row.LastError = errMsg
	row.LastRunAt = now
	f.rows[key] = row
	return nil
}

type fakeFetcher struct {
	results map[string]upstream.Result
	err     error
	calls   []string
}

func (f *fakeFetcher) Get(ctx context.Context, endpoint string, params map[string]string) (upstream.Result, error) {
	f.calls = append(f.calls, endpoint)
	if f.err != nil {
		return upstream.Result{}, f.err
	}
	if res, ok := f.results[endpoint]; ok {
		return res, nil
	}
	return upstream.Result{Outcome: upstream.OutcomeOK, Envelope: upstream.Envelope{Response: json.RawMessage(`[]`)}}, nil
}

type fakeRawRecorder struct{ records int }

func (f *fakeRawRecorder) Record(ctx context.Context, endpoint string, params map[string]string, result upstream.Result) (int64, error) {
	f.records++
	return int64(f.records), nil
}

type fakeResolver struct{}

func (fakeResolver) EnsureLeague(ctx context.Context, leagueID int64) error { return nil }
func (fakeResolver) EnsureTeams(ctx context.Context, leagueID int64, season int, teamIDs []int64) error {
	return nil
}
func (fakeResolver) EnsureVenue(ctx context.Context, v *venue.Venue) error { return nil }

type fakeFixtureRepo struct{ upserted int }

func (f *fakeFixtureRepo) Upsert(ctx context.Context, row fixture.Fixture) error {
	f.upserted++
	return nil
}
func (f *fakeFixtureRepo) GetByID(ctx context.Context, id int64) (fixture.Fixture, bool, error) {
	return fixture.Fixture{}, false, nil
}
func (f *fakeFixtureRepo) ListAutoFinishCandidates(ctx context.Context, leagueIDs []int64, kickoffBefore, updatedBefore time.Time) ([]fixture.Fixture, error) {
	return nil, nil
}
func (f *fakeFixtureRepo) ListNeedingVerification(ctx context.Context, cooldownBefore time.Time, limit int) ([]fixture.Fixture, error) {
	return nil, nil
}
func (f *fakeFixtureRepo) ListStaleLive(ctx context.Context, staleBefore time.Time, limit int) ([]fixture.Fixture, error) {
	return nil, nil
}
func (f *fakeFixtureRepo) ListPastKickoffPending(ctx context.Context, kickoffBefore time.Time, limit int) ([]fixture.Fixture, error) {
	return nil, nil
}
func (f *fakeFixtureRepo) ForceFinish(ctx context.Context, id int64, now time.Time) error { return nil }
func (f *fakeFixtureRepo) SetVerificationState(ctx context.Context, id int64, state fixture.VerificationState, attemptedAt time.Time) error {
	return nil
}

type fakeStandingRepo struct{ replaced int }

func (f *fakeStandingRepo) ReplaceForSeason(ctx context.Context, leagueID int64, season int, rows []standing.Standing) error {
	f.replaced++
	return nil
}
func (f *fakeStandingRepo) ListForSeason(ctx context.Context, leagueID int64, season int) ([]standing.Standing, error) {
	return nil, nil
}

func newTestTransformEngine(t *testing.T, fixtures *fakeFixtureRepo, standings *fakeStandingRepo) *transform.Engine {
	t.Helper()
	engine, err := transform.New(fakeResolver{}, transform.Repositories{
		Fixtures:  fixtures,
		Standings: standings,
	}, 1, logging.NewNop())
	if err != nil {
		t.Fatalf("build transform engine: %v", err)
	}
	t.Cleanup(engine.Release)
	return engine
}

const sampleFixturesPage = `[{"id":5001,"league_id":8,"season":2025,"date":"2026-01-10T15:00:00-00:00","teams":{"home":{"id":33},"away":{"id":34}},"status":{"short":"FT","long":"Match Finished","elapsed":90},"goals":{"home":1,"away":0}}]`

func TestEngine_FixturesTask_AdvancesWindowOnSuccess(t *testing.T) {
	progress := newFakeProgressRepo()
	fixtures := &fakeFixtureRepo{}
	txform := newTestTransformEngine(t, fixtures, &fakeStandingRepo{})

	fetcher := &fakeFetcher{results: map[string]upstream.Result{
		"/fixtures": {Outcome: upstream.OutcomeOK, Envelope: upstream.Envelope{Response: json.RawMessage(sampleFixturesPage)}},
	}}
	raw := &fakeRawRecorder{}
	governor := ratelimit.New(600, 0)

	engine := New(Config{JobID: "fixtures_daily", Kind: KindFixtures, WindowDays: 30, MaxTasksPerRun: 5, MaxWindowsPerTask: 1},
		progress, fetcher, raw, governor, txform, logging.NewNop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := engine.Run(context.Background(), now, []Target{{LeagueID: 8, Season: 2025}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TasksConsidered != 1 || result.WindowsApplied != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if fixtures.upserted != 1 {
		t.Fatalf("expected fixture upserted once, got %d", fixtures.upserted)
	}

	row, ok, err := progress.Get(context.Background(), "fixtures_daily", 8, 2025)
	if err != nil || !ok {
		t.Fatalf("get progress: ok=%v err=%v", ok, err)
	}
	if row.NextWindowIndex != 1 {
		t.Fatalf("expected next_window_index=1, got %d", row.NextWindowIndex)
	}
	if row.Completed {
		t.Fatalf("task should not be complete after only one window of a multi-window season")
	}
}

func TestEngine_FixturesTask_ErrorDoesNotAdvanceCursor(t *testing.T) {
	progress := newFakeProgressRepo()
	fixtures := &fakeFixtureRepo{}
	txform := newTestTransformEngine(t, fixtures, &fakeStandingRepo{})

	fetcher := &fakeFetcher{err: errors.New("boom")}
	raw := &fakeRawRecorder{}
	governor := ratelimit.New(600, 0)

	engine := New(Config{JobID: "fixtures_daily", Kind: KindFixtures}, progress, fetcher, raw, governor, txform, logging.NewNop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := engine.Run(context.Background(), now, []Target{{LeagueID: 8, Season: 2025}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TasksErrored != 1 {
		t.Fatalf("expected one errored task, got %+v", result)
	}

	row, ok, err := progress.Get(context.Background(), "fixtures_daily", 8, 2025)
	if err != nil || !ok {
		t.Fatalf("get progress: ok=%v err=%v", ok, err)
	}
	if row.NextWindowIndex != 0 {
		t.Fatalf("cursor must not advance on error, got %d", row.NextWindowIndex)
	}
	if row.LastError == "" {
		t.Fatalf("expected last_error to be recorded")
	}
}

func TestEngine_FixturesTask_CompletesWhenSeasonExhausted(t *testing.T) {
	progress := newFakeProgressRepo()
	jobID := "fixtures_daily"
	// Pre-seed a cursor already past the season's opening date.
	progress.rows[progressKey(jobID, 8, 2020)] = backfillprogress.Progress{
		JobID: jobID, LeagueID: 8, Season: 2020, NextWindowIndex: 1000,
	}

	fixtures := &fakeFixtureRepo{}
	txform := newTestTransformEngine(t, fixtures, &fakeStandingRepo{})
	fetcher := &fakeFetcher{}
	raw := &fakeRawRecorder{}
	governor := ratelimit.New(600, 0)

	engine := New(Config{JobID: jobID, Kind: KindFixtures, WindowDays: 30}, progress, fetcher, raw, governor, txform, logging.NewNop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := engine.Run(context.Background(), now, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TasksCompleted != 1 {
		t.Fatalf("expected task to complete once its season window is exhausted, got %+v", result)
	}
	if len(fetcher.calls) != 0 {
		t.Fatalf("an exhausted task must not issue any upstream call, got %v", fetcher.calls)
	}
}

func TestEngine_StandingsTask_SingleCallCompletes(t *testing.T) {
	progress := newFakeProgressRepo()
	standings := &fakeStandingRepo{}
	txform := newTestTransformEngine(t, &fakeFixtureRepo{}, standings)

	fetcher := &fakeFetcher{results: map[string]upstream.Result{
		"/standings": {Outcome: upstream.OutcomeOK, Envelope: upstream.Envelope{Response: json.RawMessage(`[]`)}},
	}}
	raw := &fakeRawRecorder{}
	governor := ratelimit.New(600, 0)

	engine := New(Config{JobID: "standings_weekly", Kind: KindStandings}, progress, fetcher, raw, governor, txform, logging.NewNop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := engine.Run(context.Background(), now, []Target{{LeagueID: 8, Season: 2026}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TasksCompleted != 1 {
		t.Fatalf("expected standings task to complete in a single call, got %+v", result)
	}
	if standings.replaced != 1 {
		t.Fatalf("expected standings replaced once, got %d", standings.replaced)
	}
}

func TestEngine_RespectsMaxTasksPerRun(t *testing.T) {
	progress := newFakeProgressRepo()
	fixtures := &fakeFixtureRepo{}
	txform := newTestTransformEngine(t, fixtures, &fakeStandingRepo{})

	fetcher := &fakeFetcher{results: map[string]upstream.Result{
		"/fixtures": {Outcome: upstream.OutcomeOK, Envelope: upstream.Envelope{Response: json.RawMessage(`[]`)}},
	}}
	raw := &fakeRawRecorder{}
	governor := ratelimit.New(600, 0)

	engine := New(Config{JobID: "fixtures_daily", Kind: KindFixtures, MaxTasksPerRun: 1}, progress, fetcher, raw, governor, txform, logging.NewNop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := engine.Run(context.Background(), now, []Target{{LeagueID: 8, Season: 2026}, {LeagueID: 9, Season: 2026}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TasksConsidered != 1 {
		t.Fatalf("expected only one task considered given MaxTasksPerRun=1, got %+v", result)
	}
}
