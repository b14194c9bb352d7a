// Package backfill implements resumable, windowed historical fills keyed
// by (job_id, league, season), per §4.9. Each run advances a small number
// of not-completed tasks by a bounded number of windows, persisting the
// cursor after every window so a restart resumes exactly where it
// stopped.
package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/brightpitch/fixtureflow/internal/domain/backfillprogress"
	"github.com/brightpitch/fixtureflow/internal/platform/logging"
	"github.com/brightpitch/fixtureflow/internal/rawarchive"
	"github.com/brightpitch/fixtureflow/internal/ratelimit"
	"github.com/brightpitch/fixtureflow/internal/transform"
	"github.com/brightpitch/fixtureflow/internal/upstream"
)

// Fetcher is the slice of upstream.Client the engine depends on.
type Fetcher interface {
	Get(ctx context.Context, endpoint string, params map[string]string) (upstream.Result, error)
}

// RawRecorder is the slice of rawarchive.Writer the engine depends on.
type RawRecorder interface {
	Record(ctx context.Context, endpoint string, params map[string]string, result upstream.Result) (int64, error)
}

// Target is one (league, season) pair scheduled for backfill under a
// given job.
type Target struct {
	LeagueID int64
	Season   int
}

// Kind distinguishes windowed tasks (fixtures, one call per date range)
// from single-call tasks (standings, one call completes the whole task).
type Kind string

const (
	KindFixtures  Kind = "fixtures"
	KindStandings Kind = "standings"
)

// Config bounds one engine run (§4.9: max_tasks_per_run, max_windows_per_task,
// window length).
type Config struct {
	JobID             string
	Kind              Kind
	WindowDays        int
	MaxTasksPerRun    int
	MaxWindowsPerTask int
}

func (c Config) normalized() Config {
	if c.WindowDays <= 0 {
		c.WindowDays = 30
	}
	if c.MaxTasksPerRun <= 0 {
		c.MaxTasksPerRun = 5
	}
	if c.MaxWindowsPerTask <= 0 {
		c.MaxWindowsPerTask = 1
	}
	return c
}

// Engine drives one job's worth of resumable backfill tasks across
// however many (league, season) targets are registered for it.
type Engine struct {
	cfg Config

	progress backfillprogress.Repository
	fetcher  Fetcher
	raw      RawRecorder
	governor *ratelimit.Governor
	txform   *transform.Engine
	logger   *logging.Logger
}

func New(
	cfg Config,
	progress backfillprogress.Repository,
	fetcher Fetcher,
	raw RawRecorder,
	governor *ratelimit.Governor,
	txform *transform.Engine,
	logger *logging.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg.normalized(),
		progress: progress,
		fetcher:  fetcher,
		raw:      raw,
		governor: governor,
		txform:   txform,
		logger:   logger,
	}
}

// RunResult summarises one engine run across however many tasks it
// touched.
type RunResult struct {
	TasksConsidered int
	TasksCompleted  int
	TasksErrored    int
	WindowsApplied  int
}

// Run ensures a BackfillProgress row exists for every target, then
// advances up to MaxTasksPerRun not-completed tasks by up to
// MaxWindowsPerTask windows each (§4.9).
func (e *Engine) Run(ctx context.Context, now time.Time, targets []Target) (RunResult, error) {
	for _, t := range targets {
		if _, err := e.progress.EnsureCreated(ctx, e.cfg.JobID, t.LeagueID, t.Season); err != nil {
			return RunResult{}, fmt.Errorf("ensure backfill progress job_id=%s league_id=%d season=%d: %w", e.cfg.JobID, t.LeagueID, t.Season, err)
		}
	}

	tasks, err := e.progress.ListNotCompleted(ctx, e.cfg.JobID, e.cfg.MaxTasksPerRun)
	if err != nil {
		return RunResult{}, fmt.Errorf("list not-completed backfill tasks job_id=%s: %w", e.cfg.JobID, err)
	}

	result := RunResult{TasksConsidered: len(tasks)}
	for _, task := range tasks {
		windows, completed, err := e.runTask(ctx, now, task)
		result.WindowsApplied += windows
		if err != nil {
			result.TasksErrored++
			e.logger.WarnContext(ctx, "backfill task errored, cursor not advanced",
				"job_id", e.cfg.JobID, "league_id", task.LeagueID, "season", task.Season, "error", err)
			if recErr := e.progress.RecordError(ctx, e.cfg.JobID, task.LeagueID, task.Season, err.Error(), now); recErr != nil {
				return result, fmt.Errorf("record backfill error job_id=%s league_id=%d season=%d: %w", e.cfg.JobID, task.LeagueID, task.Season, recErr)
			}
			continue
		}
		if completed {
			result.TasksCompleted++
		}
	}
	return result, nil
}

// runTask advances a single (job_id, league, season) task by up to
// MaxWindowsPerTask windows (or exactly one call, for KindStandings),
// stopping at the first error without advancing the cursor past the
// last successful window.
func (e *Engine) runTask(ctx context.Context, now time.Time, task backfillprogress.Progress) (int, bool, error) {
	if e.cfg.Kind == KindStandings {
		return e.runStandingsTask(ctx, now, task)
	}
	return e.runFixturesTask(ctx, now, task)
}

func (e *Engine) runStandingsTask(ctx context.Context, now time.Time, task backfillprogress.Progress) (int, bool, error) {
	if err := e.governor.Acquire(ctx); err != nil {
		return 0, false, fmt.Errorf("acquire rate token: %w", err)
	}

	params := map[string]string{
		"league": fmt.Sprintf("%d", task.LeagueID),
		"season": fmt.Sprintf("%d", task.Season),
	}
	res, err := e.fetcher.Get(ctx, "/standings", params)
	if err != nil {
		return 0, false, fmt.Errorf("fetch standings: %w", err)
	}
	if _, err := e.raw.Record(ctx, "/standings", params, res); err != nil {
		return 0, false, fmt.Errorf("archive standings response: %w", err)
	}
	if res.Outcome != upstream.OutcomeOK {
		return 0, false, fmt.Errorf("standings fetch outcome=%s league_id=%d season=%d", res.Outcome, task.LeagueID, task.Season)
	}

	if _, err := e.txform.ApplyStandings(ctx, task.LeagueID, task.Season, res.Envelope.Response); err != nil {
		return 0, false, fmt.Errorf("apply standings: %w", err)
	}

	if err := e.progress.AdvanceWindow(ctx, e.cfg.JobID, task.LeagueID, task.Season, task.NextWindowIndex+1, true, now); err != nil {
		return 1, false, fmt.Errorf("advance standings task: %w", err)
	}
	return 1, true, nil
}

func (e *Engine) runFixturesTask(ctx context.Context, now time.Time, task backfillprogress.Progress) (int, bool, error) {
	windowIndex := task.NextWindowIndex
	applied := 0

	for i := 0; i < e.cfg.MaxWindowsPerTask; i++ {
		from, to, seasonExhausted := windowRange(now, task.Season, windowIndex, e.cfg.WindowDays)
		if seasonExhausted {
			if err := e.progress.AdvanceWindow(ctx, e.cfg.JobID, task.LeagueID, task.Season, windowIndex, true, now); err != nil {
				return applied, false, fmt.Errorf("mark backfill task complete: %w", err)
			}
			return applied, true, nil
		}

		if err := e.governor.Acquire(ctx); err != nil {
			return applied, false, fmt.Errorf("acquire rate token: %w", err)
		}

		params := map[string]string{
			"league": fmt.Sprintf("%d", task.LeagueID),
			"season": fmt.Sprintf("%d", task.Season),
			"from":   from.Format("2006-01-02"),
			"to":     to.Format("2006-01-02"),
		}
		res, err := e.fetcher.Get(ctx, "/fixtures", params)
		if err != nil {
			return applied, false, fmt.Errorf("fetch fixtures window index=%d %s..%s: %w", windowIndex, params["from"], params["to"], err)
		}
		if _, err := e.raw.Record(ctx, "/fixtures", params, res); err != nil {
			return applied, false, fmt.Errorf("archive fixtures window response: %w", err)
		}
		if res.Outcome != upstream.OutcomeOK {
			return applied, false, fmt.Errorf("fixtures window outcome=%s league_id=%d season=%d window=%d", res.Outcome, task.LeagueID, task.Season, windowIndex)
		}

		if _, err := e.txform.ApplyFixtures(ctx, res.Envelope.Response, now); err != nil {
			return applied, false, fmt.Errorf("apply fixtures window index=%d: %w", windowIndex, err)
		}

		windowIndex++
		applied++
		if err := e.progress.AdvanceWindow(ctx, e.cfg.JobID, task.LeagueID, task.Season, windowIndex, false, now); err != nil {
			return applied, false, fmt.Errorf("advance backfill window index=%d: %w", windowIndex, err)
		}
	}

	return applied, false, nil
}

// windowRange computes the [from, to) date range for the nth window of a
// season, walking backward from "now" in WindowDays-sized chunks so the
// most recent history fills first. A season backfill is considered
// exhausted once the window's upper bound would predate the season's
// opening (August 1st of the season year, the convention every tracked
// league in this pipeline follows).
func windowRange(now time.Time, season int, windowIndex int, windowDays int) (from, to time.Time, exhausted bool) {
	seasonStart := time.Date(season, time.August, 1, 0, 0, 0, 0, time.UTC)

	to = now.AddDate(0, 0, -windowIndex*windowDays).UTC()
	from = to.AddDate(0, 0, -windowDays)

	if !to.After(seasonStart) {
		return time.Time{}, time.Time{}, true
	}
	if from.Before(seasonStart) {
		from = seasonStart
	}
	return from, to, false
}
