package backfillprogress

import (
	"context"
	"time"
)

// Progress tracks a resumable backfill task keyed by (job_id, league,
// season). next_window_index advances monotonically; completed is set once
// the season's windows are exhausted (§3, §4.9).
type Progress struct {
	JobID    string
	LeagueID int64
	Season   int

	NextWindowIndex int
	Completed       bool
	LastError       string
	LastRunAt       time.Time
}

type Repository interface {
	Get(ctx context.Context, jobID string, leagueID int64, season int) (Progress, bool, error)
	EnsureCreated(ctx context.Context, jobID string, leagueID int64, season int) (Progress, error)
	ListNotCompleted(ctx context.Context, jobID string, limit int) ([]Progress, error)
	AdvanceWindow(ctx context.Context, jobID string, leagueID int64, season int, nextWindowIndex int, completed bool, now time.Time) error
	RecordError(ctx context.Context, jobID string, leagueID int64, season int, errMsg string, now time.Time) error
}
