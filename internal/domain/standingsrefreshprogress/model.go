package standingsrefreshprogress

import (
	"context"
	"time"
)

// Progress enables paced rotation of the standings-refresh job across all
// tracked (league, season) pairs, rather than refetching every pair on
// every tick (§3, §4.9).
type Progress struct {
	JobID         string
	Cursor        int
	TotalPairs    int
	LapCount      int
	LastFullPassAt *time.Time
}

type Repository interface {
	Get(ctx context.Context, jobID string) (Progress, bool, error)
	Advance(ctx context.Context, jobID string, cursor, totalPairs int, lapCompleted bool, now time.Time) error
}
