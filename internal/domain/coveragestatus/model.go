package coveragestatus

import (
	"context"
	"encoding/json"
	"time"
)

// Status is the MART coverage row for a (league, season, endpoint) tuple,
// recomputed after every relevant transform and replacing the prior row
// (§3, §4.7).
type Status struct {
	LeagueID int64
	Season   int
	Endpoint string

	CountCoverage     *float64 // nil when not-applicable (no expected count configured)
	FreshnessCoverage float64
	PipelineCoverage  float64
	Overall           float64

	LagMinutes float64
	FlagsJSON  json.RawMessage

	UpdatedAt time.Time
}

type Repository interface {
	Replace(ctx context.Context, s Status) error
	Get(ctx context.Context, leagueID int64, season int, endpoint string) (Status, bool, error)
}
