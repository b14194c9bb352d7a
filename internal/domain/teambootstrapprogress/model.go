package teambootstrapprogress

import "context"

// Progress caches that /teams?league&season has succeeded at least once, so
// the Dependency Resolver does not refetch the whole roster for every
// fixture row within a run (§3, §4.5).
type Progress struct {
	LeagueID  int64
	Season    int
	Completed bool
}

type Repository interface {
	IsCompleted(ctx context.Context, leagueID int64, season int) (bool, error)
	MarkCompleted(ctx context.Context, leagueID int64, season int) error
}
