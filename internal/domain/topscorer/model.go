package topscorer

import "context"

// TopScorer is upserted by (league, season, player) from /players/topscorers.
type TopScorer struct {
	LeagueID int64
	Season   int
	PlayerID int64

	Rank    int
	TeamID  int64
	Goals   int
	Assists int
}

type Repository interface {
	Upsert(ctx context.Context, t TopScorer) error
	UpsertMany(ctx context.Context, items []TopScorer) error
	ListForSeason(ctx context.Context, leagueID int64, season int) ([]TopScorer, error)
}
