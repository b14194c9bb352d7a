package teamstatistics

import (
	"context"
	"encoding/json"
)

// Statistics is upserted by (league, season, team) from /teams/statistics.
// The provider's season profile is a deep, competition-specific structure
// kept as an opaque blob (§4.6, §9).
type Statistics struct {
	LeagueID int64
	Season   int
	TeamID   int64

	ProfileJSON json.RawMessage
}

type Repository interface {
	Upsert(ctx context.Context, s Statistics) error
	GetForSeason(ctx context.Context, leagueID int64, season int, teamID int64) (Statistics, bool, error)
}
