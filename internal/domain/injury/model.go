package injury

import (
	"context"
	"time"
)

// Injury is upserted from /injuries. InjuryKey is a deterministic hash of
// (team, player, type, reason, date) since the provider does not hand out a
// stable injury id (§4.6, mirrors the fixtureevent.EventKey pattern).
type Injury struct {
	LeagueID  int64
	Season    int
	InjuryKey string

	TeamID   int64
	PlayerID int64
	Type     string
	Reason   string
	Date     time.Time
}

type Repository interface {
	Upsert(ctx context.Context, i Injury) error
	UpsertMany(ctx context.Context, items []Injury) error
	ListForSeason(ctx context.Context, leagueID int64, season int) ([]Injury, error)
}
