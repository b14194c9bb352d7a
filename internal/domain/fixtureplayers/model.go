package fixtureplayers

import (
	"context"
	"encoding/json"
)

// PlayerStats is upserted by (fixture, team, player) from /fixtures/players.
type PlayerStats struct {
	FixtureID int64
	TeamID    int64
	PlayerID  int64
	StatsJSON json.RawMessage
}

type Repository interface {
	Upsert(ctx context.Context, p PlayerStats) error
	ListByFixture(ctx context.Context, fixtureID int64) ([]PlayerStats, error)
}
