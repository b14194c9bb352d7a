package fixturelineup

import (
	"context"
	"encoding/json"
)

// Lineup is upserted by (fixture, team) from /fixtures/lineups.
type Lineup struct {
	FixtureID   int64
	TeamID      int64
	Formation   string
	StartXIJSON json.RawMessage
	SubsJSON    json.RawMessage
	Coach       string
	ColoursJSON json.RawMessage
}

type Repository interface {
	Upsert(ctx context.Context, l Lineup) error
	ListByFixture(ctx context.Context, fixtureID int64) ([]Lineup, error)
}
