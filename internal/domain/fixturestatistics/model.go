package fixturestatistics

import (
	"context"
	"encoding/json"
)

// Statistics is upserted by (fixture, team) from /fixtures/statistics. The
// provider's stat list is heterogeneous across competitions, so it is kept
// as an opaque blob alongside the composite key (§4.6, §9).
type Statistics struct {
	FixtureID int64
	TeamID    int64
	StatsJSON json.RawMessage
}

type Repository interface {
	Upsert(ctx context.Context, s Statistics) error
	ListByFixture(ctx context.Context, fixtureID int64) ([]Statistics, error)
}
