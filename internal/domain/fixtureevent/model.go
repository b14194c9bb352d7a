package fixtureevent

import "context"

// Event is upserted from /fixtures/events. EventKey is a deterministic hash
// of (minute, extra, team, player, type, detail) so replays are idempotent
// even though the upstream does not hand out a stable event id (§4.6).
type Event struct {
	FixtureID int64
	EventKey  string

	Minute int
	Extra  *int
	Type   string
	Detail string
	TeamID *int64
	PlayerID *int64
}

// Repository upserts fixture events keyed by (fixture_id, event_key).
type Repository interface {
	Upsert(ctx context.Context, e Event) error
	UpsertMany(ctx context.Context, events []Event) error
	ListByFixture(ctx context.Context, fixtureID int64) ([]Event, error)
}
