package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/fixtureevent"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type fixtureEventTableModel struct {
	FixtureID int64         `db:"fixture_id"`
	EventKey  string        `db:"event_key"`
	Minute    int           `db:"minute"`
	Extra     sql.NullInt64 `db:"extra"`
	Type      string        `db:"type"`
	Detail    string        `db:"detail"`
	TeamID    sql.NullInt64 `db:"team_id"`
	PlayerID  sql.NullInt64 `db:"player_id"`
}

type FixtureEventRepository struct {
	db *sqlx.DB
}

func NewFixtureEventRepository(db *sqlx.DB) *FixtureEventRepository {
	return &FixtureEventRepository{db: db}
}

func (r *FixtureEventRepository) Upsert(ctx context.Context, e fixtureevent.Event) error {
	return r.upsertTx(ctx, r.db, e)
}

func (r *FixtureEventRepository) UpsertMany(ctx context.Context, events []fixtureevent.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert fixture events: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range events {
		if err := r.upsertTx(ctx, tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert fixture events tx: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *FixtureEventRepository) upsertTx(ctx context.Context, ex execer, e fixtureevent.Event) error {
	model := fixtureEventTableModel{
		FixtureID: e.FixtureID,
		EventKey:  e.EventKey,
		Minute:    e.Minute,
		Extra:     nullIntPtr(e.Extra),
		Type:      e.Type,
		Detail:    e.Detail,
		TeamID:    nullInt64Ptr(e.TeamID),
		PlayerID:  nullInt64Ptr(e.PlayerID),
	}
	query, args, err := qb.InsertModel("core_fixture_events", model, `ON CONFLICT (fixture_id, event_key)
DO UPDATE SET
    minute = EXCLUDED.minute,
    extra = EXCLUDED.extra,
    type = EXCLUDED.type,
    detail = EXCLUDED.detail,
    team_id = EXCLUDED.team_id,
    player_id = EXCLUDED.player_id`)
	if err != nil {
		return fmt.Errorf("build upsert fixture event query: %w", err)
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert fixture event fixture_id=%d event_key=%s: %w", e.FixtureID, e.EventKey, err)
	}
	return nil
}

func (r *FixtureEventRepository) ListByFixture(ctx context.Context, fixtureID int64) ([]fixtureevent.Event, error) {
	query, args, err := qb.Select("fixture_id", "event_key", "minute", "extra", "type", "detail", "team_id", "player_id").
		From("core_fixture_events").Where(qb.Eq("fixture_id", fixtureID)).OrderBy("minute").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list fixture events query: %w", err)
	}

	var rows []fixtureEventTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list fixture events fixture_id=%d: %w", fixtureID, err)
	}

	out := make([]fixtureevent.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, fixtureevent.Event{
			FixtureID: row.FixtureID,
			EventKey:  row.EventKey,
			Minute:    row.Minute,
			Extra:     intPtrFromNullInt64(row.Extra),
			Type:      row.Type,
			Detail:    row.Detail,
			TeamID:    ptrFromNullInt64(row.TeamID),
			PlayerID:  ptrFromNullInt64(row.PlayerID),
		})
	}
	return out, nil
}
