package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/fixtureplayers"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type fixturePlayersTableModel struct {
	FixtureID int64  `db:"fixture_id"`
	TeamID    int64  `db:"team_id"`
	PlayerID  int64  `db:"player_id"`
	StatsJSON []byte `db:"stats_json"`
}

type FixturePlayersRepository struct {
	db *sqlx.DB
}

func NewFixturePlayersRepository(db *sqlx.DB) *FixturePlayersRepository {
	return &FixturePlayersRepository{db: db}
}

func (r *FixturePlayersRepository) Upsert(ctx context.Context, p fixtureplayers.PlayerStats) error {
	model := fixturePlayersTableModel{
		FixtureID: p.FixtureID,
		TeamID:    p.TeamID,
		PlayerID:  p.PlayerID,
		StatsJSON: jsonOrEmptyObject(p.StatsJSON),
	}
	query, args, err := qb.InsertModel("core_fixture_players", model, `ON CONFLICT (fixture_id, team_id, player_id)
DO UPDATE SET stats_json = EXCLUDED.stats_json`)
	if err != nil {
		return fmt.Errorf("build upsert fixture players query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert fixture players fixture_id=%d team_id=%d player_id=%d: %w", p.FixtureID, p.TeamID, p.PlayerID, err)
	}
	return nil
}

func (r *FixturePlayersRepository) ListByFixture(ctx context.Context, fixtureID int64) ([]fixtureplayers.PlayerStats, error) {
	query, args, err := qb.Select("fixture_id", "team_id", "player_id", "stats_json").
		From("core_fixture_players").Where(qb.Eq("fixture_id", fixtureID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list fixture players query: %w", err)
	}

	var rows []fixturePlayersTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list fixture players fixture_id=%d: %w", fixtureID, err)
	}

	out := make([]fixtureplayers.PlayerStats, 0, len(rows))
	for _, row := range rows {
		out = append(out, fixtureplayers.PlayerStats{FixtureID: row.FixtureID, TeamID: row.TeamID, PlayerID: row.PlayerID, StatsJSON: row.StatsJSON})
	}
	return out, nil
}
