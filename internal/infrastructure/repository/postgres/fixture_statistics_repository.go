package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/fixturestatistics"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type fixtureStatisticsTableModel struct {
	FixtureID int64  `db:"fixture_id"`
	TeamID    int64  `db:"team_id"`
	StatsJSON []byte `db:"stats_json"`
}

type FixtureStatisticsRepository struct {
	db *sqlx.DB
}

func NewFixtureStatisticsRepository(db *sqlx.DB) *FixtureStatisticsRepository {
	return &FixtureStatisticsRepository{db: db}
}

func (r *FixtureStatisticsRepository) Upsert(ctx context.Context, s fixturestatistics.Statistics) error {
	model := fixtureStatisticsTableModel{
		FixtureID: s.FixtureID,
		TeamID:    s.TeamID,
		StatsJSON: jsonOrEmptyObject(s.StatsJSON),
	}
	query, args, err := qb.InsertModel("core_fixture_statistics", model, `ON CONFLICT (fixture_id, team_id)
DO UPDATE SET stats_json = EXCLUDED.stats_json`)
	if err != nil {
		return fmt.Errorf("build upsert fixture statistics query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert fixture statistics fixture_id=%d team_id=%d: %w", s.FixtureID, s.TeamID, err)
	}
	return nil
}

func (r *FixtureStatisticsRepository) ListByFixture(ctx context.Context, fixtureID int64) ([]fixturestatistics.Statistics, error) {
	query, args, err := qb.Select("fixture_id", "team_id", "stats_json").
		From("core_fixture_statistics").Where(qb.Eq("fixture_id", fixtureID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list fixture statistics query: %w", err)
	}

	var rows []fixtureStatisticsTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list fixture statistics fixture_id=%d: %w", fixtureID, err)
	}

	out := make([]fixturestatistics.Statistics, 0, len(rows))
	for _, row := range rows {
		out = append(out, fixturestatistics.Statistics{FixtureID: row.FixtureID, TeamID: row.TeamID, StatsJSON: row.StatsJSON})
	}
	return out, nil
}
