package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/fixturelineup"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type fixtureLineupTableModel struct {
	FixtureID   int64  `db:"fixture_id"`
	TeamID      int64  `db:"team_id"`
	Formation   string `db:"formation"`
	StartXIJSON []byte `db:"start_xi_json"`
	SubsJSON    []byte `db:"subs_json"`
	Coach       string `db:"coach"`
	ColoursJSON []byte `db:"colours_json"`
}

type FixtureLineupRepository struct {
	db *sqlx.DB
}

func NewFixtureLineupRepository(db *sqlx.DB) *FixtureLineupRepository {
	return &FixtureLineupRepository{db: db}
}

func (r *FixtureLineupRepository) Upsert(ctx context.Context, l fixturelineup.Lineup) error {
	model := fixtureLineupTableModel{
		FixtureID:   l.FixtureID,
		TeamID:      l.TeamID,
		Formation:   l.Formation,
		StartXIJSON: jsonOrEmptyArray(l.StartXIJSON),
		SubsJSON:    jsonOrEmptyArray(l.SubsJSON),
		Coach:       l.Coach,
		ColoursJSON: jsonOrEmptyObject(l.ColoursJSON),
	}
	query, args, err := qb.InsertModel("core_fixture_lineups", model, `ON CONFLICT (fixture_id, team_id)
DO UPDATE SET
    formation = EXCLUDED.formation,
    start_xi_json = EXCLUDED.start_xi_json,
    subs_json = EXCLUDED.subs_json,
    coach = EXCLUDED.coach,
    colours_json = EXCLUDED.colours_json`)
	if err != nil {
		return fmt.Errorf("build upsert fixture lineup query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert fixture lineup fixture_id=%d team_id=%d: %w", l.FixtureID, l.TeamID, err)
	}
	return nil
}

func (r *FixtureLineupRepository) ListByFixture(ctx context.Context, fixtureID int64) ([]fixturelineup.Lineup, error) {
	query, args, err := qb.Select("fixture_id", "team_id", "formation", "start_xi_json", "subs_json", "coach", "colours_json").
		From("core_fixture_lineups").Where(qb.Eq("fixture_id", fixtureID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list fixture lineups query: %w", err)
	}

	var rows []fixtureLineupTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list fixture lineups fixture_id=%d: %w", fixtureID, err)
	}

	out := make([]fixturelineup.Lineup, 0, len(rows))
	for _, row := range rows {
		out = append(out, fixturelineup.Lineup{
			FixtureID: row.FixtureID, TeamID: row.TeamID, Formation: row.Formation,
			StartXIJSON: row.StartXIJSON, SubsJSON: row.SubsJSON, Coach: row.Coach, ColoursJSON: row.ColoursJSON,
		})
	}
	return out, nil
}
