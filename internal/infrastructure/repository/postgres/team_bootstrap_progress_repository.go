package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type teamBootstrapProgressTableModel struct {
	LeagueID  int64 `db:"league_id"`
	Season    int   `db:"season"`
	Completed bool  `db:"completed"`
}

type TeamBootstrapProgressRepository struct {
	db *sqlx.DB
}

func NewTeamBootstrapProgressRepository(db *sqlx.DB) *TeamBootstrapProgressRepository {
	return &TeamBootstrapProgressRepository{db: db}
}

func (r *TeamBootstrapProgressRepository) IsCompleted(ctx context.Context, leagueID int64, season int) (bool, error) {
	query, args, err := qb.Select("completed").From("ops_team_bootstrap_progress").
		Where(qb.Eq("league_id", leagueID), qb.Eq("season", season)).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build is completed team bootstrap query: %w", err)
	}

	var completed bool
	if err := r.db.GetContext(ctx, &completed, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("is completed team bootstrap league_id=%d season=%d: %w", leagueID, season, err)
	}
	return completed, nil
}

func (r *TeamBootstrapProgressRepository) MarkCompleted(ctx context.Context, leagueID int64, season int) error {
	model := teamBootstrapProgressTableModel{LeagueID: leagueID, Season: season, Completed: true}
	query, args, err := qb.InsertModel("ops_team_bootstrap_progress", model, `ON CONFLICT (league_id, season)
DO UPDATE SET completed = EXCLUDED.completed`)
	if err != nil {
		return fmt.Errorf("build mark team bootstrap completed query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark team bootstrap completed league_id=%d season=%d: %w", leagueID, season, err)
	}
	return nil
}
