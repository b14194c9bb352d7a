package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/standingsrefreshprogress"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type standingsRefreshProgressTableModel struct {
	JobID          string       `db:"job_id"`
	Cursor         int          `db:"cursor"`
	TotalPairs     int          `db:"total_pairs"`
	LapCount       int          `db:"lap_count"`
	LastFullPassAt sql.NullTime `db:"last_full_pass_at"`
}

type StandingsRefreshProgressRepository struct {
	db *sqlx.DB
}

func NewStandingsRefreshProgressRepository(db *sqlx.DB) *StandingsRefreshProgressRepository {
	return &StandingsRefreshProgressRepository{db: db}
}

func (r *StandingsRefreshProgressRepository) Get(ctx context.Context, jobID string) (standingsrefreshprogress.Progress, bool, error) {
	query, args, err := qb.Select("job_id", "cursor", "total_pairs", "lap_count", "last_full_pass_at").
		From("ops_standings_refresh_progress").
		Where(qb.Eq("job_id", jobID)).
		ToSQL()
	if err != nil {
		return standingsrefreshprogress.Progress{}, false, fmt.Errorf("build get standings refresh progress query: %w", err)
	}

	var row standingsRefreshProgressTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return standingsrefreshprogress.Progress{}, false, nil
		}
		return standingsrefreshprogress.Progress{}, false, fmt.Errorf("get standings refresh progress job_id=%s: %w", jobID, err)
	}

	out := standingsrefreshprogress.Progress{
		JobID: row.JobID, Cursor: row.Cursor, TotalPairs: row.TotalPairs, LapCount: row.LapCount,
	}
	if row.LastFullPassAt.Valid {
		t := row.LastFullPassAt.Time
		out.LastFullPassAt = &t
	}
	return out, true, nil
}

func (r *StandingsRefreshProgressRepository) Advance(ctx context.Context, jobID string, cursor, totalPairs int, lapCompleted bool, now time.Time) error {
	model := standingsRefreshProgressTableModel{
		JobID: jobID, Cursor: cursor, TotalPairs: totalPairs,
		LapCount: boolToLapIncrement(lapCompleted),
	}
	if lapCompleted {
		model.LastFullPassAt = sql.NullTime{Time: now, Valid: true}
	}

	query, args, err := qb.InsertModel("ops_standings_refresh_progress", model, `ON CONFLICT (job_id)
DO UPDATE SET
    cursor = EXCLUDED.cursor,
    total_pairs = EXCLUDED.total_pairs,
    lap_count = ops_standings_refresh_progress.lap_count + EXCLUDED.lap_count,
    last_full_pass_at = COALESCE(EXCLUDED.last_full_pass_at, ops_standings_refresh_progress.last_full_pass_at)`)
	if err != nil {
		return fmt.Errorf("build advance standings refresh progress query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("advance standings refresh progress job_id=%s: %w", jobID, err)
	}
	return nil
}

func boolToLapIncrement(lapCompleted bool) int {
	if lapCompleted {
		return 1
	}
	return 0
}
