package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/backfillprogress"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type backfillProgressTableModel struct {
	JobID    string `db:"job_id"`
	LeagueID int64  `db:"league_id"`
	Season   int    `db:"season"`

	NextWindowIndex int       `db:"next_window_index"`
	Completed       bool      `db:"completed"`
	LastError       string    `db:"last_error"`
	LastRunAt       time.Time `db:"last_run_at"`
}

type BackfillProgressRepository struct {
	db *sqlx.DB
}

func NewBackfillProgressRepository(db *sqlx.DB) *BackfillProgressRepository {
	return &BackfillProgressRepository{db: db}
}

func (r *BackfillProgressRepository) Get(ctx context.Context, jobID string, leagueID int64, season int) (backfillprogress.Progress, bool, error) {
	query, args, err := qb.Select("job_id", "league_id", "season", "next_window_index", "completed", "last_error", "last_run_at").
		From("ops_backfill_progress").
		Where(qb.Eq("job_id", jobID), qb.Eq("league_id", leagueID), qb.Eq("season", season)).
		ToSQL()
	if err != nil {
		return backfillprogress.Progress{}, false, fmt.Errorf("build get backfill progress query: %w", err)
	}

	var row backfillProgressTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return backfillprogress.Progress{}, false, nil
		}
		return backfillprogress.Progress{}, false, fmt.Errorf("get backfill progress job_id=%s league_id=%d season=%d: %w", jobID, leagueID, season, err)
	}

	return progressFromRow(row), true, nil
}

func (r *BackfillProgressRepository) EnsureCreated(ctx context.Context, jobID string, leagueID int64, season int) (backfillprogress.Progress, error) {
	model := backfillProgressTableModel{
		JobID: jobID, LeagueID: leagueID, Season: season,
		NextWindowIndex: 0, Completed: false, LastError: "", LastRunAt: time.Time{},
	}
	query, args, err := qb.InsertModel("ops_backfill_progress", model, `ON CONFLICT (job_id, league_id, season) DO NOTHING`)
	if err != nil {
		return backfillprogress.Progress{}, fmt.Errorf("build ensure backfill progress query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return backfillprogress.Progress{}, fmt.Errorf("ensure backfill progress job_id=%s league_id=%d season=%d: %w", jobID, leagueID, season, err)
	}

	existing, found, err := r.Get(ctx, jobID, leagueID, season)
	if err != nil {
		return backfillprogress.Progress{}, err
	}
	if !found {
		return backfillprogress.Progress{}, fmt.Errorf("backfill progress job_id=%s league_id=%d season=%d missing after ensure", jobID, leagueID, season)
	}
	return existing, nil
}

func (r *BackfillProgressRepository) ListNotCompleted(ctx context.Context, jobID string, limit int) ([]backfillprogress.Progress, error) {
	query, args, err := qb.Select("job_id", "league_id", "season", "next_window_index", "completed", "last_error", "last_run_at").
		From("ops_backfill_progress").
		Where(qb.Eq("job_id", jobID), qb.Eq("completed", false)).
		OrderBy("last_run_at").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list incomplete backfill progress query: %w", err)
	}

	var rows []backfillProgressTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list incomplete backfill progress job_id=%s: %w", jobID, err)
	}

	out := make([]backfillprogress.Progress, 0, len(rows))
	for _, row := range rows {
		out = append(out, progressFromRow(row))
	}
	return out, nil
}

func (r *BackfillProgressRepository) AdvanceWindow(ctx context.Context, jobID string, leagueID int64, season int, nextWindowIndex int, completed bool, now time.Time) error {
	query, args, err := qb.Update("ops_backfill_progress").
		Set("next_window_index", nextWindowIndex).
		Set("completed", completed).
		Set("last_error", "").
		Set("last_run_at", now).
		Where(qb.Eq("job_id", jobID), qb.Eq("league_id", leagueID), qb.Eq("season", season)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build advance backfill window query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("advance backfill window job_id=%s league_id=%d season=%d: %w", jobID, leagueID, season, err)
	}
	return nil
}

func (r *BackfillProgressRepository) RecordError(ctx context.Context, jobID string, leagueID int64, season int, errMsg string, now time.Time) error {
	query, args, err := qb.Update("ops_backfill_progress").
		Set("last_error", errMsg).
		Set("last_run_at", now).
		Where(qb.Eq("job_id", jobID), qb.Eq("league_id", leagueID), qb.Eq("season", season)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build record backfill error query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record backfill error job_id=%s league_id=%d season=%d: %w", jobID, leagueID, season, err)
	}
	return nil
}

func progressFromRow(row backfillProgressTableModel) backfillprogress.Progress {
	return backfillprogress.Progress{
		JobID: row.JobID, LeagueID: row.LeagueID, Season: row.Season,
		NextWindowIndex: row.NextWindowIndex, Completed: row.Completed,
		LastError: row.LastError, LastRunAt: row.LastRunAt,
	}
}
