package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/coveragestatus"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type coverageStatusTableModel struct {
	LeagueID int64  `db:"league_id"`
	Season   int    `db:"season"`
	Endpoint string `db:"endpoint"`

	CountCoverage     sql.NullFloat64 `db:"count_coverage"`
	FreshnessCoverage float64         `db:"freshness_coverage"`
	PipelineCoverage  float64         `db:"pipeline_coverage"`
	Overall           float64         `db:"overall"`

	LagMinutes float64 `db:"lag_minutes"`
	FlagsJSON  []byte  `db:"flags_json"`

	UpdatedAt sql.NullTime `db:"updated_at"`
}

type CoverageStatusRepository struct {
	db *sqlx.DB
}

func NewCoverageStatusRepository(db *sqlx.DB) *CoverageStatusRepository {
	return &CoverageStatusRepository{db: db}
}

// Replace recomputes and overwrites the single row for (league, season,
// endpoint); a coverage row is always a fresh snapshot, never merged with
// the previous one (§4.7).
func (r *CoverageStatusRepository) Replace(ctx context.Context, s coveragestatus.Status) error {
	model := coverageStatusTableModel{
		LeagueID: s.LeagueID, Season: s.Season, Endpoint: s.Endpoint,
		FreshnessCoverage: s.FreshnessCoverage, PipelineCoverage: s.PipelineCoverage, Overall: s.Overall,
		LagMinutes: s.LagMinutes, FlagsJSON: jsonOrEmptyObject(s.FlagsJSON),
		UpdatedAt: sql.NullTime{Time: s.UpdatedAt, Valid: true},
	}
	if s.CountCoverage != nil {
		model.CountCoverage = sql.NullFloat64{Float64: *s.CountCoverage, Valid: true}
	}

	query, args, err := qb.InsertModel("mart_coverage_status", model, `ON CONFLICT (league_id, season, endpoint)
DO UPDATE SET
    count_coverage = EXCLUDED.count_coverage,
    freshness_coverage = EXCLUDED.freshness_coverage,
    pipeline_coverage = EXCLUDED.pipeline_coverage,
    overall = EXCLUDED.overall,
    lag_minutes = EXCLUDED.lag_minutes,
    flags_json = EXCLUDED.flags_json,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build replace coverage status query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("replace coverage status league_id=%d season=%d endpoint=%s: %w", s.LeagueID, s.Season, s.Endpoint, err)
	}
	return nil
}

func (r *CoverageStatusRepository) Get(ctx context.Context, leagueID int64, season int, endpoint string) (coveragestatus.Status, bool, error) {
	query, args, err := qb.Select("league_id", "season", "endpoint", "count_coverage", "freshness_coverage",
		"pipeline_coverage", "overall", "lag_minutes", "flags_json", "updated_at").
		From("mart_coverage_status").
		Where(qb.Eq("league_id", leagueID), qb.Eq("season", season), qb.Eq("endpoint", endpoint)).
		ToSQL()
	if err != nil {
		return coveragestatus.Status{}, false, fmt.Errorf("build get coverage status query: %w", err)
	}

	var row coverageStatusTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return coveragestatus.Status{}, false, nil
		}
		return coveragestatus.Status{}, false, fmt.Errorf("get coverage status league_id=%d season=%d endpoint=%s: %w", leagueID, season, endpoint, err)
	}

	out := coveragestatus.Status{
		LeagueID: row.LeagueID, Season: row.Season, Endpoint: row.Endpoint,
		FreshnessCoverage: row.FreshnessCoverage, PipelineCoverage: row.PipelineCoverage, Overall: row.Overall,
		LagMinutes: row.LagMinutes, FlagsJSON: row.FlagsJSON,
	}
	if row.CountCoverage.Valid {
		v := row.CountCoverage.Float64
		out.CountCoverage = &v
	}
	if row.UpdatedAt.Valid {
		out.UpdatedAt = row.UpdatedAt.Time
	}
	return out, true, nil
}
