package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/league"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type leagueTableModel struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Type        string `db:"type"`
	CountryCode string `db:"country_code"`
	SeasonsJSON []byte `db:"seasons_json"`
}

type LeagueRepository struct {
	db *sqlx.DB
}

func NewLeagueRepository(db *sqlx.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

func (r *LeagueRepository) Upsert(ctx context.Context, l league.League) error {
	model := leagueTableModel{
		ID:          l.ID,
		Name:        l.Name,
		Type:        string(l.Type),
		CountryCode: l.CountryCode,
		SeasonsJSON: jsonOrEmptyObject(l.SeasonsJSON),
	}
	query, args, err := qb.InsertModel("core_leagues", model, `ON CONFLICT (id)
DO UPDATE SET
    name = EXCLUDED.name,
    type = EXCLUDED.type,
    country_code = EXCLUDED.country_code,
    seasons_json = EXCLUDED.seasons_json`)
	if err != nil {
		return fmt.Errorf("build upsert league query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert league id=%d: %w", l.ID, err)
	}
	return nil
}

func (r *LeagueRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query, args, err := qb.Select("1").From("core_leagues").Where(qb.Eq("id", id)).Limit(1).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build league exists query: %w", err)
	}

	var found int
	if err := r.db.GetContext(ctx, &found, query, args...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check league exists id=%d: %w", id, err)
	}
	return true, nil
}

func (r *LeagueRepository) GetByID(ctx context.Context, id int64) (league.League, bool, error) {
	query, args, err := qb.Select("id", "name", "type", "country_code", "seasons_json").
		From("core_leagues").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return league.League{}, false, fmt.Errorf("build get league by id query: %w", err)
	}

	var row leagueTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return league.League{}, false, nil
		}
		return league.League{}, false, fmt.Errorf("get league by id: %w", err)
	}

	return leagueFromRow(row), true, nil
}

func (r *LeagueRepository) List(ctx context.Context) ([]league.League, error) {
	query, args, err := qb.Select("id", "name", "type", "country_code", "seasons_json").
		From("core_leagues").OrderBy("id").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list leagues query: %w", err)
	}

	var rows []leagueTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list leagues: %w", err)
	}

	out := make([]league.League, 0, len(rows))
	for _, row := range rows {
		out = append(out, leagueFromRow(row))
	}
	return out, nil
}

func leagueFromRow(row leagueTableModel) league.League {
	return league.League{
		ID:          row.ID,
		Name:        row.Name,
		Type:        league.Type(row.Type),
		CountryCode: row.CountryCode,
		SeasonsJSON: row.SeasonsJSON,
	}
}
