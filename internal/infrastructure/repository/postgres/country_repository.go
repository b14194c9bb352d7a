package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/country"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type countryTableModel struct {
	ISOCode string `db:"iso_code"`
	Name    string `db:"name"`
	Flag    string `db:"flag"`
}

type CountryRepository struct {
	db *sqlx.DB
}

func NewCountryRepository(db *sqlx.DB) *CountryRepository {
	return &CountryRepository{db: db}
}

func (r *CountryRepository) UpsertMany(ctx context.Context, countries []country.Country) error {
	if len(countries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert countries: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range countries {
		model := countryTableModel{ISOCode: c.ISOCode, Name: c.Name, Flag: c.Flag}
		query, args, err := qb.InsertModel("core_countries", model, `ON CONFLICT (iso_code)
DO UPDATE SET name = EXCLUDED.name, flag = EXCLUDED.flag`)
		if err != nil {
			return fmt.Errorf("build upsert country query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert country iso_code=%s: %w", c.ISOCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert countries tx: %w", err)
	}
	return nil
}

func (r *CountryRepository) List(ctx context.Context) ([]country.Country, error) {
	query, args, err := qb.Select("iso_code", "name", "flag").From("core_countries").OrderBy("name").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list countries query: %w", err)
	}

	var rows []countryTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}

	out := make([]country.Country, 0, len(rows))
	for _, row := range rows {
		out = append(out, country.Country{ISOCode: row.ISOCode, Name: row.Name, Flag: row.Flag})
	}
	return out, nil
}
