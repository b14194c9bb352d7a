package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/timezone"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type timezoneTableModel struct {
	Name string `db:"name"`
}

type TimezoneRepository struct {
	db *sqlx.DB
}

func NewTimezoneRepository(db *sqlx.DB) *TimezoneRepository {
	return &TimezoneRepository{db: db}
}

func (r *TimezoneRepository) UpsertMany(ctx context.Context, zones []timezone.Timezone) error {
	if len(zones) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert timezones: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, z := range zones {
		model := timezoneTableModel{Name: z.Name}
		query, args, err := qb.InsertModel("core_timezones", model, `ON CONFLICT (name) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("build upsert timezone query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert timezone name=%s: %w", z.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert timezones tx: %w", err)
	}
	return nil
}

func (r *TimezoneRepository) List(ctx context.Context) ([]timezone.Timezone, error) {
	query, args, err := qb.Select("name").From("core_timezones").OrderBy("name").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list timezones query: %w", err)
	}

	var rows []timezoneTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list timezones: %w", err)
	}

	out := make([]timezone.Timezone, 0, len(rows))
	for _, row := range rows {
		out = append(out, timezone.Timezone{Name: row.Name})
	}
	return out, nil
}
