package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/team"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type teamTableModel struct {
	ID          int64         `db:"id"`
	Name        string        `db:"name"`
	CountryCode string        `db:"country_code"`
	Founded     int           `db:"founded"`
	VenueID     sql.NullInt64 `db:"venue_id"`
}

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) Upsert(ctx context.Context, t team.Team) error {
	model := teamTableModel{
		ID:          t.ID,
		Name:        t.Name,
		CountryCode: t.CountryCode,
		Founded:     t.Founded,
		VenueID:     nullInt64Ptr(t.VenueID),
	}
	query, args, err := qb.InsertModel("core_teams", model, `ON CONFLICT (id)
DO UPDATE SET
    name = EXCLUDED.name,
    country_code = EXCLUDED.country_code,
    founded = EXCLUDED.founded,
    venue_id = EXCLUDED.venue_id`)
	if err != nil {
		return fmt.Errorf("build upsert team query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert team id=%d: %w", t.ID, err)
	}
	return nil
}

func (r *TeamRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query, args, err := qb.Select("1").From("core_teams").Where(qb.Eq("id", id)).Limit(1).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build team exists query: %w", err)
	}

	var found int
	if err := r.db.GetContext(ctx, &found, query, args...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check team exists id=%d: %w", id, err)
	}
	return true, nil
}

func (r *TeamRepository) ExistsAll(ctx context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	values := make([]any, 0, len(ids))
	for _, id := range ids {
		out[id] = false
		values = append(values, id)
	}

	query, args, err := qb.Select("id").From("core_teams").Where(qb.In("id", values)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build teams exists-all query: %w", err)
	}

	var found []int64
	if err := r.db.SelectContext(ctx, &found, query, args...); err != nil {
		return nil, fmt.Errorf("select teams exists-all: %w", err)
	}

	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (r *TeamRepository) GetByID(ctx context.Context, id int64) (team.Team, bool, error) {
	query, args, err := qb.Select("id", "name", "country_code", "founded", "venue_id").
		From("core_teams").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return team.Team{}, false, fmt.Errorf("build get team by id query: %w", err)
	}

	var row teamTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return team.Team{}, false, nil
		}
		return team.Team{}, false, fmt.Errorf("get team by id: %w", err)
	}

	return team.Team{
		ID:          row.ID,
		Name:        row.Name,
		CountryCode: row.CountryCode,
		Founded:     row.Founded,
		VenueID:     ptrFromNullInt64(row.VenueID),
	}, true, nil
}
