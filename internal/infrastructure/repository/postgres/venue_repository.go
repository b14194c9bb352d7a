package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/venue"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type venueTableModel struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	City     string `db:"city"`
	Country  string `db:"country"`
	Capacity int    `db:"capacity"`
	Surface  string `db:"surface"`
}

type VenueRepository struct {
	db *sqlx.DB
}

func NewVenueRepository(db *sqlx.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

func (r *VenueRepository) Upsert(ctx context.Context, v venue.Venue) error {
	model := venueTableModel{ID: v.ID, Name: v.Name, City: v.City, Country: v.Country, Capacity: v.Capacity, Surface: v.Surface}
	query, args, err := qb.InsertModel("core_venues", model, `ON CONFLICT (id)
DO UPDATE SET
    name = EXCLUDED.name,
    city = EXCLUDED.city,
    country = EXCLUDED.country,
    capacity = EXCLUDED.capacity,
    surface = EXCLUDED.surface`)
	if err != nil {
		return fmt.Errorf("build upsert venue query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert venue id=%d: %w", v.ID, err)
	}
	return nil
}

func (r *VenueRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query, args, err := qb.Select("1").From("core_venues").Where(qb.Eq("id", id)).Limit(1).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build venue exists query: %w", err)
	}

	var found int
	if err := r.db.GetContext(ctx, &found, query, args...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check venue exists id=%d: %w", id, err)
	}
	return true, nil
}

func (r *VenueRepository) GetByID(ctx context.Context, id int64) (venue.Venue, bool, error) {
	query, args, err := qb.Select("id", "name", "city", "country", "capacity", "surface").
		From("core_venues").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return venue.Venue{}, false, fmt.Errorf("build get venue query: %w", err)
	}

	var row venueTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return venue.Venue{}, false, nil
		}
		return venue.Venue{}, false, fmt.Errorf("get venue id=%d: %w", id, err)
	}

	return venue.Venue{ID: row.ID, Name: row.Name, City: row.City, Country: row.Country, Capacity: row.Capacity, Surface: row.Surface}, true, nil
}
