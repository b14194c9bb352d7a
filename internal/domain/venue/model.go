package venue

import (
	"context"
	"fmt"
)

// Venue is a stadium referenced by teams and fixtures.
type Venue struct {
	ID       int64
	Name     string
	City     string
	Country  string
	Capacity int
	Surface  string
}

func (v Venue) Validate() error {
	if v.ID == 0 {
		return fmt.Errorf("venue id is required")
	}
	if v.Name == "" {
		return fmt.Errorf("venue name is required")
	}
	return nil
}

// Repository upserts venues opportunistically discovered from other payloads.
type Repository interface {
	Upsert(ctx context.Context, v Venue) error
	Exists(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (Venue, bool, error)
}
