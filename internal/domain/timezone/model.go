package timezone

import "context"

// Timezone is a static bootstrap entity identified by its IANA name.
type Timezone struct {
	Name string
}

// Repository persists the timezone bootstrap set.
type Repository interface {
	UpsertMany(ctx context.Context, zones []Timezone) error
	List(ctx context.Context) ([]Timezone, error)
}
