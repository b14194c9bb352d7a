package country

import "context"

// Country is a static bootstrap entity keyed by its ISO code.
type Country struct {
	ISOCode string
	Name    string
	Flag    string
}

// Repository persists the country bootstrap set.
type Repository interface {
	UpsertMany(ctx context.Context, countries []Country) error
	List(ctx context.Context) ([]Country, error)
}
