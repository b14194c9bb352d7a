package league

import "context"

// Repository persists leagues and answers existence checks the Dependency
// Resolver consults before any fixture write (§4.5).
type Repository interface {
	Upsert(ctx context.Context, l League) error
	Exists(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (League, bool, error)
	List(ctx context.Context) ([]League, error)
}
