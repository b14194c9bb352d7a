package team

import "context"

// Repository persists teams and answers existence checks the Dependency
// Resolver consults before any fixture write (§4.5).
type Repository interface {
	Upsert(ctx context.Context, t Team) error
	Exists(ctx context.Context, id int64) (bool, error)
	ExistsAll(ctx context.Context, ids []int64) (map[int64]bool, error)
	GetByID(ctx context.Context, id int64) (Team, bool, error)
}
