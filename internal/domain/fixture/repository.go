package fixture

import (
	"context"
	"time"
)

// Repository persists fixtures and exposes the selections the reconciler
// sub-jobs need (§4.10).
type Repository interface {
	Upsert(ctx context.Context, f Fixture) error
	GetByID(ctx context.Context, id int64) (Fixture, bool, error)

	// ListAutoFinishCandidates returns tracked-league fixtures in a liveish
	// status whose kickoff and last update are both old enough (§4.10.1).
	ListAutoFinishCandidates(ctx context.Context, leagueIDs []int64, kickoffBefore, updatedBefore time.Time) ([]Fixture, error)
	// ListNeedingVerification returns fixtures flagged for re-verification (§4.10.2).
	ListNeedingVerification(ctx context.Context, cooldownBefore time.Time, limit int) ([]Fixture, error)
	// ListStaleLive returns liveish fixtures whose updated_at is older than threshold (§4.10.3).
	ListStaleLive(ctx context.Context, staleBefore time.Time, limit int) ([]Fixture, error)
	// ListPastKickoffPending returns NS/TBD fixtures whose kickoff has passed (§4.10 fourth sibling).
	ListPastKickoffPending(ctx context.Context, kickoffBefore time.Time, limit int) ([]Fixture, error)

	ForceFinish(ctx context.Context, id int64, now time.Time) error
	SetVerificationState(ctx context.Context, id int64, state VerificationState, attemptedAt time.Time) error
}
