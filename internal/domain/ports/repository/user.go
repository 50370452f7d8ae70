package repository

import (
	"context"

	"activity-engine/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByIDs(ctx context.Context, tx Tx, ids []string) ([]*model.User, error)

	// ConsumeEntitlement applies the side effect of e with a conditional write.
	// Returns domain.ErrNoEntitlement when the entitlement is no longer available.
	ConsumeEntitlement(ctx context.Context, tx Tx, userID string, e model.Entitlement) error

	// AddJoinedActivity and RemoveJoinedActivity are idempotent set operations.
	AddJoinedActivity(ctx context.Context, tx Tx, userID, activityID string) error
	RemoveJoinedActivity(ctx context.Context, tx Tx, userID, activityID string) error
}
