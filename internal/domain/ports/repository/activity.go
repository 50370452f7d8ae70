package repository

import (
	"context"

	"activity-engine/internal/domain/model"
)

// -----------------------------
// Activities
// -----------------------------

type ActivityRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Activity) error
	// Update writes the descriptive fields; roster, owner and photos are untouched.
	Update(ctx context.Context, tx Tx, a *model.Activity) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Activity, error)
	List(ctx context.Context, tx Tx, f model.ActivityFilter) ([]*model.Activity, int, error)

	// AddParticipant adds userID only if absent and the roster is below capacity,
	// in a single conditional write. Fails with domain.ErrAlreadyParticipant,
	// domain.ErrActivityFull or domain.ErrActivityNotFound.
	AddParticipant(ctx context.Context, tx Tx, activityID, userID string) (*model.Activity, error)
	// RemoveParticipant fails with domain.ErrNotParticipant when userID is absent.
	RemoveParticipant(ctx context.Context, tx Tx, activityID, userID string) (*model.Activity, error)
}
