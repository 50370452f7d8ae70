package repository

import (
	"context"
	"encoding/json"
	"time"

	"activity-engine/internal/domain/model"
)

// -----------------------------
// Activity payments
// -----------------------------

type PaymentRepository interface {
	// Save inserts a new record. A second record for the same (user, activity)
	// pair fails with domain.ErrPaymentExists.
	Save(ctx context.Context, tx Tx, p *model.ActivityPayment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ActivityPayment, error)
	FindByUserActivity(ctx context.Context, tx Tx, userID, activityID string) (*model.ActivityPayment, error)
	FindByProviderRef(ctx context.Context, tx Tx, providerRef string) (*model.ActivityPayment, error)

	// Reopen moves a PENDING or FAILED record back to PENDING with a fresh order,
	// provided it still points at prevRef. Returns false when another request
	// re-pointed it first, and domain.ErrAlreadyPaid when the record is terminal.
	Reopen(ctx context.Context, tx Tx, p *model.ActivityPayment, prevRef string) (bool, error)

	// UpdateStatusIfPending transitions PENDING -> status. Returns false when the
	// record was no longer PENDING.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, raw json.RawMessage, paidAt *time.Time) (bool, error)

	// ListPendingOlderThan returns PENDING records whose current order was opened before before.
	ListPendingOlderThan(ctx context.Context, tx Tx, before time.Time, limit int) ([]*model.ActivityPayment, error)
}
