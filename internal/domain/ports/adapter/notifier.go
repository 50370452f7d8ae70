package adapter

import (
	"context"

	"activity-engine/internal/domain/model"
)

// Notifier delivers a notification to a user's live connections. Delivery is
// best effort; users without a connection are skipped.
type Notifier interface {
	Notify(ctx context.Context, userID string, n model.Notification)
}
