package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Access
	ErrUnauthorized  = errors.New("authentication required")
	ErrForbidden     = errors.New("not permitted")
	ErrResourceBusy  = errors.New("operation already in progress, retry shortly")
	ErrNoEntitlement = errors.New("no active plan or free trial left, purchase a plan to create activities")

	// Lookups
	ErrUserNotFound     = errors.New("user not found")
	ErrActivityNotFound = errors.New("activity not found")
	ErrPaymentNotFound  = errors.New("payment not found")

	// Roster
	ErrAlreadyParticipant = errors.New("already joined this activity")
	ErrNotParticipant     = errors.New("not a participant of this activity")
	ErrActivityFull       = errors.New("activity is already full")
	ErrPaymentRequired    = errors.New("activity is paid, complete payment to join")

	// Payments
	ErrActivityFree        = errors.New("activity is free, no payment required")
	ErrAlreadyPaid         = errors.New("payment already completed for this activity")
	ErrPaymentExists       = errors.New("payment record already exists")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrGatewayFailure      = errors.New("payment gateway request failed")

	// Media
	ErrUploadFailed = errors.New("media upload failed")
)
