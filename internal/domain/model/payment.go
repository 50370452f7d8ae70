package model

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"  // order created at provider; awaiting verification
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"  // provider reported paid; terminal
	PaymentStatusRefunded PaymentStatus = "REFUNDED" // no transition leads here yet
	PaymentStatusFailed   PaymentStatus = "FAILED"   // provider reported a non-paid terminal status
)

// IsTerminal reports whether verification must not contact the gateway again.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusRefunded
}

// ActivityPayment records the payment for one (user, activity) pair.
type ActivityPayment struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	ActivityID       string          `json:"activityId"`
	Status           PaymentStatus   `json:"status"`
	Amount           int64           `json:"amount"` // major currency units
	Currency         string          `json:"currency"`
	Provider         string          `json:"provider"`
	ProviderRef      string          `json:"providerRef,omitempty"` // gateway order id
	PaymentSessionID string          `json:"paymentSessionId,omitempty"`
	RawResponse      json.RawMessage `json:"-"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}
