package adapter

import (
	"context"
	"encoding/json"
)

// OrderStatus is the provider status normalized for reconciliation.
type OrderStatus string

const (
	OrderActive     OrderStatus = "ACTIVE"     // created, not paid yet
	OrderPaid       OrderStatus = "PAID"       // captured
	OrderExpired    OrderStatus = "EXPIRED"    // checkout window closed without payment
	OrderTerminated OrderStatus = "TERMINATED" // cancelled or failed at provider
)

// IsTerminalFailure reports a non-paid status the order can not recover from.
func (s OrderStatus) IsTerminalFailure() bool {
	return s == OrderExpired || s == OrderTerminated
}

type OrderRequest struct {
	OrderID       string
	Amount        int64 // major currency units
	Currency      string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Note          string
	ReturnURL     string
}

type Order struct {
	OrderID    string
	SessionID  string
	PaymentURL string
	Status     OrderStatus
	Raw        json.RawMessage // provider payload as received
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string

	// CreateOrder registers an order at the provider and returns its checkout session.
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// FetchOrder queries the provider's own order-status endpoint.
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
}
