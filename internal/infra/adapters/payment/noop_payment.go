package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"activity-engine/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway for dev and tests.
// Orders stay ACTIVE until MarkPaid or Expire is called.
type NoopPaymentGateway struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]*adapter.Order
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{orders: make(map[string]*adapter.Order)}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (*adapter.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	o := &adapter.Order{
		OrderID:    req.OrderID,
		SessionID:  fmt.Sprintf("noop-session-%d", g.seq),
		PaymentURL: req.ReturnURL,
		Status:     adapter.OrderActive,
	}
	o.Raw, _ = json.Marshal(map[string]any{"order_id": o.OrderID, "order_amount": req.Amount, "order_status": o.Status})
	g.orders[req.OrderID] = o
	cp := *o
	return &cp, nil
}

func (g *NoopPaymentGateway) FetchOrder(ctx context.Context, orderID string) (*adapter.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("noop: order %s not found", orderID)
	}
	cp := *o
	return &cp, nil
}

// MarkPaid settles orderID as if the customer completed checkout.
func (g *NoopPaymentGateway) MarkPaid(orderID string) error { return g.set(orderID, adapter.OrderPaid) }

// Expire closes orderID without payment.
func (g *NoopPaymentGateway) Expire(orderID string) error { return g.set(orderID, adapter.OrderExpired) }

func (g *NoopPaymentGateway) set(orderID string, s adapter.OrderStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return fmt.Errorf("noop: order %s not found", orderID)
	}
	o.Status = s
	return nil
}
