package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"

	"activity-engine/internal/config"
	"activity-engine/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

// StripeGateway implements adapter.PaymentGateway with Stripe Checkout Sessions.
// The session id is the provider order id.
type StripeGateway struct {
	cfg config.StripeConfig
}

func NewStripeGateway(cfg config.StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	stripe.Key = cfg.SecretKey
	return &StripeGateway{cfg: cfg}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

// CreateOrder opens a one-off payment Checkout Session priced inline.
func (g *StripeGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (*adapter.Order, error) {
	successURL := g.cfg.SuccessURL
	if successURL == "" {
		successURL = strings.ReplaceAll(req.ReturnURL, req.OrderID, "{CHECKOUT_SESSION_ID}")
	}
	cancelURL := g.cfg.CancelURL
	if cancelURL == "" {
		cancelURL = successURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.Amount * 100),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(nonEmpty(req.Note, "Activity")),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("customer_id", req.CustomerID)
	params.Context = ctx

	sess, err := checksession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return sessionOrder(sess), nil
}

// FetchOrder retrieves the Checkout Session by id.
func (g *StripeGateway) FetchOrder(ctx context.Context, orderID string) (*adapter.Order, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := checksession.Get(orderID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return sessionOrder(sess), nil
}

func sessionOrder(sess *stripe.CheckoutSession) *adapter.Order {
	raw, _ := json.Marshal(sess)
	return &adapter.Order{
		OrderID:    sess.ID,
		SessionID:  sess.ID,
		PaymentURL: sess.URL,
		Status:     stripeStatus(sess.Status, sess.PaymentStatus),
		Raw:        raw,
	}
}

func stripeStatus(status stripe.CheckoutSessionStatus, paid stripe.CheckoutSessionPaymentStatus) adapter.OrderStatus {
	switch {
	case paid == stripe.CheckoutSessionPaymentStatusPaid:
		return adapter.OrderPaid
	case status == stripe.CheckoutSessionStatusExpired:
		return adapter.OrderExpired
	default:
		return adapter.OrderActive
	}
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
