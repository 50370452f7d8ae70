// File: internal/infra/adapters/payment/cashfree_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"activity-engine/internal/config"
	"activity-engine/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*CashfreeGateway)(nil)

const (
	cashfreeSandboxURL    = "https://sandbox.cashfree.com/pg"
	cashfreeProductionURL = "https://api.cashfree.com/pg"
)

// CashfreeGateway implements adapter.PaymentGateway against the Cashfree PG REST API.
type CashfreeGateway struct {
	appID      string
	secretKey  string
	apiVersion string
	baseURL    string
	client     *http.Client
}

func NewCashfreeGateway(cfg config.CashfreeConfig) (*CashfreeGateway, error) {
	if cfg.AppID == "" || cfg.SecretKey == "" {
		return nil, errors.New("cashfree app id and secret key are required")
	}
	base := cashfreeSandboxURL
	if strings.EqualFold(cfg.Environment, "production") {
		base = cashfreeProductionURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CashfreeGateway{
		appID:      cfg.AppID,
		secretKey:  cfg.SecretKey,
		apiVersion: cfg.APIVersion,
		baseURL:    base,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// WithBaseURL points the gateway at another host (used by tests).
func (g *CashfreeGateway) WithBaseURL(base string) *CashfreeGateway {
	g.baseURL = strings.TrimRight(base, "/")
	return g
}

func (g *CashfreeGateway) Name() string { return "cashfree" }

type cashfreeCustomer struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone"`
}

type cashfreeOrderRequest struct {
	OrderID         string           `json:"order_id"`
	OrderAmount     float64          `json:"order_amount"`
	OrderCurrency   string           `json:"order_currency"`
	CustomerDetails cashfreeCustomer `json:"customer_details"`
	OrderMeta       *struct {
		ReturnURL string `json:"return_url,omitempty"`
	} `json:"order_meta,omitempty"`
	OrderNote string `json:"order_note,omitempty"`
}

type cashfreeOrder struct {
	CfOrderID        json.Number `json:"cf_order_id"`
	OrderID          string      `json:"order_id"`
	OrderStatus      string      `json:"order_status"`
	PaymentSessionID string      `json:"payment_session_id"`
}

type cashfreeError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
}

// CreateOrder calls POST /orders.
func (g *CashfreeGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (*adapter.Order, error) {
	body := cashfreeOrderRequest{
		OrderID:       req.OrderID,
		OrderAmount:   float64(req.Amount),
		OrderCurrency: req.Currency,
		CustomerDetails: cashfreeCustomer{
			CustomerID:    sanitizeCustomerID(req.CustomerID),
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			CustomerPhone: req.CustomerPhone,
		},
		OrderNote: req.Note,
	}
	if req.ReturnURL != "" {
		body.OrderMeta = &struct {
			ReturnURL string `json:"return_url,omitempty"`
		}{ReturnURL: req.ReturnURL}
	}
	b, _ := json.Marshal(body)

	return g.do(ctx, http.MethodPost, "/orders", b)
}

// FetchOrder calls GET /orders/{order_id}.
func (g *CashfreeGateway) FetchOrder(ctx context.Context, orderID string) (*adapter.Order, error) {
	return g.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil)
}

func (g *CashfreeGateway) do(ctx context.Context, method, path string, body []byte) (*adapter.Order, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-client-id", g.appID)
	req.Header.Set("x-client-secret", g.secretKey)
	req.Header.Set("x-api-version", g.apiVersion)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ce cashfreeError
		_ = json.Unmarshal(raw, &ce)
		if ce.Message == "" {
			ce.Message = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("cashfree %s %s: http %d: %s", method, path, resp.StatusCode, ce.Message)
	}

	var out cashfreeOrder
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("cashfree decode: %w", err)
	}
	if out.OrderID == "" {
		return nil, errors.New("cashfree response without order_id")
	}
	return &adapter.Order{
		OrderID:   out.OrderID,
		SessionID: out.PaymentSessionID,
		Status:    cashfreeStatus(out.OrderStatus),
		Raw:       json.RawMessage(raw),
	}, nil
}

func cashfreeStatus(s string) adapter.OrderStatus {
	switch strings.ToUpper(s) {
	case "PAID":
		return adapter.OrderPaid
	case "EXPIRED":
		return adapter.OrderExpired
	case "TERMINATED", "TERMINATION_REQUESTED":
		return adapter.OrderTerminated
	default:
		return adapter.OrderActive
	}
}

// sanitizeCustomerID keeps the characters Cashfree accepts in customer_id.
func sanitizeCustomerID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "guest"
	}
	return b.String()
}
