// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/adapter"
	"activity-engine/internal/domain/ports/repository"
	"activity-engine/internal/infra/logging"
	"activity-engine/internal/infra/metrics"
	"activity-engine/internal/validation"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// CreateOrder opens (or reuses) the PENDING payment of actor for a priced activity.
	CreateOrder(ctx context.Context, actor model.Actor, activityID string) (*model.ActivityPayment, *adapter.Order, error)
	// Verify reconciles actor's payment against the gateway. gatewayOrderID must match the stored order.
	Verify(ctx context.Context, actor model.Actor, activityID, gatewayOrderID string) (*model.ActivityPayment, error)
	// VerifyByOrderID reconciles the payment that owns the given gateway order id.
	VerifyByOrderID(ctx context.Context, orderID string) (*model.ActivityPayment, error)
	// StalePending lists PENDING payments created more than olderThan ago.
	StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.ActivityPayment, error)
}

// PaymentOptions carries the gateway-facing settings of the use case.
type PaymentOptions struct {
	ReturnURL    string // may contain {order_id}
	DefaultPhone string // sent when the customer has no phone on file
	LockTTL      time.Duration
}

type paymentUC struct {
	payments   repository.PaymentRepository
	activities repository.ActivityRepository
	users      repository.UserRepository
	tm         repository.TransactionManager
	gateway    adapter.PaymentGateway
	locker     adapter.Locker   // optional
	notifier   adapter.Notifier // optional
	validator  *validation.Validator
	opts       PaymentOptions
	log        *zerolog.Logger
	now        func() time.Time
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	activities repository.ActivityRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	locker adapter.Locker,
	notifier adapter.Notifier,
	v *validation.Validator,
	opts PaymentOptions,
	logger *zerolog.Logger,
) *paymentUC {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments:   payments,
		activities: activities,
		users:      users,
		tm:         tm,
		gateway:    gateway,
		locker:     locker,
		notifier:   notifier,
		validator:  v,
		opts:       opts,
		log:        &l,
		now:        time.Now,
	}
}

const maxReopenAttempts = 3

func newOrderID() string { return "ord_" + ulid.Make().String() }

func (u *paymentUC) CreateOrder(ctx context.Context, actor model.Actor, activityID string) (*model.ActivityPayment, *adapter.Order, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreateOrder")()
	if actor.IsZero() {
		return nil, nil, domain.ErrUnauthorized
	}
	if err := u.validator.ID("activityId", activityID); err != nil {
		return nil, nil, err
	}

	a, err := u.currentActivity(ctx, activityID)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case !a.IsPriced():
		return nil, nil, domain.ErrActivityFree
	case a.HasParticipant(actor.ID):
		return nil, nil, domain.ErrAlreadyParticipant
	case a.IsFull():
		return nil, nil, domain.ErrActivityFull
	}

	user, err := u.users.FindByID(ctx, repository.NoTX, actor.ID)
	if err != nil {
		return nil, nil, err
	}

	existing, err := u.payments.FindByUserActivity(ctx, repository.NoTX, actor.ID, a.ID)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, nil, err
	}
	if existing != nil {
		if p, order, done, err := u.reuse(ctx, existing); done || err != nil {
			return p, order, err
		}
	}

	order, err := u.openOrder(ctx, a, user)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return u.reopen(ctx, existing, a, order)
	}

	now := u.now()
	p := &model.ActivityPayment{
		ID:               uuid.NewString(),
		UserID:           actor.ID,
		ActivityID:       a.ID,
		Status:           model.PaymentStatusPending,
		Amount:           a.Price,
		Currency:         a.Currency,
		Provider:         u.gateway.Name(),
		ProviderRef:      order.OrderID,
		PaymentSessionID: order.SessionID,
		RawResponse:      order.Raw,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = u.payments.Save(ctx, repository.NoTX, p)
	if errors.Is(err, domain.ErrPaymentExists) {
		// A concurrent request won the insert; continue on its record.
		u.log.Info().Str("activity_id", a.ID).Str("user_id", actor.ID).Msg("payment record exists, reusing")
		existing, err = u.payments.FindByUserActivity(ctx, repository.NoTX, actor.ID, a.ID)
		if err != nil {
			return nil, nil, err
		}
		if p, o, done, err := u.reuse(ctx, existing); done || err != nil {
			return p, o, err
		}
		return u.reopen(ctx, existing, a, order)
	}
	if err != nil {
		return nil, nil, err
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().Str("payment_id", p.ID).Str("order_id", p.ProviderRef).Int64("amount", p.Amount).Msg("payment order created")
	return p, order, nil
}

// currentActivity reads the committed row in a short transaction so the
// roster checks never run against a cached copy.
func (u *paymentUC) currentActivity(ctx context.Context, id string) (*model.Activity, error) {
	var a *model.Activity
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		a, err = u.activities.FindByID(ctx, tx, id)
		return err
	})
	return a, err
}

// reuse decides what to do with an existing record. done=false means the caller
// should open a fresh order on the same record.
func (u *paymentUC) reuse(ctx context.Context, p *model.ActivityPayment) (*model.ActivityPayment, *adapter.Order, bool, error) {
	switch p.Status {
	case model.PaymentStatusSuccess, model.PaymentStatusRefunded:
		return nil, nil, true, domain.ErrAlreadyPaid
	case model.PaymentStatusFailed:
		return nil, nil, false, nil
	}
	if p.ProviderRef == "" {
		return nil, nil, false, nil
	}

	order, err := u.fetchOrder(ctx, p.ProviderRef)
	if err != nil {
		return nil, nil, true, err
	}
	switch {
	case order.Status == adapter.OrderActive:
		if order.SessionID == "" {
			order.SessionID = p.PaymentSessionID
		}
		return p, order, true, nil
	case order.Status == adapter.OrderPaid:
		if _, err := u.settle(ctx, p, order); err != nil {
			return nil, nil, true, err
		}
		return nil, nil, true, domain.ErrAlreadyPaid
	default:
		if err := u.markFailed(ctx, p, order); err != nil {
			return nil, nil, true, err
		}
		return nil, nil, false, nil
	}
}

// reopen moves p onto order. When another request re-pointed the record first,
// the winner's record is reused instead of overwriting the order it handed out.
func (u *paymentUC) reopen(ctx context.Context, p *model.ActivityPayment, a *model.Activity, order *adapter.Order) (*model.ActivityPayment, *adapter.Order, error) {
	for attempt := 0; attempt < maxReopenAttempts; attempt++ {
		next := *p
		next.Status = model.PaymentStatusPending
		next.Amount = a.Price
		next.Currency = a.Currency
		next.Provider = u.gateway.Name()
		next.ProviderRef = order.OrderID
		next.PaymentSessionID = order.SessionID
		next.RawResponse = order.Raw
		next.PaidAt = nil
		next.UpdatedAt = u.now()

		ok, err := u.payments.Reopen(ctx, repository.NoTX, &next, p.ProviderRef)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			metrics.IncPayment(string(model.PaymentStatusPending))
			u.log.Info().Str("payment_id", next.ID).Str("order_id", next.ProviderRef).Msg("payment reopened with new order")
			return &next, order, nil
		}

		cur, err := u.payments.FindByID(ctx, repository.NoTX, p.ID)
		if err != nil {
			return nil, nil, err
		}
		u.log.Info().Str("payment_id", p.ID).Str("order_id", cur.ProviderRef).Msg("payment reopened concurrently, reusing")
		if rp, ro, done, err := u.reuse(ctx, cur); done || err != nil {
			return rp, ro, err
		}
		p = cur
	}
	return nil, nil, domain.ErrResourceBusy
}

func (u *paymentUC) openOrder(ctx context.Context, a *model.Activity, user *model.User) (*adapter.Order, error) {
	orderID := newOrderID()
	phone := user.Phone
	if phone == "" {
		phone = u.opts.DefaultPhone
	}
	req := adapter.OrderRequest{
		OrderID:       orderID,
		Amount:        a.Price,
		Currency:      a.Currency,
		CustomerID:    user.ID,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		CustomerPhone: phone,
		Note:          truncate("Participation: "+a.Title, 200),
		ReturnURL:     strings.ReplaceAll(u.opts.ReturnURL, "{order_id}", orderID),
	}
	order, err := u.gateway.CreateOrder(ctx, req)
	metrics.IncGatewayCall(u.gateway.Name(), "create_order", err)
	if err != nil {
		u.log.Error().Err(err).Str("order_id", orderID).Msg("gateway create order failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayFailure, err)
	}
	if order.OrderID == "" {
		order.OrderID = orderID
	}
	return order, nil
}

func (u *paymentUC) fetchOrder(ctx context.Context, orderID string) (*adapter.Order, error) {
	order, err := u.gateway.FetchOrder(ctx, orderID)
	metrics.IncGatewayCall(u.gateway.Name(), "fetch_order", err)
	if err != nil {
		u.log.Error().Err(err).Str("order_id", orderID).Msg("gateway fetch order failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayFailure, err)
	}
	return order, nil
}

func (u *paymentUC) Verify(ctx context.Context, actor model.Actor, activityID, gatewayOrderID string) (*model.ActivityPayment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Verify")()
	if actor.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	if err := u.validator.ID("activityId", activityID); err != nil {
		return nil, err
	}
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return nil, &validation.Error{Fields: map[string]string{"gatewayOrderId": "is required"}}
	}

	p, err := u.payments.FindByUserActivity(ctx, repository.NoTX, actor.ID, activityID)
	if err != nil {
		return nil, err
	}
	if p.ProviderRef != gatewayOrderID {
		return nil, fmt.Errorf("%w: gatewayOrderId does not match this payment", domain.ErrInvalidArgument)
	}
	return u.reconcile(ctx, p)
}

func (u *paymentUC) VerifyByOrderID(ctx context.Context, orderID string) (*model.ActivityPayment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.VerifyByOrderID")()
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, &validation.Error{Fields: map[string]string{"order_id": "is required"}}
	}
	p, err := u.payments.FindByProviderRef(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	return u.reconcile(ctx, p)
}

func (u *paymentUC) StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.ActivityPayment, error) {
	if limit <= 0 {
		limit = 100
	}
	return u.payments.ListPendingOlderThan(ctx, repository.NoTX, u.now().Add(-olderThan), limit)
}

// settled reports the result for a payment that no longer needs the gateway.
func settled(p *model.ActivityPayment) (*model.ActivityPayment, bool, error) {
	switch p.Status {
	case model.PaymentStatusSuccess, model.PaymentStatusRefunded:
		metrics.IncPaymentVerify("cached")
		return p, true, nil
	case model.PaymentStatusFailed:
		metrics.IncPaymentVerify("failed")
		return p, true, domain.ErrPaymentNotCompleted
	}
	return nil, false, nil
}

func (u *paymentUC) reconcile(ctx context.Context, p *model.ActivityPayment) (*model.ActivityPayment, error) {
	if out, ok, err := settled(p); ok {
		return out, err
	}

	if u.locker != nil {
		key := "lock:payment:" + p.ID
		token, err := u.locker.TryLock(ctx, key, u.opts.LockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("unlock failed")
			}
		}()
		// another request may have settled it while we waited
		fresh, err := u.payments.FindByID(ctx, repository.NoTX, p.ID)
		if err != nil {
			return nil, err
		}
		if out, ok, err := settled(fresh); ok {
			return out, err
		}
		p = fresh
	}

	order, err := u.fetchOrder(ctx, p.ProviderRef)
	if err != nil {
		metrics.IncPaymentVerify("error")
		return nil, err
	}
	switch {
	case order.Status == adapter.OrderPaid:
		return u.settle(ctx, p, order)
	case order.Status.IsTerminalFailure():
		if err := u.markFailed(ctx, p, order); err != nil {
			return nil, err
		}
		metrics.IncPaymentVerify("failed")
		return p, domain.ErrPaymentNotCompleted
	default:
		metrics.IncPaymentVerify("pending")
		return p, domain.ErrPaymentNotCompleted
	}
}

// settle moves p to SUCCESS and applies the join side effect in one transaction.
// A full roster does not undo the payment; the caller gets domain.ErrActivityFull.
func (u *paymentUC) settle(ctx context.Context, p *model.ActivityPayment, order *adapter.Order) (*model.ActivityPayment, error) {
	ctx = logging.WithActivityID(ctx, p.ActivityID)
	log := logging.With(ctx, u.log).With().Str("payment_id", p.ID).Logger()
	now := u.now()
	var (
		transitioned bool
		joinErr      error
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusSuccess, order.Raw, &now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		transitioned = true

		_, err = u.activities.AddParticipant(ctx, tx, p.ActivityID, p.UserID)
		switch {
		case err == nil, errors.Is(err, domain.ErrAlreadyParticipant):
		case errors.Is(err, domain.ErrActivityFull):
			joinErr = err
			return nil
		default:
			return err
		}
		return u.users.AddJoinedActivity(ctx, tx, p.UserID, p.ActivityID)
	})
	if err != nil {
		metrics.IncPaymentVerify("error")
		log.Error().Err(err).Msg("settle payment failed")
		return nil, err
	}

	if !transitioned {
		// settled concurrently; report the stored outcome
		fresh, err := u.payments.FindByID(ctx, repository.NoTX, p.ID)
		if err != nil {
			return nil, err
		}
		if out, ok, err := settled(fresh); ok {
			return out, err
		}
		return fresh, domain.ErrPaymentNotCompleted
	}

	p.Status = model.PaymentStatusSuccess
	p.PaidAt = &now
	p.RawResponse = order.Raw
	p.UpdatedAt = now
	metrics.IncPayment(string(model.PaymentStatusSuccess))
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	metrics.IncPaymentVerify("success")

	if joinErr != nil {
		metrics.IncRosterChange("paid_join", "full")
		log.Warn().Str("user_id", p.UserID).Msg("payment succeeded but activity is full; refund needed")
		return p, joinErr
	}
	metrics.IncRosterChange("paid_join", "ok")
	log.Info().Str("user_id", p.UserID).Msg("payment succeeded, participant added")
	u.notifyJoined(ctx, p)
	return p, nil
}

func (u *paymentUC) markFailed(ctx context.Context, p *model.ActivityPayment, order *adapter.Order) error {
	ok, err := u.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusFailed, order.Raw, nil)
	if err != nil {
		return err
	}
	if ok {
		metrics.IncPayment(string(model.PaymentStatusFailed))
		u.log.Info().Str("payment_id", p.ID).Str("gateway_status", string(order.Status)).Msg("payment failed")
	}
	p.Status = model.PaymentStatusFailed
	p.RawResponse = order.Raw
	return nil
}

func (u *paymentUC) notifyJoined(ctx context.Context, p *model.ActivityPayment) {
	if u.notifier == nil {
		return
	}
	a, err := u.activities.FindByID(ctx, repository.NoTX, p.ActivityID)
	if err != nil {
		return
	}
	at := u.now()
	u.notifier.Notify(ctx, p.UserID, model.Notification{
		Kind:       model.NotificationPaymentSucceeded,
		ActivityID: a.ID,
		ActorID:    p.UserID,
		Message:    fmt.Sprintf("Payment received, you joined %q", a.Title),
		At:         at,
	})
	if a.CreatedBy != p.UserID {
		u.notifier.Notify(ctx, a.CreatedBy, model.Notification{
			Kind:       model.NotificationParticipantJoined,
			ActivityID: a.ID,
			ActorID:    p.UserID,
			Message:    fmt.Sprintf("A new participant joined %q", a.Title),
			At:         at,
		})
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
