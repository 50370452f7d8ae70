package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"activity-engine/internal/config"
	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/infra/metrics"
	"activity-engine/internal/infra/worker"
)

// PendingVerifier is the part of the payment use case the reconciler drives.
type PendingVerifier interface {
	StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.ActivityPayment, error)
	VerifyByOrderID(ctx context.Context, orderID string) (*model.ActivityPayment, error)
}

// PaymentReconciler periodically re-verifies PENDING payments whose client never came
// back to verify, so paid orders still reach the roster.
type PaymentReconciler struct {
	uc         PendingVerifier
	pool       *worker.Pool
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc PendingVerifier, pool *worker.Pool, cfg config.ReconcilerConfig, logger *zerolog.Logger) *PaymentReconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	l := logger.With().Str("component", "payment_reconciler").Logger()
	return &PaymentReconciler{
		uc:         uc,
		pool:       pool,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		batch:      cfg.BatchSize,
		log:        &l,
	}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one scan and waits until every submitted verification has finished or ctx ends.
func (w *PaymentReconciler) Tick(ctx context.Context) {
	pending, err := w.uc.StalePending(ctx, w.staleAfter, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale pending payments")
		return
	}
	if len(pending) == 0 {
		return
	}
	w.log.Debug().Int("count", len(pending)).Msg("reconciling stale payments")

	var wg sync.WaitGroup
	for _, p := range pending {
		if p.ProviderRef == "" {
			metrics.IncReconciled("skipped")
			continue
		}
		p := p
		wg.Add(1)
		err := w.pool.SubmitWait(ctx, func(ctx context.Context) error {
			defer wg.Done()
			return w.verify(ctx, p)
		})
		if err != nil {
			wg.Done()
			w.log.Warn().Err(err).Msg("reconciler stopped submitting")
			break
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	// queued tasks are dropped when the pool stops with ctx
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (w *PaymentReconciler) verify(ctx context.Context, p *model.ActivityPayment) error {
	log := w.log.With().Str("payment_id", p.ID).Str("order_id", p.ProviderRef).Logger()
	got, err := w.uc.VerifyByOrderID(ctx, p.ProviderRef)
	result := outcome(got, err)
	metrics.IncReconciled(result)

	switch result {
	case "success":
		log.Info().Msg("reconciled payment")
	case "pending", "failed", "busy":
		log.Debug().Str("result", result).Msg("payment not settled")
	case "conflict":
		log.Warn().Err(err).Msg("paid but roster is full")
	default:
		return err
	}
	return nil
}

func outcome(p *model.ActivityPayment, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		if p != nil && p.Status == model.PaymentStatusFailed {
			return "failed"
		}
		return "pending"
	case errors.Is(err, domain.ErrResourceBusy):
		return "busy"
	case errors.Is(err, domain.ErrActivityFull):
		return "conflict"
	default:
		return "error"
	}
}
