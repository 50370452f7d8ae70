package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, activity_id, status, amount, currency, provider, COALESCE(provider_ref, ''),
       COALESCE(payment_session_id, ''), raw_response, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.ActivityPayment, error) {
	var p model.ActivityPayment
	var status string
	var raw []byte
	if err := row.Scan(&p.ID, &p.UserID, &p.ActivityID, &status, &p.Amount, &p.Currency, &p.Provider, &p.ProviderRef,
		&p.PaymentSessionID, &raw, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	if len(raw) > 0 {
		p.RawResponse = json.RawMessage(raw)
	}
	return &p, nil
}

// jsonArg maps an empty document to SQL NULL.
func jsonArg(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.ActivityPayment) error {
	const q = `
INSERT INTO activity_payments (
  id, user_id, activity_id, status, amount, currency, provider, provider_ref, payment_session_id,
  raw_response, paid_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
);`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, p.ID, p.UserID, p.ActivityID, string(p.Status), p.Amount, p.Currency, p.Provider,
		nullIfEmpty(p.ProviderRef), nullIfEmpty(p.PaymentSessionID), jsonArg(p.RawResponse), p.PaidAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPaymentExists
		}
		return opFailed(err)
	}
	return nil
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, where string, args ...interface{}) (*model.ActivityPayment, error) {
	q := `SELECT ` + paymentColumns + ` FROM activity_payments WHERE ` + where
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(ex.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrReadDatabaseRow, err)
	}
	return p, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ActivityPayment, error) {
	return r.findOne(ctx, tx, "id=$1", id)
}

func (r *paymentRepo) FindByUserActivity(ctx context.Context, tx repository.Tx, userID, activityID string) (*model.ActivityPayment, error) {
	return r.findOne(ctx, tx, "user_id=$1 AND activity_id=$2", userID, activityID)
}

func (r *paymentRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, providerRef string) (*model.ActivityPayment, error) {
	return r.findOne(ctx, tx, "provider_ref=$1", providerRef)
}

// Reopen points a PENDING or FAILED record at a fresh gateway order. The update
// only applies while provider_ref still equals prevRef, so two requests reopening
// the same record cannot both hand out an order.
func (r *paymentRepo) Reopen(ctx context.Context, tx repository.Tx, p *model.ActivityPayment, prevRef string) (bool, error) {
	const q = `
UPDATE activity_payments
   SET status='PENDING', amount=$2, currency=$3, provider=$4, provider_ref=$5, payment_session_id=$6,
       raw_response=$7, paid_at=NULL, updated_at=$8
 WHERE id=$1 AND status IN ('PENDING','FAILED') AND COALESCE(provider_ref, '') = $9;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	cmd, err := ex.Exec(ctx, q, p.ID, p.Amount, p.Currency, p.Provider, nullIfEmpty(p.ProviderRef),
		nullIfEmpty(p.PaymentSessionID), jsonArg(p.RawResponse), p.UpdatedAt, prevRef)
	if err != nil {
		if isUniqueViolation(err) {
			return false, domain.ErrPaymentExists
		}
		return false, opFailed(err)
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}
	cur, err := r.FindByID(ctx, tx, p.ID)
	if err != nil {
		return false, err
	}
	if cur.Status == model.PaymentStatusSuccess || cur.Status == model.PaymentStatusRefunded {
		return false, domain.ErrAlreadyPaid
	}
	return false, nil
}

// UpdateStatusIfPending atomically updates status only when the current status is PENDING.
func (r *paymentRepo) UpdateStatusIfPending(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, raw json.RawMessage, paidAt *time.Time,
) (bool, error) {
	const q = `
UPDATE activity_payments
   SET status = $2,
       raw_response = COALESCE($3::jsonb, raw_response),
       paid_at = $4,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'PENDING'`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	cmd, err := ex.Exec(ctx, q, id, string(status), jsonArg(raw), paidAt)
	if err != nil {
		return false, opFailed(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.ActivityPayment, error) {
	if limit <= 0 {
		limit = 100
	}
	// updated_at moves on every reopen, so a fresh order is not swept early
	const q = `SELECT ` + paymentColumns + ` FROM activity_payments
 WHERE status='PENDING' AND updated_at < $1 ORDER BY updated_at ASC LIMIT $2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, before, limit)
	if err != nil {
		return nil, opFailed(err)
	}
	defer rows.Close()

	var out []*model.ActivityPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, opFailed(err)
	}
	return out, nil
}
