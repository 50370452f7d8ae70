package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/repository"
)

var _ repository.ActivityRepository = (*activityRepo)(nil)

type activityRepo struct{ pool *pgxpool.Pool }

func NewActivityRepo(pool *pgxpool.Pool) *activityRepo {
	return &activityRepo{pool: pool}
}

const activityColumns = `id, title, description, category, location, date, start_time, end_time, price, currency,
       max_capacity, participants, created_by, photos, created_at, updated_at`

func scanActivity(row pgx.Row) (*model.Activity, error) {
	var a model.Activity
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Category, &a.Location, &a.Date, &a.StartTime, &a.EndTime,
		&a.Price, &a.Currency, &a.MaxCapacity, &a.Participants, &a.CreatedBy, &a.Photos, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if a.Participants == nil {
		a.Participants = []string{}
	}
	if a.Photos == nil {
		a.Photos = []string{}
	}
	return &a, nil
}

func (r *activityRepo) Save(ctx context.Context, tx repository.Tx, a *model.Activity) error {
	const q = `
INSERT INTO activities (
  id, title, description, category, location, date, start_time, end_time, price, currency,
  max_capacity, participants, created_by, photos, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
);`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, a.ID, a.Title, a.Description, a.Category, a.Location, a.Date, a.StartTime, a.EndTime,
		a.Price, a.Currency, a.MaxCapacity, a.Participants, a.CreatedBy, a.Photos, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return opFailed(err)
	}
	return nil
}

// Update writes the descriptive fields. The capacity guard is re-checked in SQL
// against the live roster.
func (r *activityRepo) Update(ctx context.Context, tx repository.Tx, a *model.Activity) error {
	const q = `
UPDATE activities SET
  title=$2, description=$3, category=$4, location=$5, date=$6, start_time=$7, end_time=$8,
  price=$9, max_capacity=$10, updated_at=$11
 WHERE id=$1 AND cardinality(participants) <= $10;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	cmd, err := ex.Exec(ctx, q, a.ID, a.Title, a.Description, a.Category, a.Location, a.Date, a.StartTime, a.EndTime,
		a.Price, a.MaxCapacity, a.UpdatedAt)
	if err != nil {
		return opFailed(err)
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, tx, a.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: maxCapacity below current participant count", domain.ErrInvalidArgument)
	}
	return nil
}

func (r *activityRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Activity, error) {
	q := `SELECT ` + activityColumns + ` FROM activities WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	a, err := scanActivity(ex.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrActivityNotFound
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrReadDatabaseRow, err)
	}
	return a, nil
}

// List returns one page of activities dated on or after f.From plus the total match count.
func (r *activityRepo) List(ctx context.Context, tx repository.Tx, f model.ActivityFilter) ([]*model.Activity, int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, 0, err
	}

	where := []string{"date >= $1"}
	args := []interface{}{f.From}
	if c := strings.TrimSpace(f.Category); c != "" {
		args = append(args, c)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM activities WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrReadDatabaseRow, err)
	}

	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, f.Limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM activities WHERE %s ORDER BY date ASC, start_time ASC, created_at ASC LIMIT $%d OFFSET $%d`,
		activityColumns, cond, len(args)-1, len(args))

	rows, err := ex.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, opFailed(err)
	}
	defer rows.Close()

	out := make([]*model.Activity, 0, f.Limit)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, opFailed(err)
	}
	return out, total, nil
}

// AddParticipant appends userID in one conditional UPDATE. When no row matches,
// the current state decides which conflict is reported.
func (r *activityRepo) AddParticipant(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error) {
	q := `
UPDATE activities SET participants = array_append(participants, $2::text), updated_at=NOW()
 WHERE id=$1
   AND NOT ($2::text = ANY(participants))
   AND cardinality(participants) < max_capacity
RETURNING ` + activityColumns
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	a, err := scanActivity(ex.QueryRow(ctx, q, activityID, userID))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, opFailed(err)
	}

	cur, err := r.FindByID(ctx, tx, activityID)
	if err != nil {
		return nil, err
	}
	if cur.HasParticipant(userID) {
		return nil, domain.ErrAlreadyParticipant
	}
	return nil, domain.ErrActivityFull
}

func (r *activityRepo) RemoveParticipant(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error) {
	q := `
UPDATE activities SET participants = array_remove(participants, $2::text), updated_at=NOW()
 WHERE id=$1 AND $2::text = ANY(participants)
RETURNING ` + activityColumns
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	a, err := scanActivity(ex.QueryRow(ctx, q, activityID, userID))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, opFailed(err)
	}
	if _, err := r.FindByID(ctx, tx, activityID); err != nil {
		return nil, err
	}
	return nil, domain.ErrNotParticipant
}
