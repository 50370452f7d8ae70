package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `id, name, email, phone, has_used_free_trial, plan_type, plan_start_date, plan_end_date,
       remaining_activity_count, joined_activities, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var plan string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.HasUsedFreeTrial, &plan, &u.PlanStartDate, &u.PlanEndDate,
		&u.RemainingActivityCount, &u.JoinedActivities, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.PlanType = model.PlanType(plan)
	if u.JoinedActivities == nil {
		u.JoinedActivities = []string{}
	}
	return &u, nil
}

func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  id, name, email, phone, has_used_free_trial, plan_type, plan_start_date, plan_end_date,
  remaining_activity_count, joined_activities, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  name=$2, email=$3, phone=$4, has_used_free_trial=$5, plan_type=$6, plan_start_date=$7, plan_end_date=$8,
  remaining_activity_count=$9, joined_activities=$10, updated_at=$12;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	joined := u.JoinedActivities
	if joined == nil {
		joined = []string{}
	}
	if _, err := ex.Exec(ctx, q, u.ID, u.Name, u.Email, u.Phone, u.HasUsedFreeTrial, string(u.PlanType), u.PlanStartDate, u.PlanEndDate,
		u.RemainingActivityCount, joined, u.CreatedAt, u.UpdatedAt); err != nil {
		return opFailed(err)
	}
	return nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(ex.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrReadDatabaseRow, err)
	}
	return u, nil
}

func (r *PostgresUserRepo) FindByIDs(ctx context.Context, tx repository.Tx, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, opFailed(err)
	}
	defer rows.Close()

	byID := make(map[string]*model.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrReadDatabaseRow, err)
		}
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, opFailed(err)
	}

	// keep the caller's order
	out := make([]*model.User, 0, len(byID))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// ConsumeEntitlement applies e with a single conditional UPDATE so two concurrent
// creates can never both spend the last credit or the free trial.
func (r *PostgresUserRepo) ConsumeEntitlement(ctx context.Context, tx repository.Tx, userID string, e model.Entitlement) error {
	var q string
	switch e {
	case model.EntitlementPremium:
		q = `UPDATE users SET updated_at=NOW()
      WHERE id=$1 AND plan_type IN ('monthly','yearly') AND plan_end_date > NOW();`
	case model.EntitlementSingle:
		q = `UPDATE users
        SET remaining_activity_count = remaining_activity_count - 1,
            plan_type = CASE WHEN remaining_activity_count - 1 <= 0 THEN 'none' ELSE plan_type END,
            updated_at = NOW()
      WHERE id=$1 AND plan_type='single' AND remaining_activity_count > 0;`
	case model.EntitlementFree:
		q = `UPDATE users SET has_used_free_trial=TRUE, updated_at=NOW()
      WHERE id=$1 AND NOT has_used_free_trial;`
	default:
		return domain.ErrInvalidArgument
	}

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	cmd, err := ex.Exec(ctx, q, userID)
	if err != nil {
		return opFailed(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNoEntitlement
	}
	return nil
}

func (r *PostgresUserRepo) AddJoinedActivity(ctx context.Context, tx repository.Tx, userID, activityID string) error {
	const q = `
UPDATE users SET joined_activities = array_append(joined_activities, $2::text), updated_at=NOW()
 WHERE id=$1 AND NOT ($2::text = ANY(joined_activities));`
	return r.exec(ctx, tx, q, userID, activityID)
}

func (r *PostgresUserRepo) RemoveJoinedActivity(ctx context.Context, tx repository.Tx, userID, activityID string) error {
	const q = `
UPDATE users SET joined_activities = array_remove(joined_activities, $2::text), updated_at=NOW()
 WHERE id=$1 AND $2::text = ANY(joined_activities);`
	return r.exec(ctx, tx, q, userID, activityID)
}

func (r *PostgresUserRepo) exec(ctx context.Context, tx repository.Tx, q string, args ...interface{}) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, args...); err != nil {
		return opFailed(err)
	}
	return nil
}
