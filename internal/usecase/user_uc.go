package usecase

import (
	"context"
	"errors"
	"time"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/repository"
	"activity-engine/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// Profile is a user plus a preview of what creating an activity would consume.
type Profile struct {
	User        *model.User       `json:"user"`
	Entitlement model.Entitlement `json:"entitlement,omitempty"`
	CanCreate   bool              `json:"canCreate"`
}

// UserUseCase exposes user-related operations used by auth and profile flows.
type UserUseCase interface {
	Get(ctx context.Context, id string) (*model.User, error)
	// Profile applies lazy plan expiry and persists it before returning.
	Profile(ctx context.Context, actor model.Actor) (*Profile, error)
	Register(ctx context.Context, u *model.User) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
	now   func() time.Time
}

func NewUserUseCase(users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	l := logger.With().Str("component", "UserUC").Logger()
	return &userUC{
		users: users,
		tm:    tm,
		log:   &l,
		now:   time.Now,
	}
}

func (u *userUC) Get(ctx context.Context, id string) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, id)
}

func (u *userUC) Profile(ctx context.Context, actor model.Actor) (*Profile, error) {
	defer logging.TraceDuration(u.log, "UserUC.Profile")()
	if actor.IsZero() {
		return nil, domain.ErrUnauthorized
	}

	var user *model.User
	now := u.now()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		usr, err := u.users.FindByID(ctx, tx, actor.ID)
		if err != nil {
			return err
		}
		if usr.ResetExpiredPlan(now) {
			if err := u.users.Save(ctx, tx, usr); err != nil {
				u.log.Error().Err(err).Str("user_id", usr.ID).Msg("failed to persist plan expiry")
				return err
			}
			u.log.Info().Str("user_id", usr.ID).Msg("expired plan reset to none")
		}
		user = usr
		return nil
	})
	if err != nil {
		return nil, err
	}

	p := &Profile{User: user}
	ent, err := model.EvaluateEntitlement(user, now)
	switch {
	case err == nil:
		p.Entitlement = ent
		p.CanCreate = true
	case !errors.Is(err, domain.ErrNoEntitlement):
		return nil, err
	}
	return p, nil
}

// Register stores a new user or returns the existing row with the same id.
func (u *userUC) Register(ctx context.Context, nu *model.User) (*model.User, error) {
	if nu == nil || nu.Name == "" || nu.Email == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !nu.PlanType.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	var out *model.User
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		existing, err := u.users.FindByID(ctx, tx, nu.ID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		if err := u.users.Save(ctx, tx, nu); err != nil {
			return err
		}
		out = nu
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
