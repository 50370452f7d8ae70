// File: internal/usecase/activity_uc.go
package usecase

import (
	"context"
	"time"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/adapter"
	"activity-engine/internal/domain/ports/repository"
	"activity-engine/internal/infra/logging"
	"activity-engine/internal/infra/metrics"
	"activity-engine/internal/validation"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Compile-time check
var _ ActivityUseCase = (*activityUC)(nil)

type ActivityUseCase interface {
	// Create consumes one entitlement of actor and stores a new activity with its photos.
	Create(ctx context.Context, actor model.Actor, fields model.ActivityFields, files []adapter.MediaFile) (*model.Activity, error)
	Update(ctx context.Context, actor model.Actor, id string, patch model.ActivityPatch) (*model.Activity, error)
	Get(ctx context.Context, id string) (*model.Activity, error)
	List(ctx context.Context, f model.ActivityFilter) (*model.ActivityPage, error)
	Participants(ctx context.Context, id string) ([]model.ParticipantSummary, error)
}

type activityUC struct {
	users      repository.UserRepository
	activities repository.ActivityRepository
	tm         repository.TransactionManager
	saga       *MediaSaga
	validator  *validation.Validator
	currency   string
	log        *zerolog.Logger
	now        func() time.Time
}

func NewActivityUseCase(
	users repository.UserRepository,
	activities repository.ActivityRepository,
	tm repository.TransactionManager,
	saga *MediaSaga,
	v *validation.Validator,
	defaultCurrency string,
	logger *zerolog.Logger,
) *activityUC {
	l := logger.With().Str("component", "ActivityUC").Logger()
	return &activityUC{
		users:      users,
		activities: activities,
		tm:         tm,
		saga:       saga,
		validator:  v,
		currency:   defaultCurrency,
		log:        &l,
		now:        time.Now,
	}
}

func (u *activityUC) Create(ctx context.Context, actor model.Actor, fields model.ActivityFields, files []adapter.MediaFile) (*model.Activity, error) {
	defer logging.TraceDuration(u.log, "ActivityUC.Create")()
	if actor.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	log := logging.With(ctx, u.log)

	if err := u.validator.Struct(fields); err != nil {
		return nil, err
	}
	if err := u.saga.Check(files); err != nil {
		return nil, err
	}

	// Entitlement is derived from the stored row, never from the actor snapshot.
	user, err := u.users.FindByID(ctx, repository.NoTX, actor.ID)
	if err != nil {
		return nil, err
	}
	ent, err := model.EvaluateEntitlement(user, u.now())
	if err != nil {
		return nil, err
	}
	a, err := model.NewActivity("", actor.ID, fields, nil, u.currency)
	if err != nil {
		return nil, err
	}

	urls, err := u.saga.UploadAll(ctx, files)
	if err != nil {
		log.Error().Err(err).Msg("photo upload failed")
		return nil, err
	}
	a.Photos = urls

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.activities.Save(ctx, tx, a); err != nil {
			return err
		}
		// consumed only after the activity row is written
		if err := u.users.ConsumeEntitlement(ctx, tx, actor.ID, ent); err != nil {
			return err
		}
		return u.users.AddJoinedActivity(ctx, tx, actor.ID, a.ID)
	})
	if err != nil {
		log.Error().Err(err).Str("activity_id", a.ID).Msg("activity create failed, rolling back media")
		u.saga.Rollback(ctx, urls)
		return nil, err
	}

	metrics.IncActivityCreated(string(ent))
	log.Info().Str("activity_id", a.ID).Str("entitlement", string(ent)).Int("photos", len(urls)).Msg("activity created")
	return a, nil
}

func (u *activityUC) Update(ctx context.Context, actor model.Actor, id string, patch model.ActivityPatch) (*model.Activity, error) {
	defer logging.TraceDuration(u.log, "ActivityUC.Update")()
	if actor.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	if err := u.validator.ID("id", id); err != nil {
		return nil, err
	}
	if err := u.validator.Struct(patch); err != nil {
		return nil, err
	}

	var out *model.Activity
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		a, err := u.activities.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if a.CreatedBy != actor.ID {
			return domain.ErrForbidden
		}
		if err := a.Apply(patch); err != nil {
			return err
		}
		if err := u.activities.Update(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *activityUC) Get(ctx context.Context, id string) (*model.Activity, error) {
	if err := u.validator.ID("id", id); err != nil {
		return nil, err
	}
	return u.activities.FindByID(ctx, repository.NoTX, id)
}

// List returns activities dated today or later, ordered by date then start time.
func (u *activityUC) List(ctx context.Context, f model.ActivityFilter) (*model.ActivityPage, error) {
	defer logging.TraceDuration(u.log, "ActivityUC.List")()
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit < 1:
		f.Limit = DefaultPageLimit
	case f.Limit > MaxPageLimit:
		f.Limit = MaxPageLimit
	}
	now := u.now().UTC()
	f.From = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	items, total, err := u.activities.List(ctx, repository.NoTX, f)
	if err != nil {
		return nil, err
	}
	return model.NewActivityPage(items, f.Page, f.Limit, total), nil
}

func (u *activityUC) Participants(ctx context.Context, id string) ([]model.ParticipantSummary, error) {
	a, err := u.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	users, err := u.users.FindByIDs(ctx, repository.NoTX, a.Participants)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.User, len(users))
	for _, usr := range users {
		byID[usr.ID] = usr
	}
	out := make([]model.ParticipantSummary, 0, len(a.Participants))
	for _, pid := range a.Participants {
		usr, ok := byID[pid]
		if !ok {
			continue
		}
		out = append(out, model.ParticipantSummary{ID: usr.ID, Name: usr.Name})
	}
	return out, nil
}
