// File: internal/usecase/roster_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
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

// Compile-time check
var _ RosterUseCase = (*rosterUC)(nil)

// RosterUseCase adds and removes participants of free activities.
type RosterUseCase interface {
	Join(ctx context.Context, actor model.Actor, activityID string) (*model.Activity, error)
	Leave(ctx context.Context, actor model.Actor, activityID string) (*model.Activity, error)
}

type rosterUC struct {
	activities repository.ActivityRepository
	users      repository.UserRepository
	tm         repository.TransactionManager
	notifier   adapter.Notifier // optional
	validator  *validation.Validator
	log        *zerolog.Logger
}

func NewRosterUseCase(
	activities repository.ActivityRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	notifier adapter.Notifier,
	v *validation.Validator,
	logger *zerolog.Logger,
) *rosterUC {
	l := logger.With().Str("component", "RosterUC").Logger()
	return &rosterUC{
		activities: activities,
		users:      users,
		tm:         tm,
		notifier:   notifier,
		validator:  v,
		log:        &l,
	}
}

func (u *rosterUC) Join(ctx context.Context, actor model.Actor, activityID string) (*model.Activity, error) {
	defer logging.TraceDuration(u.log, "RosterUC.Join")()
	if actor.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	if err := u.validator.ID("id", activityID); err != nil {
		return nil, err
	}

	var out *model.Activity
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// read in the tx: the cached copy may predate a leave that just committed
		a, err := u.activities.FindByID(ctx, tx, activityID)
		if err != nil {
			return err
		}
		if a.HasParticipant(actor.ID) {
			return domain.ErrAlreadyParticipant
		}
		if a.IsPriced() {
			return domain.ErrPaymentRequired
		}
		updated, err := u.activities.AddParticipant(ctx, tx, activityID, actor.ID)
		if err != nil {
			return err
		}
		if err := u.users.AddJoinedActivity(ctx, tx, actor.ID, activityID); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		metrics.IncRosterChange("join", rosterResult(err))
		return nil, err
	}

	metrics.IncRosterChange("join", "ok")
	u.notifyCreator(ctx, out, actor, model.NotificationParticipantJoined)
	return out, nil
}

func (u *rosterUC) Leave(ctx context.Context, actor model.Actor, activityID string) (*model.Activity, error) {
	defer logging.TraceDuration(u.log, "RosterUC.Leave")()
	if actor.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	if err := u.validator.ID("id", activityID); err != nil {
		return nil, err
	}

	var out *model.Activity
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		updated, err := u.activities.RemoveParticipant(ctx, tx, activityID, actor.ID)
		if err != nil {
			return err
		}
		if err := u.users.RemoveJoinedActivity(ctx, tx, actor.ID, activityID); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		metrics.IncRosterChange("leave", rosterResult(err))
		return nil, err
	}

	metrics.IncRosterChange("leave", "ok")
	u.notifyCreator(ctx, out, actor, model.NotificationParticipantLeft)
	return out, nil
}

func (u *rosterUC) notifyCreator(ctx context.Context, a *model.Activity, actor model.Actor, kind model.NotificationKind) {
	if u.notifier == nil || a.CreatedBy == actor.ID {
		return
	}
	verb := "joined"
	if kind == model.NotificationParticipantLeft {
		verb = "left"
	}
	u.notifier.Notify(ctx, a.CreatedBy, model.Notification{
		Kind:       kind,
		ActivityID: a.ID,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Message:    fmt.Sprintf("%s %s %q", actor.Name, verb, a.Title),
		At:         time.Now(),
	})
}

func rosterResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyParticipant):
		return "duplicate"
	case errors.Is(err, domain.ErrActivityFull):
		return "full"
	case errors.Is(err, domain.ErrNotParticipant):
		return "not_member"
	case errors.Is(err, domain.ErrPaymentRequired):
		return "payment_required"
	default:
		return "error"
	}
}
