package model

import (
	"strings"
	"time"

	"activity-engine/internal/domain"

	"github.com/google/uuid"
)

type PlanType string

const (
	PlanNone    PlanType = "none"
	PlanSingle  PlanType = "single"  // pay-per-use credits
	PlanMonthly PlanType = "monthly" // unlimited until PlanEndDate
	PlanYearly  PlanType = "yearly"  // unlimited until PlanEndDate
)

// Valid reports whether p is a known plan type.
func (p PlanType) Valid() bool {
	switch p {
	case PlanNone, PlanSingle, PlanMonthly, PlanYearly:
		return true
	}
	return false
}

// IsTimeBased reports whether the plan grants unlimited use inside a validity window.
func (p PlanType) IsTimeBased() bool { return p == PlanMonthly || p == PlanYearly }

// User holds identity plus the entitlement-relevant fields embedded in the user record.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`

	HasUsedFreeTrial       bool       `json:"hasUsedFreeTrial"`
	PlanType               PlanType   `json:"planType"`
	PlanStartDate          *time.Time `json:"planStartDate,omitempty"`
	PlanEndDate            *time.Time `json:"planEndDate,omitempty"`
	RemainingActivityCount int        `json:"remainingActivityCount"`

	JoinedActivities []string `json:"joinedActivities"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewUser(id, name, email string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:               id,
		Name:             name,
		Email:            email,
		PlanType:         PlanNone,
		JoinedActivities: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// ResetExpiredPlan drops a time-based plan past its end date, or a single plan with
// no credits left, back to PlanNone. Returns true when the user was changed.
func (u *User) ResetExpiredPlan(now time.Time) bool {
	switch {
	case u.PlanType.IsTimeBased() && (u.PlanEndDate == nil || !now.Before(*u.PlanEndDate)):
	case u.PlanType == PlanSingle && u.RemainingActivityCount <= 0:
	default:
		return false
	}
	u.PlanType = PlanNone
	u.PlanStartDate = nil
	u.PlanEndDate = nil
	u.RemainingActivityCount = 0
	u.UpdatedAt = now
	return true
}

// HasJoined reports whether the activity is in the user's joined list.
func (u *User) HasJoined(activityID string) bool {
	for _, id := range u.JoinedActivities {
		if id == activityID {
			return true
		}
	}
	return false
}

// ParticipantSummary is the public projection of a user listed on a roster.
type ParticipantSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
