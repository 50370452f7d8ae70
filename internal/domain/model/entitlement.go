package model

import (
	"time"

	"activity-engine/internal/domain"
)

// Entitlement names the right consumed when a user creates an activity.
type Entitlement string

const (
	EntitlementPremium Entitlement = "premium"
	EntitlementSingle  Entitlement = "single"
	EntitlementFree    Entitlement = "free"
)

// EvaluateEntitlement decides, from the raw plan fields, which entitlement a new
// activity would consume. First match wins: an active monthly/yearly plan, then
// single credits, then the one-time free trial.
func EvaluateEntitlement(u *User, now time.Time) (Entitlement, error) {
	if u == nil {
		return "", domain.ErrUnauthorized
	}
	if u.PlanType.IsTimeBased() && u.PlanEndDate != nil && now.Before(*u.PlanEndDate) {
		return EntitlementPremium, nil
	}
	if u.PlanType == PlanSingle && u.RemainingActivityCount > 0 {
		return EntitlementSingle, nil
	}
	if !u.HasUsedFreeTrial {
		return EntitlementFree, nil
	}
	return "", domain.ErrNoEntitlement
}

// ConsumeEntitlement applies the side effect of e to the in-memory user. Stores
// perform the same transition with a conditional write.
func (u *User) ConsumeEntitlement(e Entitlement) error {
	switch e {
	case EntitlementPremium:
		return nil
	case EntitlementSingle:
		if u.PlanType != PlanSingle || u.RemainingActivityCount <= 0 {
			return domain.ErrNoEntitlement
		}
		u.RemainingActivityCount--
		if u.RemainingActivityCount == 0 {
			u.PlanType = PlanNone
		}
		return nil
	case EntitlementFree:
		if u.HasUsedFreeTrial {
			return domain.ErrNoEntitlement
		}
		u.HasUsedFreeTrial = true
		return nil
	default:
		return domain.ErrInvalidArgument
	}
}
