package model

// Actor is the authenticated caller of a request. It is a snapshot taken when
// the request was authenticated; entitlement decisions reload the user.
type Actor struct {
	ID                     string
	Name                   string
	Email                  string
	PlanType               PlanType
	RemainingActivityCount int
	HasUsedFreeTrial       bool
}

func ActorFromUser(u *User) Actor {
	return Actor{
		ID:                     u.ID,
		Name:                   u.Name,
		Email:                  u.Email,
		PlanType:               u.PlanType,
		RemainingActivityCount: u.RemainingActivityCount,
		HasUsedFreeTrial:       u.HasUsedFreeTrial,
	}
}

func (a Actor) IsZero() bool { return a.ID == "" }
