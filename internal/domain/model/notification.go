package model

import "time"

type NotificationKind string

const (
	NotificationParticipantJoined NotificationKind = "participant_joined"
	NotificationParticipantLeft   NotificationKind = "participant_left"
	NotificationPaymentSucceeded  NotificationKind = "payment_succeeded"
)

// Notification is pushed to a connected user's sockets.
type Notification struct {
	Kind       NotificationKind `json:"kind"`
	ActivityID string           `json:"activityId"`
	ActorID    string           `json:"actorId"`
	ActorName  string           `json:"actorName,omitempty"`
	Message    string           `json:"message"`
	At         time.Time        `json:"at"`
}
