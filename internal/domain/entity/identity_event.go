package entity

import "time"

// Identity event types published on the identity queue.
const (
	EventIdentityRegistered  = "identity.registered"
	EventIdentityLinked      = "identity.oauth_linked"
	EventIdentityUpdated     = "identity.updated"
	EventIdentityActivated   = "identity.activated"
	EventIdentityDeactivated = "identity.deactivated"
)

// IdentityEvent is the JSON payload put on the RabbitMQ identity queue.
// Consumers reload the identity by id; the email is informational.
type IdentityEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	IdentityID int64     `json:"identity_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}
