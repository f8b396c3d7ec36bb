// Package queue defines the domain events exchanged over the message
// broker and the consumer that turns them into an audit log.
package queue

import "time"

// AuditQueue is the durable queue every domain event is published to.
const AuditQueue = "peer_support.audit"

// Event types.
const (
	EventUserRegistered    = "user.registered"
	EventUserStatusChanged = "user.status_changed"
	EventUserDeleted       = "user.deleted"
	EventMessageCreated    = "message.created"
	EventMessageStatus     = "message.status_changed"
	EventResponseCreated   = "response.created"
)

// Event is a domain state transition.  Payloads carry identifiers and
// states only; message and response content stays out of the broker.
type Event struct {
	Type       string    `json:"type"`
	ActorID    string    `json:"actor_id,omitempty"`
	SubjectID  string    `json:"subject_id"`
	MessageID  string    `json:"message_id,omitempty"`
	Role       string    `json:"role,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
