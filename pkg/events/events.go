package events

import (
	"context"
	"time"
)

// Routing keys for mentorship request lifecycle events.
const (
	RequestCreated  = "request.created"
	RequestAssigned = "request.assigned"
	RequestUpdated  = "request.updated"
	RequestReplied  = "request.replied"
	RequestResolved = "request.resolved"
)

// Event is the JSON body relayed to subscribers.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	RequestID  string                 `json:"requestId"`
	ActorID    string                 `json:"actorId"`
	Status     string                 `json:"status,omitempty"`
	MentorID   *string                `json:"mentorId,omitempty"`
	StudentID  string                 `json:"studentId,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// Publisher relays lifecycle events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher discards events when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
