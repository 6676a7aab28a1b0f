package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventUnauthorized is raised by the API client whenever the backend
	// answers 401. It carries no payload.
	EventUnauthorized EventType = "unauthorized"

	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventLogout         EventType = "logout"
)

// Event represents a notification flowing through a Dispatcher.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event of the given type.
func New(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoginPayload accompanies login events.
type LoginPayload struct {
	Email  string `json:"email"`
	IP     string `json:"ip,omitempty"`
	Reason string `json:"reason,omitempty"`
}
