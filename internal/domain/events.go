package domain

import (
	"context"
	"time"
)

// EventTypeTerminalOperation is the event type assigned to every terminal
// operation event.
const EventTypeTerminalOperation = "terminal.operation"

// Notifier receives a human-readable line for every state transition and
// operation outcome. The console prints these to the cardholder; tests
// collect them. Notifiers are invoked synchronously, so they must be cheap.
type Notifier func(message string)

// TerminalEvent is the envelope published to the message broker after every
// terminal operation, successful or declined. Analytics consumes these
// events and persists them for reporting.
type TerminalEvent struct {
	EventID        string        `json:"eventId"`
	EventType      string        `json:"eventType"`
	EventTimestamp string        `json:"eventTimestamp"`
	TerminalID     string        `json:"terminalId"`
	SessionID      string        `json:"sessionId,omitempty"`
	Operation      OperationKind `json:"operation"`
	State          State         `json:"state"`
	ResultCode     string        `json:"resultCode"`
	Amount         string        `json:"amount,omitempty"`
	Balance        string        `json:"balance,omitempty"`
	Message        string        `json:"message,omitempty"`
	Timestamp      string        `json:"timestamp"`
}

// ParsedTimestamp returns the operation timestamp as time.Time.
func (e *TerminalEvent) ParsedTimestamp() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}

// EventPublisher publishes terminal events to external systems (e.g. message
// brokers) for analytics and audit.
type EventPublisher interface {
	PublishTerminalEvent(ctx context.Context, event *TerminalEvent) error
}
