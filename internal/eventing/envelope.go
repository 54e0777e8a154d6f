package eventing

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types mirrored to the message bus.
const (
	EventMonitorsSnapshot = "dashboard.monitors.snapshot"
	EventAlarmsSnapshot   = "dashboard.alarms.snapshot"
)

// Envelope wraps event payload with metadata.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id"`
	SchemaVersion int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// Meta provides envelope overrides.
type Meta struct {
	EventID       string
	OccurredAt    time.Time
	CorrelationID string
	SchemaVersion int
}

// BuildEnvelope constructs an envelope from event payload and metadata.
func BuildEnvelope(eventType string, event any, meta Meta) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, errors.New("eventing: empty event type")
	}
	if event == nil {
		return Envelope{}, errors.New("eventing: nil event")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, err
	}

	occurredAt := meta.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	eventID := meta.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	correlationID := meta.CorrelationID
	if correlationID == "" {
		correlationID = eventID
	}
	schemaVersion := meta.SchemaVersion
	if schemaVersion == 0 {
		schemaVersion = 1
	}

	return Envelope{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    occurredAt.UTC(),
		CorrelationID: correlationID,
		SchemaVersion: schemaVersion,
		Payload:       payload,
	}, nil
}
