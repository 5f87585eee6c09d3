package shared

import (
	"context"
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each one is emitted after the transaction that caused it commits.
const (
	EventStudentAdded   EventType = "student.added"
	EventStudentUpdated EventType = "student.updated"
	EventStudentDeleted EventType = "student.deleted"
	EventGradesRecorded EventType = "grades.recorded"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the roll number of the student that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Student Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentAddedEvent is emitted when a new student is created.
type StudentAddedEvent struct {
	BaseEvent
	Name string `json:"name"`
}

// Payload implements Event.
func (e StudentAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"roll_number": e.AggregateId,
		"name":        e.Name,
	}
}

// NewStudentAddedEvent creates a StudentAddedEvent.
func NewStudentAddedEvent(rollNumber, name string) StudentAddedEvent {
	return StudentAddedEvent{
		BaseEvent: NewBaseEvent(EventStudentAdded, rollNumber),
		Name:      name,
	}
}

// StudentUpdatedEvent is emitted when name or roll number change.
type StudentUpdatedEvent struct {
	BaseEvent
	PreviousRollNumber string `json:"previous_roll_number"`
	Name               string `json:"name"`
}

// Payload implements Event.
func (e StudentUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"roll_number":          e.AggregateId,
		"previous_roll_number": e.PreviousRollNumber,
		"name":                 e.Name,
	}
}

// NewStudentUpdatedEvent creates a StudentUpdatedEvent.
func NewStudentUpdatedEvent(previousRoll, rollNumber, name string) StudentUpdatedEvent {
	return StudentUpdatedEvent{
		BaseEvent:          NewBaseEvent(EventStudentUpdated, rollNumber),
		PreviousRollNumber: previousRoll,
		Name:               name,
	}
}

// StudentDeletedEvent is emitted when a student and all their grades are removed.
type StudentDeletedEvent struct {
	BaseEvent
}

// Payload implements Event.
func (e StudentDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"roll_number": e.AggregateId,
	}
}

// NewStudentDeletedEvent creates a StudentDeletedEvent.
func NewStudentDeletedEvent(rollNumber string) StudentDeletedEvent {
	return StudentDeletedEvent{BaseEvent: NewBaseEvent(EventStudentDeleted, rollNumber)}
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade Events
// ═══════════════════════════════════════════════════════════════════════════

// GradesRecordedEvent is emitted after a batch of grades was upserted.
type GradesRecordedEvent struct {
	BaseEvent
	Grades  map[string]float64 `json:"grades"`
	Average float64            `json:"average"`
}

// Payload implements Event.
func (e GradesRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"roll_number": e.AggregateId,
		"grades":      e.Grades,
		"average":     e.Average,
	}
}

// NewGradesRecordedEvent creates a GradesRecordedEvent.
func NewGradesRecordedEvent(rollNumber string, grades map[string]float64, average float64) GradesRecordedEvent {
	return GradesRecordedEvent{
		BaseEvent: NewBaseEvent(EventGradesRecorded, rollNumber),
		Grades:    grades,
		Average:   average,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes the event payload into an envelope with the given ID.
func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Payload:     payload,
	}, nil
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(ctx context.Context, event Event) error
}
