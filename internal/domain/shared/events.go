package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Progress events
	EventProgressLogged    EventType = "progress.logged"
	EventAssignmentCreated EventType = "progress.assignment_created"

	// Alert events
	EventAlertOpened   EventType = "alert.opened"
	EventAlertUpdated  EventType = "alert.updated"
	EventAlertResolved EventType = "alert.resolved"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
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

// NewBaseEvent creates a new base event stamped with at.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressLoggedEvent is emitted after a daily log is written.
type ProgressLoggedEvent struct {
	BaseEvent
	StudentID    string `json:"student_id"`
	AssignmentID string `json:"assignment_id"`
	Date         string `json:"date"`
	Solved       int    `json:"solved"`
}

// Payload implements Event interface.
func (e ProgressLoggedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":    e.StudentID,
		"assignment_id": e.AssignmentID,
		"date":          e.Date,
		"solved":        e.Solved,
	}
}

// NewProgressLoggedEvent creates a new ProgressLoggedEvent.
func NewProgressLoggedEvent(logID, studentID, assignmentID, date string, solved int, at time.Time) ProgressLoggedEvent {
	return ProgressLoggedEvent{
		BaseEvent:    NewBaseEvent(EventProgressLogged, logID, at),
		StudentID:    studentID,
		AssignmentID: assignmentID,
		Date:         date,
		Solved:       solved,
	}
}

// AssignmentCreatedEvent is emitted after an assignment is stored.
type AssignmentCreatedEvent struct {
	BaseEvent
	StudentID     string `json:"student_id"`
	TopicID       string `json:"topic_id"`
	QuestionCount int    `json:"question_count"`
}

// Payload implements Event interface.
func (e AssignmentCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"topic_id":       e.TopicID,
		"question_count": e.QuestionCount,
	}
}

// NewAssignmentCreatedEvent creates a new AssignmentCreatedEvent.
func NewAssignmentCreatedEvent(assignmentID, studentID, topicID string, questionCount int, at time.Time) AssignmentCreatedEvent {
	return AssignmentCreatedEvent{
		BaseEvent:     NewBaseEvent(EventAssignmentCreated, assignmentID, at),
		StudentID:     studentID,
		TopicID:       topicID,
		QuestionCount: questionCount,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Alert Events
// ═══════════════════════════════════════════════════════════════════════════

// AlertEvent is emitted when an accuracy alert opens, refreshes or resolves.
// TopicID and LessonID are empty for the student-wide scope.
type AlertEvent struct {
	BaseEvent
	StudentID string  `json:"student_id"`
	TopicID   string  `json:"topic_id,omitempty"`
	LessonID  string  `json:"lesson_id,omitempty"`
	Accuracy  float64 `json:"accuracy"`
	Threshold float64 `json:"threshold"`
}

// Payload implements Event interface.
func (e AlertEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"topic_id":   e.TopicID,
		"lesson_id":  e.LessonID,
		"accuracy":   e.Accuracy,
		"threshold":  e.Threshold,
	}
}

// NewAlertEvent creates an AlertEvent of the given type.
func NewAlertEvent(eventType EventType, alertID, studentID, topicID, lessonID string, accuracy, threshold float64, at time.Time) AlertEvent {
	return AlertEvent{
		BaseEvent: NewBaseEvent(eventType, alertID, at),
		StudentID: studentID,
		TopicID:   topicID,
		LessonID:  lessonID,
		Accuracy:  accuracy,
		Threshold: threshold,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
