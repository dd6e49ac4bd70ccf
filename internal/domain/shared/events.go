package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types published after state changes are committed.
const (
	// Progress events
	EventXPGranted EventType = "progress.xp_granted"
	EventLevelUp   EventType = "progress.level_up"

	// Goal events
	EventGoalCreated   EventType = "goal.created"
	EventGoalCompleted EventType = "goal.completed"

	// Wellbeing events
	EventAssessmentCompleted EventType = "assessment.completed"
	EventChallengeCompleted  EventType = "challenge.completed"
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
	Version       int       `json:"version"`
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

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
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

// XPGrantedEvent is emitted after an XP grant has been persisted.
type XPGrantedEvent struct {
	BaseEvent
	Amount   int64  `json:"amount"`
	NewTotal int64  `json:"new_total"`
	Source   string `json:"source"`
	SourceID string `json:"source_id,omitempty"`
}

// Payload implements Event interface.
func (e XPGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
		"source_id": e.SourceID,
	}
}

// NewXPGrantedEvent creates a new XPGrantedEvent.
func NewXPGrantedEvent(userID string, amount, newTotal int64, source, sourceID string) XPGrantedEvent {
	return XPGrantedEvent{
		BaseEvent: NewBaseEvent(EventXPGranted, userID),
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
		SourceID:  sourceID,
	}
}

// LevelUpEvent is emitted when a grant moves the user to a higher level.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Goal Events
// ═══════════════════════════════════════════════════════════════════════════

// GoalEvent is emitted on goal creation and completion.
type GoalEvent struct {
	BaseEvent
	GoalID   string `json:"goal_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// Payload implements Event interface.
func (e GoalEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"goal_id":  e.GoalID,
		"title":    e.Title,
		"category": e.Category,
	}
}

// NewGoalEvent creates a goal event of the given type.
func NewGoalEvent(eventType EventType, userID, goalID, title, category string) GoalEvent {
	return GoalEvent{
		BaseEvent: NewBaseEvent(eventType, userID),
		GoalID:    goalID,
		Title:     title,
		Category:  category,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Wellbeing Events
// ═══════════════════════════════════════════════════════════════════════════

// AssessmentCompletedEvent is emitted after a questionnaire has been scored.
// Raw responses are intentionally not part of the payload.
type AssessmentCompletedEvent struct {
	BaseEvent
	Kind          string `json:"kind"`
	Severity      string `json:"severity"`
	NeedsFollowUp bool   `json:"needs_follow_up"`
}

// Payload implements Event interface.
func (e AssessmentCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":            e.Kind,
		"severity":        e.Severity,
		"needs_follow_up": e.NeedsFollowUp,
	}
}

// NewAssessmentCompletedEvent creates a new AssessmentCompletedEvent.
func NewAssessmentCompletedEvent(userID, kind, severity string, followUp bool) AssessmentCompletedEvent {
	return AssessmentCompletedEvent{
		BaseEvent:     NewBaseEvent(EventAssessmentCompleted, userID),
		Kind:          kind,
		Severity:      severity,
		NeedsFollowUp: followUp,
	}
}

// ChallengeCompletedEvent is emitted when a daily challenge is done.
type ChallengeCompletedEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	Day         string `json:"day"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"day":          e.Day,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(userID, challengeID, day string) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeCompleted, userID),
		ChallengeID: challengeID,
		Day:         day,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event payload into a transport envelope.
func NewEventEnvelope(event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	env := EventEnvelope{
		ID:          NewEntityID(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if b, ok := event.(interface{ correlation() string }); ok {
		env.CorrelationID = b.correlation()
	}
	return env, nil
}

func (e BaseEvent) correlation() string {
	return e.CorrelationID
}

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
