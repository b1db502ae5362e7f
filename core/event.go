package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType names the realtime events pushed to session-scoped subscribers.
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventSessionStopped      EventType = "session_stopped"
	EventSegmentReceived     EventType = "segment_received"
	EventAgentActivated      EventType = "agent_activated"
	EventDocumentGenerated   EventType = "document_generated"
	EventActionGenerated     EventType = "action_generated"
	EventProcessingCompleted EventType = "processing_completed"
	EventProcessingError     EventType = "processing_error"
	EventError               EventType = "error"

	// Direct reply events for inbound query operations.
	EventSessionHistory  EventType = "session_history"
	EventUserSessions    EventType = "user_sessions"
	EventSessionSnapshot EventType = "session_snapshot"
)

// Event is the unit pushed to realtime subscribers of a session. After
// emission it should be treated as immutable; Payload holds the
// type-specific body and must be JSON-serializable.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// SegmentReceivedPayload is the lightweight acknowledgement broadcast before
// any orchestration output for the same segment.
type SegmentReceivedPayload struct {
	SegmentID  string    `json:"segment_id"`
	Text       string    `json:"text"`
	Speaker    string    `json:"speaker"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// AgentActivatedPayload announces that an agent was dispatched for a segment.
type AgentActivatedPayload struct {
	AgentName  string  `json:"agent_name"`
	Confidence float64 `json:"confidence"`
}

// ProcessingCompletedPayload summarizes a finished orchestration pass.
type ProcessingCompletedPayload struct {
	TriggeredAgents   []string `json:"triggered_agents"`
	DocumentCount     int      `json:"document_count"`
	ActionCount       int      `json:"action_count"`
	OverallConfidence float64  `json:"overall_confidence"`
}

// ErrorPayload carries a user-visible failure message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEvent creates an event of the given type bound to a session.
func NewEvent(eventType EventType, sessionID string, payload any) Event {
	return Event{
		ID:        NewID(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewSegmentReceivedEvent builds the acknowledgement event for a persisted segment.
func NewSegmentReceivedEvent(segment Segment) Event {
	return NewEvent(EventSegmentReceived, segment.SessionID, SegmentReceivedPayload{
		SegmentID:  segment.ID,
		Text:       segment.Text,
		Speaker:    segment.Speaker,
		Confidence: segment.Confidence,
		Timestamp:  segment.Timestamp,
	})
}

// NewErrorEvent builds an Error event with a plain message payload.
func NewErrorEvent(sessionID, message string) Event {
	return NewEvent(EventError, sessionID, ErrorPayload{Message: message})
}

// NewProcessingErrorEvent builds a ProcessingError event for a failed pass.
func NewProcessingErrorEvent(sessionID, message string) Event {
	return NewEvent(EventProcessingError, sessionID, ErrorPayload{Message: message})
}

// NewID generates a unique identifier used for events, segments, artifacts
// and audit records.
func NewID() string { return uuid.NewString() }
