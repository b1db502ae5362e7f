package core

import "time"

// SessionStatus enumerates the lifecycle states of a Session.
//
// Transitions are one-way: Active -> Completed (explicit stop, terminal) or
// Active -> Disconnected (last realtime connection dropped). Completed is
// never overwritten by a later disconnect.
type SessionStatus string

const (
	// SessionActive marks a session with at least one live connection.
	SessionActive SessionStatus = "active"
	// SessionCompleted marks an explicitly stopped session. Terminal.
	SessionCompleted SessionStatus = "completed"
	// SessionDisconnected marks a session whose last connection dropped
	// without an explicit stop.
	SessionDisconnected SessionStatus = "disconnected"
)

// Session groups the segments, connections and generated artifacts of one
// encounter. Artifacts are owned by the session and removed together with it.
type Session struct {
	ID           string        `json:"id" bson:"_id"`
	OwnerID      string        `json:"owner_id" bson:"owner_id"`
	Status       SessionStatus `json:"status" bson:"status"`
	Started      time.Time     `json:"started" bson:"started"`
	Ended        *time.Time    `json:"ended,omitempty" bson:"ended,omitempty"`
	SegmentCount int           `json:"segment_count" bson:"segment_count"`
	Metadata     map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Segment is a discrete unit of transcribed speech. Immutable once persisted;
// Sequence orders segments within a session.
type Segment struct {
	ID         string    `json:"id" bson:"_id"`
	SessionID  string    `json:"session_id" bson:"session_id"`
	Text       string    `json:"text" bson:"text"`
	Speaker    string    `json:"speaker" bson:"speaker"`
	Confidence float64   `json:"confidence" bson:"confidence"`
	Sequence   int       `json:"sequence" bson:"sequence"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// ExtractedEntity is a categorized text span found in a segment
// (e.g. category "MedicationName", text "Amoxicillin").
type ExtractedEntity struct {
	Category   string  `json:"category" bson:"category"`
	Text       string  `json:"text" bson:"text"`
	Confidence float64 `json:"confidence" bson:"confidence"`
}

// Intent is a single intent category with its classification confidence.
type Intent struct {
	Category   string  `json:"category" bson:"category"`
	Confidence float64 `json:"confidence" bson:"confidence"`
}

// IntentClassification carries the top-ranked intent for a segment plus any
// lower-ranked alternates the classifier produced.
type IntentClassification struct {
	Top        Intent   `json:"top" bson:"top"`
	Alternates []Intent `json:"alternates,omitempty" bson:"alternates,omitempty"`
}

// SegmentContext bundles a segment with its extraction results. It is the
// unit handed to the decision engine and to every activated agent.
type SegmentContext struct {
	Segment  Segment              `json:"segment"`
	Entities []ExtractedEntity    `json:"entities"`
	Intent   IntentClassification `json:"intent"`
}

// AgentConfig is the per-agent activation rule surface. Name is the unique
// key matching Agent.Name 1:1; an agent running without a config entry is
// treated as disabled.
type AgentConfig struct {
	Name                string   `json:"name" mapstructure:"name"`
	Enabled             bool     `json:"enabled" mapstructure:"enabled"`
	ConfidenceThreshold float64  `json:"confidence_threshold" mapstructure:"confidence_threshold"`
	TriggeringIntents   []string `json:"triggering_intents" mapstructure:"triggering_intents"`
	RequiredEntities    []string `json:"required_entities" mapstructure:"required_entities"`
}

// HasTriggeringIntent reports whether the category is one of the configured
// triggering intents.
func (c AgentConfig) HasTriggeringIntent(category string) bool {
	for _, t := range c.TriggeringIntents {
		if t == category {
			return true
		}
	}
	return false
}

// RequiresEntity reports whether the category is one of the configured
// required entity categories.
func (c AgentConfig) RequiresEntity(category string) bool {
	for _, r := range c.RequiredEntities {
		if r == category {
			return true
		}
	}
	return false
}

// Document is a generated artifact (note, prescription draft, summary, ...)
// produced by an agent and owned by a session.
type Document struct {
	ID          string    `json:"id" bson:"_id"`
	SessionID   string    `json:"session_id" bson:"session_id"`
	Type        string    `json:"type" bson:"type"`
	Content     string    `json:"content" bson:"content"`
	GeneratedBy string    `json:"generated_by" bson:"generated_by"`
	Created     time.Time `json:"created" bson:"created"`
}

// ActionItem is a follow-up task produced by an agent and owned by a session.
type ActionItem struct {
	ID          string     `json:"id" bson:"_id"`
	SessionID   string     `json:"session_id" bson:"session_id"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	Due         *time.Time `json:"due,omitempty" bson:"due,omitempty"`
	GeneratedBy string     `json:"generated_by" bson:"generated_by"`
	Created     time.Time  `json:"created" bson:"created"`
}

// AgentResult is the outcome of one agent invocation. A failed invocation is
// represented as data (Err non-empty, Confidence zero) rather than as an
// escaping error so siblings in the same dispatch are unaffected.
type AgentResult struct {
	Documents  []Document   `json:"documents,omitempty"`
	Actions    []ActionItem `json:"actions,omitempty"`
	Confidence float64      `json:"confidence"`
	Err        string       `json:"error,omitempty"`
}

// Failed reports whether the invocation produced an error.
func (r AgentResult) Failed() bool { return r.Err != "" }

// AggregatedResponse is the fan-in result of one dispatch pass.
//
// TriggeredAgents lists every agent that was dispatched, including agents
// that subsequently failed. Confidence is the arithmetic mean of every
// result's confidence (failed results contribute zero), or zero when no
// agent was dispatched.
type AggregatedResponse struct {
	TriggeredAgents []string     `json:"triggered_agents"`
	Documents       []Document   `json:"documents"`
	Actions         []ActionItem `json:"actions"`
	Confidence      float64      `json:"confidence"`
	// AgentConfidence maps each dispatched agent to its individual result
	// confidence (zero for failed agents).
	AgentConfidence map[string]float64 `json:"agent_confidence,omitempty"`
}

// AuditScope distinguishes per-agent audit records from whole-pass records.
type AuditScope string

const (
	// AuditScopeAgent records a single agent invocation.
	AuditScopeAgent AuditScope = "agent"
	// AuditScopePass records a whole orchestration pass over one segment.
	AuditScopePass AuditScope = "pass"
)

// AuditRecord traces one processing attempt for later inspection. Every
// agent invocation and every orchestration pass persists one.
type AuditRecord struct {
	ID         string        `json:"id" bson:"_id"`
	SessionID  string        `json:"session_id" bson:"session_id"`
	Scope      AuditScope    `json:"scope" bson:"scope"`
	AgentName  string        `json:"agent_name,omitempty" bson:"agent_name,omitempty"`
	Success    bool          `json:"success" bson:"success"`
	Duration   time.Duration `json:"duration" bson:"duration"`
	Confidence float64       `json:"confidence" bson:"confidence"`
	Message    string        `json:"message,omitempty" bson:"message,omitempty"`
	Timestamp  time.Time     `json:"timestamp" bson:"timestamp"`
}

// SessionSnapshot is the ephemeral cache value shared across server
// instances so a reconnecting client can land on any instance and recover
// its session coordinates.
type SessionSnapshot struct {
	SessionID    string            `json:"session_id"`
	OwnerID      string            `json:"owner_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ConnectionID string            `json:"connection_id"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
