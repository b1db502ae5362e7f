package testutil

import (
	"time"

	"github.com/scribemesh/scribemesh/core"
)

// SegmentContextBuilder provides a fluent helper for constructing segment
// contexts in tests.
// Example:
//
//	sc := NewSegmentContextBuilder("sess-1").Text("take amoxicillin").Entity("MedicationName", "amoxicillin", 0.9).Intent("Prescription", 0.8).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type SegmentContextBuilder struct {
	sessionID string
	segmentID string
	text      string
	speaker   string
	entities  []core.ExtractedEntity
	intent    *core.IntentClassification
}

// NewSegmentContextBuilder creates a builder for a segment context bound to
// the given session ID.
func NewSegmentContextBuilder(sessionID string) *SegmentContextBuilder {
	return &SegmentContextBuilder{
		sessionID: sessionID,
		segmentID: core.NewID(),
		text:      "hello",
		speaker:   "clinician",
	}
}

// ID overrides the auto-generated segment ID (chainable).
func (b *SegmentContextBuilder) ID(id string) *SegmentContextBuilder { b.segmentID = id; return b }

// Text sets the transcribed text (chainable).
func (b *SegmentContextBuilder) Text(t string) *SegmentContextBuilder { b.text = t; return b }

// Speaker sets the speaker label (chainable).
func (b *SegmentContextBuilder) Speaker(s string) *SegmentContextBuilder { b.speaker = s; return b }

// Entity appends an extracted entity (chainable).
func (b *SegmentContextBuilder) Entity(category, text string, confidence float64) *SegmentContextBuilder {
	b.entities = append(b.entities, core.ExtractedEntity{
		Category:   category,
		Text:       text,
		Confidence: confidence,
	})
	return b
}

// Intent sets the top-ranked intent classification (chainable).
func (b *SegmentContextBuilder) Intent(category string, confidence float64) *SegmentContextBuilder {
	b.intent = &core.IntentClassification{
		Top: core.Intent{Category: category, Confidence: confidence},
	}
	return b
}

// Build constructs the core.SegmentContext value.
func (b *SegmentContextBuilder) Build() core.SegmentContext {
	sc := core.SegmentContext{
		Segment: core.Segment{
			ID:        b.segmentID,
			SessionID: b.sessionID,
			Text:      b.text,
			Speaker:   b.speaker,
			Timestamp: time.Now().UTC(),
		},
		Entities: append([]core.ExtractedEntity{}, b.entities...),
	}
	if b.intent != nil {
		sc.Intent = *b.intent
	} else {
		sc.Intent = core.IntentClassification{
			Top: core.Intent{Category: "General", Confidence: 0.3},
		}
	}
	return sc
}

// AgentConfigBuilder helps construct agent configurations with fluent
// chaining for tests.
type AgentConfigBuilder struct {
	cfg core.AgentConfig
}

// NewAgentConfigBuilder creates a builder for an enabled agent config with
// the given name and a 0.7 confidence threshold.
func NewAgentConfigBuilder(name string) *AgentConfigBuilder {
	return &AgentConfigBuilder{cfg: core.AgentConfig{
		Name:                name,
		Enabled:             true,
		ConfidenceThreshold: 0.7,
	}}
}

// Disabled marks the agent as disabled (chainable).
func (b *AgentConfigBuilder) Disabled() *AgentConfigBuilder { b.cfg.Enabled = false; return b }

// Threshold sets the confidence threshold (chainable).
func (b *AgentConfigBuilder) Threshold(t float64) *AgentConfigBuilder {
	b.cfg.ConfidenceThreshold = t
	return b
}

// Intents sets the triggering intents (chainable).
func (b *AgentConfigBuilder) Intents(intents ...string) *AgentConfigBuilder {
	b.cfg.TriggeringIntents = intents
	return b
}

// Entities sets the required entity categories (chainable).
func (b *AgentConfigBuilder) Entities(categories ...string) *AgentConfigBuilder {
	b.cfg.RequiredEntities = categories
	return b
}

// Build returns the core.AgentConfig value.
func (b *AgentConfigBuilder) Build() core.AgentConfig { return b.cfg }
