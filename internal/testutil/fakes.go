package testutil

import (
	"context"
	"sync"

	"github.com/scribemesh/scribemesh/core"
)

// StubAgent is a configurable core.Agent implementation for tests. The
// function fields may be left nil; the zero behavior activates always and
// returns an empty successful result.
type StubAgent struct {
	AgentName    string
	ActivateFunc func(ctx context.Context, segCtx core.SegmentContext) bool
	ProcessFunc  func(ctx context.Context, segCtx core.SegmentContext) (core.AgentResult, error)

	mu    sync.Mutex
	calls []core.SegmentContext
}

// Name implements core.Agent.
func (a *StubAgent) Name() string { return a.AgentName }

// ShouldActivate implements core.Agent.
func (a *StubAgent) ShouldActivate(ctx context.Context, segCtx core.SegmentContext) bool {
	if a.ActivateFunc != nil {
		return a.ActivateFunc(ctx, segCtx)
	}
	return true
}

// Process implements core.Agent and records each invocation.
func (a *StubAgent) Process(ctx context.Context, segCtx core.SegmentContext) (core.AgentResult, error) {
	a.mu.Lock()
	a.calls = append(a.calls, segCtx)
	a.mu.Unlock()
	if a.ProcessFunc != nil {
		return a.ProcessFunc(ctx, segCtx)
	}
	return core.AgentResult{Confidence: 1.0}, nil
}

// Calls returns a snapshot of the segment contexts Process was invoked with.
func (a *StubAgent) Calls() []core.SegmentContext {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.SegmentContext{}, a.calls...)
}

// StubExtractor is a configurable core.Extractor implementation for tests.
type StubExtractor struct {
	Entities    []core.ExtractedEntity
	Class       core.IntentClassification
	EntitiesErr error
	ClassErr    error
}

// ExtractEntities implements core.Extractor.
func (e *StubExtractor) ExtractEntities(ctx context.Context, text string) ([]core.ExtractedEntity, error) {
	if e.EntitiesErr != nil {
		return nil, e.EntitiesErr
	}
	return e.Entities, nil
}

// ClassifyIntent implements core.Extractor.
func (e *StubExtractor) ClassifyIntent(ctx context.Context, segment core.Segment, entities []core.ExtractedEntity) (core.IntentClassification, error) {
	if e.ClassErr != nil {
		return core.IntentClassification{}, e.ClassErr
	}
	return e.Class, nil
}

// RecordingBroadcaster captures every published event for later inspection.
type RecordingBroadcaster struct {
	mu     sync.Mutex
	events []core.Event
}

// Publish implements core.Broadcaster.
func (b *RecordingBroadcaster) Publish(sessionID string, ev core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

// Events returns a snapshot of all published events in order.
func (b *RecordingBroadcaster) Events() []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.Event{}, b.events...)
}

// EventsOfType returns the published events matching the given type.
func (b *RecordingBroadcaster) EventsOfType(t core.EventType) []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []core.Event
	for _, ev := range b.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
