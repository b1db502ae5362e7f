// Package pipeline composes the extraction collaborator, the decision engine
// and the dispatcher into the single per-segment orchestration operation.
package pipeline

import (
	"context"
	"time"

	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/decision"
	"github.com/scribemesh/scribemesh/dispatch"
	"github.com/scribemesh/scribemesh/logging"
)

// Options configure a Pipeline.
type Options struct {
	// Logger used for pass tracing. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Pipeline is the orchestration entry point for one segment: extract
// entities, classify intent, select agents against the current configs, fan
// out through the dispatcher.
//
// A failure in either extraction step is fatal for the segment: nothing is
// dispatched, no partial results are emitted, and a FatalPipelineError is
// returned to the caller.
type Pipeline struct {
	extractor  core.Extractor
	engine     *decision.Engine
	dispatcher *dispatch.Dispatcher
	configs    core.ConfigProvider
	store      core.Store
	agents     []core.Agent
	logger     logging.Logger
}

// New constructs a Pipeline over the given collaborators and agent set.
func New(
	extractor core.Extractor,
	engine *decision.Engine,
	dispatcher *dispatch.Dispatcher,
	configs core.ConfigProvider,
	store core.Store,
	agents []core.Agent,
	optFns ...func(o *Options),
) *Pipeline {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Pipeline{
		extractor:  extractor,
		engine:     engine,
		dispatcher: dispatcher,
		configs:    configs,
		store:      store,
		agents:     agents,
		logger:     opts.Logger,
	}
}

// ProcessSegment runs one orchestration pass for a persisted segment.
// Configs are re-read from the provider on every call so hot reloads take
// effect without restart.
func (p *Pipeline) ProcessSegment(ctx context.Context, segment core.Segment) (core.AggregatedResponse, error) {
	start := time.Now()

	entities, err := p.extractor.ExtractEntities(ctx, segment.Text)
	if err != nil {
		p.recordFatal(ctx, segment, start, err)
		return core.AggregatedResponse{}, core.NewFatalPipelineError("extract_entities", err)
	}

	intent, err := p.extractor.ClassifyIntent(ctx, segment, entities)
	if err != nil {
		p.recordFatal(ctx, segment, start, err)
		return core.AggregatedResponse{}, core.NewFatalPipelineError("classify_intent", err)
	}

	segCtx := core.SegmentContext{Segment: segment, Entities: entities, Intent: intent}

	activations := p.engine.Select(ctx, p.agents, p.configs.AgentConfigs(), segCtx)
	resp := p.dispatcher.Run(ctx, segment.SessionID, activations)

	p.logger.Debug("pipeline pass for segment %s triggered %d agents", segment.ID, len(resp.TriggeredAgents))

	return resp, nil
}

// recordFatal persists a failed whole-pass audit record. Decision-stage
// failures abort the segment, so this is the only trace the pass leaves.
func (p *Pipeline) recordFatal(ctx context.Context, segment core.Segment, start time.Time, cause error) {
	record := core.AuditRecord{
		ID:        core.NewID(),
		SessionID: segment.SessionID,
		Scope:     core.AuditScopePass,
		Success:   false,
		Duration:  time.Since(start),
		Message:   cause.Error(),
		Timestamp: time.Now().UTC(),
	}
	if err := p.store.SaveAuditRecord(ctx, record); err != nil {
		p.logger.Warn("failed to save audit record: %v", err)
	}
}
