// Package decision implements the activation rule evaluated once per
// configured agent per segment.
package decision

import (
	"context"

	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/logging"
)

// Activation is one (agent, context) pair selected for dispatch.
type Activation struct {
	Agent  core.Agent
	Config core.AgentConfig
	SegCtx core.SegmentContext
}

// Options configure the decision engine.
type Options struct {
	// Logger used for activation tracing. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine evaluates, per configured agent, whether it should activate for a
// given segment context. It is stateless and safe for concurrent use; the
// config map is supplied per call so hot-reloaded configs take effect on the
// next segment.
type Engine struct {
	logger logging.Logger
}

// New constructs a decision engine with optional overrides.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{logger: opts.Logger}
}

// Activate reports whether the config rule selects this agent for the
// segment context:
//
//	enabled AND (intent match with confidence >= threshold
//	             OR any required entity present)
//
// The entity path ignores the confidence threshold entirely; a single
// matching required entity is sufficient regardless of intent confidence.
func (e *Engine) Activate(config core.AgentConfig, segCtx core.SegmentContext) bool {
	if !config.Enabled {
		return false
	}
	top := segCtx.Intent.Top
	if config.HasTriggeringIntent(top.Category) && top.Confidence >= config.ConfidenceThreshold {
		return true
	}
	for _, entity := range segCtx.Entities {
		if config.RequiresEntity(entity.Category) {
			return true
		}
	}
	return false
}

// Select returns the activations to dispatch for one segment. An agent with
// no entry in configs is never activated. After the config rule passes, the
// agent's own ShouldActivate acts as a veto so custom agents can apply
// checks the config surface cannot express.
func (e *Engine) Select(
	ctx context.Context,
	agents []core.Agent,
	configs map[string]core.AgentConfig,
	segCtx core.SegmentContext,
) []Activation {
	activations := make([]Activation, 0, len(agents))
	for _, agent := range agents {
		config, ok := configs[agent.Name()]
		if !ok {
			e.logger.Debug("agent %s has no config, skipping", agent.Name())
			continue
		}
		if !e.Activate(config, segCtx) {
			continue
		}
		if !agent.ShouldActivate(ctx, segCtx) {
			e.logger.Debug("agent %s vetoed activation for segment %s", agent.Name(), segCtx.Segment.ID)
			continue
		}
		e.logger.Debug("agent %s activated for segment %s", agent.Name(), segCtx.Segment.ID)
		activations = append(activations, Activation{Agent: agent, Config: config, SegCtx: segCtx})
	}
	return activations
}
