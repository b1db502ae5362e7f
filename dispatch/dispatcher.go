// Package dispatch executes activated agents concurrently with per-agent
// failure isolation and aggregates their output into a single response.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/decision"
	"github.com/scribemesh/scribemesh/logging"
)

// Options configure a Dispatcher.
type Options struct {
	// MaxConcurrent bounds the number of agents running at once within one
	// dispatch pass. 0 means unbounded.
	MaxConcurrent int
	// Logger used for per-agent tracing. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Dispatcher fans out activated agents, awaits every invocation, persists
// generated artifacts and audit records, and aggregates results.
//
// Failure isolation: an error or panic inside one agent produces a
// degenerate AgentResult{Err, Confidence: 0} for that agent only and never
// cancels or corrupts sibling invocations. All invocations are awaited
// before aggregation proceeds.
type Dispatcher struct {
	store         core.Store
	maxConcurrent int
	logger        logging.Logger
}

// New constructs a Dispatcher persisting through the given store.
func New(store core.Store, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		MaxConcurrent: 8,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Dispatcher{store: store, maxConcurrent: opts.MaxConcurrent, logger: opts.Logger}
}

// indexed pairs a result with its dispatch position so aggregation order is
// deterministic regardless of goroutine completion order.
type indexed struct {
	pos    int
	agent  string
	result core.AgentResult
}

// Run invokes every activation concurrently and returns the aggregated
// response.
//
// Aggregation rules: TriggeredAgents lists every dispatched agent including
// ones that failed; documents and actions are the union across all results;
// Confidence is the arithmetic mean of every result's confidence with failed
// results contributing zero, or zero when no agent was dispatched.
func (d *Dispatcher) Run(ctx context.Context, sessionID string, activations []decision.Activation) core.AggregatedResponse {
	if len(activations) == 0 {
		return core.AggregatedResponse{
			TriggeredAgents: []string{},
			Documents:       []core.Document{},
			Actions:         []core.ActionItem{},
		}
	}

	passStart := time.Now()

	var wg sync.WaitGroup
	results := make(chan indexed, len(activations))

	var sem chan struct{}
	if d.maxConcurrent > 0 {
		sem = make(chan struct{}, d.maxConcurrent)
	}

	for i, act := range activations {
		wg.Add(1)
		go func(pos int, act decision.Activation) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results <- indexed{pos: pos, agent: act.Agent.Name(), result: d.invoke(ctx, sessionID, act)}
		}(i, act)
	}

	wg.Wait()
	close(results)

	ordered := make([]core.AgentResult, len(activations))
	names := make([]string, len(activations))
	for r := range results {
		ordered[r.pos] = r.result
		names[r.pos] = r.agent
	}

	resp := core.AggregatedResponse{
		TriggeredAgents: names,
		Documents:       []core.Document{},
		Actions:         []core.ActionItem{},
		AgentConfidence: make(map[string]float64, len(ordered)),
	}
	var sum float64
	for i, res := range ordered {
		resp.Documents = append(resp.Documents, res.Documents...)
		resp.Actions = append(resp.Actions, res.Actions...)
		resp.AgentConfidence[names[i]] = res.Confidence
		sum += res.Confidence
	}
	resp.Confidence = sum / float64(len(ordered))

	d.saveAudit(ctx, core.AuditRecord{
		ID:         core.NewID(),
		SessionID:  sessionID,
		Scope:      core.AuditScopePass,
		Success:    true,
		Duration:   time.Since(passStart),
		Confidence: resp.Confidence,
		Message:    fmt.Sprintf("dispatched %d agents", len(activations)),
		Timestamp:  time.Now().UTC(),
	})

	return resp
}

// invoke runs one agent inside its failure boundary, persists its artifacts
// on success and records an audit entry either way.
func (d *Dispatcher) invoke(ctx context.Context, sessionID string, act decision.Activation) core.AgentResult {
	start := time.Now()
	name := act.Agent.Name()

	result, err := d.safeProcess(ctx, act)
	if err != nil {
		result = core.AgentResult{Err: err.Error()}
		d.logger.Error("agent %s failed: %v", name, err)
	} else {
		d.persistArtifacts(ctx, sessionID, name, &result)
	}

	d.saveAudit(ctx, core.AuditRecord{
		ID:         core.NewID(),
		SessionID:  sessionID,
		Scope:      core.AuditScopeAgent,
		AgentName:  name,
		Success:    !result.Failed(),
		Duration:   time.Since(start),
		Confidence: result.Confidence,
		Message:    result.Err,
		Timestamp:  time.Now().UTC(),
	})

	return result
}

// safeProcess converts panics inside an agent into errors so one misbehaving
// agent cannot take down the pass.
func (d *Dispatcher) safeProcess(ctx context.Context, act decision.Activation) (result core.AgentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = core.AgentResult{}
			err = fmt.Errorf("agent %s panicked: %v", act.Agent.Name(), r)
		}
	}()
	return act.Agent.Process(ctx, act.SegCtx)
}

// persistArtifacts stamps each generated document and action with the
// session id and generating agent, then saves it. A persistence failure
// downgrades the whole result to a failed one; the artifact is still
// included in the aggregate per the union rule.
func (d *Dispatcher) persistArtifacts(ctx context.Context, sessionID, agentName string, result *core.AgentResult) {
	now := time.Now().UTC()
	for i := range result.Documents {
		doc := &result.Documents[i]
		if doc.ID == "" {
			doc.ID = core.NewID()
		}
		doc.SessionID = sessionID
		doc.GeneratedBy = agentName
		doc.Created = now
		if err := d.store.SaveDocument(ctx, *doc); err != nil {
			d.logger.Error("failed to save document %s: %v", doc.ID, err)
			result.Err = fmt.Sprintf("save document: %v", err)
		}
	}
	for i := range result.Actions {
		action := &result.Actions[i]
		if action.ID == "" {
			action.ID = core.NewID()
		}
		action.SessionID = sessionID
		action.GeneratedBy = agentName
		action.Created = now
		if err := d.store.SaveAction(ctx, *action); err != nil {
			d.logger.Error("failed to save action %s: %v", action.ID, err)
			result.Err = fmt.Sprintf("save action: %v", err)
		}
	}
}

func (d *Dispatcher) saveAudit(ctx context.Context, record core.AuditRecord) {
	if err := d.store.SaveAuditRecord(ctx, record); err != nil {
		d.logger.Warn("failed to save audit record: %v", err)
	}
}
