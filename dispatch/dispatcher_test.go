package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/decision"
	"github.com/scribemesh/scribemesh/internal/testutil"
	"github.com/scribemesh/scribemesh/store"
)

func activation(agent core.Agent, segCtx core.SegmentContext) decision.Activation {
	return decision.Activation{
		Agent:  agent,
		Config: testutil.NewAgentConfigBuilder(agent.Name()).Build(),
		SegCtx: segCtx,
	}
}

func TestDispatcher_Run_NoActivations(t *testing.T) {
	d := New(store.NewInMemory())

	resp := d.Run(context.Background(), "sess-1", nil)

	assert.Empty(t, resp.TriggeredAgents)
	assert.NotNil(t, resp.TriggeredAgents)
	assert.NotNil(t, resp.Documents)
	assert.NotNil(t, resp.Actions)
	assert.Zero(t, resp.Confidence)
}

func TestDispatcher_Run_AggregatesResults(t *testing.T) {
	st := store.NewInMemory()
	d := New(st)
	segCtx := testutil.NewSegmentContextBuilder("sess-1").Build()

	docAgent := &testutil.StubAgent{
		AgentName: "summary",
		ProcessFunc: func(context.Context, core.SegmentContext) (core.AgentResult, error) {
			return core.AgentResult{
				Documents:  []core.Document{{Type: "summary", Content: "note"}},
				Confidence: 0.8,
			}, nil
		},
	}
	actionAgent := &testutil.StubAgent{
		AgentName: "followup",
		ProcessFunc: func(context.Context, core.SegmentContext) (core.AgentResult, error) {
			return core.AgentResult{
				Actions:    []core.ActionItem{{Title: "Follow-up appointment"}},
				Confidence: 0.6,
			}, nil
		},
	}

	resp := d.Run(context.Background(), "sess-1", []decision.Activation{
		activation(docAgent, segCtx),
		activation(actionAgent, segCtx),
	})

	assert.Equal(t, []string{"summary", "followup"}, resp.TriggeredAgents)
	require.Len(t, resp.Documents, 1)
	require.Len(t, resp.Actions, 1)
	assert.InDelta(t, 0.7, resp.Confidence, 1e-9)
	assert.Equal(t, 0.8, resp.AgentConfidence["summary"])
	assert.Equal(t, 0.6, resp.AgentConfidence["followup"])

	// Artifacts are persisted and stamped by the dispatcher.
	docs, err := st.ListDocuments(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEmpty(t, docs[0].ID)
	assert.Equal(t, "sess-1", docs[0].SessionID)
	assert.Equal(t, "summary", docs[0].GeneratedBy)

	actions, err := st.ListActions(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "followup", actions[0].GeneratedBy)
}

func TestDispatcher_Run_FailureIsolation(t *testing.T) {
	st := store.NewInMemory()
	d := New(st)
	segCtx := testutil.NewSegmentContextBuilder("sess-1").Build()

	failing := &testutil.StubAgent{
		AgentName: "prescription",
		ProcessFunc: func(context.Context, core.SegmentContext) (core.AgentResult, error) {
			return core.AgentResult{}, errors.New("model unavailable")
		},
	}
	healthy := &testutil.StubAgent{
		AgentName: "summary",
		ProcessFunc: func(context.Context, core.SegmentContext) (core.AgentResult, error) {
			return core.AgentResult{
				Documents:  []core.Document{{Type: "summary", Content: "note"}},
				Confidence: 0.9,
			}, nil
		},
	}

	resp := d.Run(context.Background(), "sess-1", []decision.Activation{
		activation(failing, segCtx),
		activation(healthy, segCtx),
	})

	// Failed agents stay in the triggered list and drag the mean down.
	assert.Equal(t, []string{"prescription", "summary"}, resp.TriggeredAgents)
	assert.Len(t, resp.Documents, 1)
	assert.InDelta(t, 0.45, resp.Confidence, 1e-9)
	assert.Zero(t, resp.AgentConfidence["prescription"])
}

func TestDispatcher_Run_PanicIsolation(t *testing.T) {
	st := store.NewInMemory()
	d := New(st)
	segCtx := testutil.NewSegmentContextBuilder("sess-1").Build()

	panicking := &testutil.StubAgent{
		AgentName: "actionitem",
		ProcessFunc: func(context.Context, core.SegmentContext) (core.AgentResult, error) {
			panic("boom")
		},
	}
	healthy := &testutil.StubAgent{AgentName: "summary"}

	resp := d.Run(context.Background(), "sess-1", []decision.Activation{
		activation(panicking, segCtx),
		activation(healthy, segCtx),
	})

	assert.Equal(t, []string{"actionitem", "summary"}, resp.TriggeredAgents)
	assert.InDelta(t, 0.5, resp.Confidence, 1e-9)
}

func TestDispatcher_Run_AuditTrail(t *testing.T) {
	st := store.NewInMemory()
	d := New(st)
	segCtx := testutil.NewSegmentContextBuilder("sess-1").Build()

	failing := &testutil.StubAgent{
		AgentName: "prescription",
		ProcessFunc: func(context.Context, core.SegmentContext) (core.AgentResult, error) {
			return core.AgentResult{}, errors.New("model unavailable")
		},
	}
	healthy := &testutil.StubAgent{AgentName: "summary"}

	d.Run(context.Background(), "sess-1", []decision.Activation{
		activation(failing, segCtx),
		activation(healthy, segCtx),
	})

	records, err := st.ListAuditRecords(context.Background(), "sess-1")
	require.NoError(t, err)
	// One record per agent plus one for the whole pass.
	require.Len(t, records, 3)

	byAgent := make(map[string]core.AuditRecord)
	var pass *core.AuditRecord
	for i, rec := range records {
		switch rec.Scope {
		case core.AuditScopeAgent:
			byAgent[rec.AgentName] = rec
		case core.AuditScopePass:
			pass = &records[i]
		}
	}
	require.NotNil(t, pass)
	assert.True(t, pass.Success)
	assert.False(t, byAgent["prescription"].Success)
	assert.True(t, byAgent["summary"].Success)
}

// failingDocStore refuses document writes while keeping everything else
// backed by the in-memory store.
type failingDocStore struct {
	*store.InMemory
}

func (s *failingDocStore) SaveDocument(context.Context, core.Document) error {
	return errors.New("disk full")
}

func TestDispatcher_Run_PersistFailureRecordedInAudit(t *testing.T) {
	st := &failingDocStore{InMemory: store.NewInMemory()}
	d := New(st)
	segCtx := testutil.NewSegmentContextBuilder("sess-1").Build()

	agent := &testutil.StubAgent{
		AgentName: "summary",
		ProcessFunc: func(context.Context, core.SegmentContext) (core.AgentResult, error) {
			return core.AgentResult{
				Documents:  []core.Document{{Type: "summary", Content: "note"}},
				Confidence: 0.8,
			}, nil
		},
	}

	resp := d.Run(context.Background(), "sess-1", []decision.Activation{
		activation(agent, segCtx),
	})

	// The artifact stays in the aggregate even though persistence failed.
	require.Len(t, resp.Documents, 1)

	records, err := st.ListAuditRecords(context.Background(), "sess-1")
	require.NoError(t, err)
	var agentRec *core.AuditRecord
	for i, rec := range records {
		if rec.Scope == core.AuditScopeAgent {
			agentRec = &records[i]
		}
	}
	require.NotNil(t, agentRec)
	assert.False(t, agentRec.Success)
	assert.Contains(t, agentRec.Message, "save document")
}

func TestDispatcher_Run_BoundedConcurrency(t *testing.T) {
	st := store.NewInMemory()
	d := New(st, func(o *Options) { o.MaxConcurrent = 1 })
	segCtx := testutil.NewSegmentContextBuilder("sess-1").Build()

	var mu sync.Mutex
	running, peak := 0, 0
	track := func(context.Context, core.SegmentContext) (core.AgentResult, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		defer func() {
			mu.Lock()
			running--
			mu.Unlock()
		}()
		return core.AgentResult{Confidence: 1}, nil
	}

	resp := d.Run(context.Background(), "sess-1", []decision.Activation{
		activation(&testutil.StubAgent{AgentName: "a", ProcessFunc: track}, segCtx),
		activation(&testutil.StubAgent{AgentName: "b", ProcessFunc: track}, segCtx),
		activation(&testutil.StubAgent{AgentName: "c", ProcessFunc: track}, segCtx),
	})

	assert.Len(t, resp.TriggeredAgents, 3)
	assert.Equal(t, 1, peak)
}
