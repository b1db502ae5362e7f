package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/internal/testutil"
)

func TestSummaryAgent_Process(t *testing.T) {
	agent := NewSummaryAgent()
	segCtx := testutil.NewSegmentContextBuilder("sess-1").
		Text("Patient reports a headache since Monday").
		Speaker("patient").
		Entity("Symptom", "headache", 0.9).
		Intent("Summary", 0.8).
		Build()
	segCtx.Segment.Confidence = 0.9

	result, err := agent.Process(context.Background(), segCtx)
	require.NoError(t, err)
	require.Len(t, result.Documents, 1)

	doc := result.Documents[0]
	assert.Equal(t, "summary", doc.Type)
	assert.Contains(t, doc.Content, "patient")
	assert.Contains(t, doc.Content, "headache (Symptom)")
	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
}

func TestSummaryAgent_Process_EmptyText(t *testing.T) {
	agent := NewSummaryAgent()
	segCtx := testutil.NewSegmentContextBuilder("sess-1").Text("   ").Build()

	_, err := agent.Process(context.Background(), segCtx)
	assert.Error(t, err)
}

func TestPrescriptionAgent_Process(t *testing.T) {
	agent := NewPrescriptionAgent()
	segCtx := testutil.NewSegmentContextBuilder("sess-1").
		Text("take amoxicillin 500 mg twice a day").
		Entity(EntityMedicationName, "amoxicillin", 0.9).
		Entity(EntityDosage, "500 mg", 0.8).
		Entity(EntityFrequency, "twice a day", 0.7).
		Build()

	result, err := agent.Process(context.Background(), segCtx)
	require.NoError(t, err)
	require.Len(t, result.Documents, 1)

	doc := result.Documents[0]
	assert.Equal(t, "prescription", doc.Type)
	assert.Contains(t, doc.Content, "amoxicillin, 500 mg, twice a day")
	// Confidence is the weakest medication entity.
	assert.Equal(t, 0.9, result.Confidence)
}

func TestPrescriptionAgent_Process_MinimumMedicationConfidence(t *testing.T) {
	agent := NewPrescriptionAgent()
	segCtx := testutil.NewSegmentContextBuilder("sess-1").
		Entity(EntityMedicationName, "amoxicillin", 0.9).
		Entity(EntityMedicationName, "metformin", 0.5).
		Build()

	result, err := agent.Process(context.Background(), segCtx)
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestPrescriptionAgent_Process_NoMedication(t *testing.T) {
	agent := NewPrescriptionAgent()
	segCtx := testutil.NewSegmentContextBuilder("sess-1").
		Entity("Symptom", "fever", 0.9).
		Build()

	_, err := agent.Process(context.Background(), segCtx)
	assert.Error(t, err)
}

func TestFollowUpAgent_Process_WithTimeframe(t *testing.T) {
	agent := NewFollowUpAgent()
	segCtx := testutil.NewSegmentContextBuilder("sess-1").
		Text("come back in two weeks").
		Entity(EntityTimeframe, "two weeks", 0.9).
		Intent("FollowUp", 0.8).
		Build()

	result, err := agent.Process(context.Background(), segCtx)
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)

	action := result.Actions[0]
	assert.Equal(t, "Follow-up appointment", action.Title)
	assert.Contains(t, action.Description, "two weeks")
	require.NotNil(t, action.Due)
	assert.Equal(t, 0.8, result.Confidence)
}

func TestFollowUpAgent_Process_DefaultHorizon(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	agent := &FollowUpAgent{now: func() time.Time { return fixed }}
	segCtx := testutil.NewSegmentContextBuilder("sess-1").Intent("FollowUp", 0.8).Build()

	result, err := agent.Process(context.Background(), segCtx)
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	require.NotNil(t, result.Actions[0].Due)
	assert.Equal(t, fixed.AddDate(0, 0, 14), *result.Actions[0].Due)
}

func TestActionItemAgent_Process_TaskEntities(t *testing.T) {
	agent := NewActionItemAgent()
	segCtx := testutil.NewSegmentContextBuilder("sess-1").
		Text("order a blood panel and schedule an x-ray").
		Speaker("clinician").
		Entity(EntityTask, "order", 0.9).
		Entity(EntityTask, "schedule", 0.9).
		Intent("ActionItem", 0.8).
		Build()

	result, err := agent.Process(context.Background(), segCtx)
	require.NoError(t, err)
	require.Len(t, result.Actions, 2)
	assert.Equal(t, "order", result.Actions[0].Title)
	assert.Contains(t, result.Actions[0].Description, "clinician")
}

func TestActionItemAgent_Process_FallbackAction(t *testing.T) {
	agent := NewActionItemAgent()
	segCtx := testutil.NewSegmentContextBuilder("sess-1").
		Text("  make sure this gets done  ").
		Intent("ActionItem", 0.8).
		Build()

	result, err := agent.Process(context.Background(), segCtx)
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "Review utterance", result.Actions[0].Title)
	assert.Equal(t, "make sure this gets done", result.Actions[0].Description)
}

func TestBlendConfidence(t *testing.T) {
	assert.Zero(t, blendConfidence())
	assert.Equal(t, 0.5, blendConfidence(0.5))
	assert.InDelta(t, 0.6, blendConfidence(0.4, 0.8), 1e-9)
}

// Interface compliance
var (
	_ core.Agent = (*SummaryAgent)(nil)
	_ core.Agent = (*PrescriptionAgent)(nil)
	_ core.Agent = (*FollowUpAgent)(nil)
	_ core.Agent = (*ActionItemAgent)(nil)
)
