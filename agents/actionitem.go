package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/scribemesh/scribemesh/core"
)

// EntityTask marks entities describing a concrete task mentioned in speech
// ("order blood panel", "send referral").
const EntityTask = "Task"

// ActionItemAgent turns task mentions into tracked action items.
type ActionItemAgent struct{}

// NewActionItemAgent constructs the built-in action item agent.
func NewActionItemAgent() *ActionItemAgent { return &ActionItemAgent{} }

// Name implements core.Agent.
func (a *ActionItemAgent) Name() string { return "actionitem" }

// ShouldActivate implements core.Agent. Defers to the config rule.
func (a *ActionItemAgent) ShouldActivate(context.Context, core.SegmentContext) bool { return true }

// Process implements core.Agent.
func (a *ActionItemAgent) Process(ctx context.Context, segCtx core.SegmentContext) (core.AgentResult, error) {
	tasks := entitiesByCategory(segCtx.Entities, EntityTask)

	var actions []core.ActionItem
	if len(tasks) == 0 {
		// Intent-path activation without task entities: track the utterance
		// itself so nothing spoken with action intent is lost.
		actions = append(actions, core.ActionItem{
			Title:       "Review utterance",
			Description: strings.TrimSpace(segCtx.Segment.Text),
		})
	}
	for _, task := range tasks {
		actions = append(actions, core.ActionItem{
			Title:       task.Text,
			Description: fmt.Sprintf("Mentioned by %s", segCtx.Segment.Speaker),
		})
	}

	return core.AgentResult{
		Actions:    actions,
		Confidence: blendConfidence(segCtx.Segment.Confidence, segCtx.Intent.Top.Confidence),
	}, nil
}
