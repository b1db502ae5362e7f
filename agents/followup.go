package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/scribemesh/scribemesh/core"
)

// EntityTimeframe marks entities describing when a follow-up should happen
// ("two weeks", "next month").
const EntityTimeframe = "Timeframe"

// FollowUpAgent produces a follow-up appointment action when a segment
// carries scheduling intent or a timeframe mention.
type FollowUpAgent struct {
	now func() time.Time
}

// NewFollowUpAgent constructs the built-in follow-up agent.
func NewFollowUpAgent() *FollowUpAgent {
	return &FollowUpAgent{now: time.Now}
}

// Name implements core.Agent.
func (a *FollowUpAgent) Name() string { return "followup" }

// ShouldActivate implements core.Agent. Defers to the config rule.
func (a *FollowUpAgent) ShouldActivate(context.Context, core.SegmentContext) bool { return true }

// Process implements core.Agent.
func (a *FollowUpAgent) Process(ctx context.Context, segCtx core.SegmentContext) (core.AgentResult, error) {
	timeframes := entitiesByCategory(segCtx.Entities, EntityTimeframe)

	description := "Schedule follow-up visit"
	if len(timeframes) > 0 {
		description = fmt.Sprintf("Schedule follow-up visit in %s", timeframes[0].Text)
	}

	// Default follow-up horizon when no timeframe was spoken.
	due := a.now().UTC().AddDate(0, 0, 14)

	return core.AgentResult{
		Actions: []core.ActionItem{{
			Title:       "Follow-up appointment",
			Description: description,
			Due:         &due,
		}},
		Confidence: segCtx.Intent.Top.Confidence,
	}, nil
}
