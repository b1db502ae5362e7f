package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/scribemesh/scribemesh/core"
)

// SummaryAgent condenses a segment and its extracted entities into a short
// encounter summary document.
type SummaryAgent struct{}

// NewSummaryAgent constructs the built-in summary agent.
func NewSummaryAgent() *SummaryAgent { return &SummaryAgent{} }

// Name implements core.Agent.
func (a *SummaryAgent) Name() string { return "summary" }

// ShouldActivate implements core.Agent. The config rule alone governs
// activation for the summary agent.
func (a *SummaryAgent) ShouldActivate(context.Context, core.SegmentContext) bool { return true }

// Process implements core.Agent.
func (a *SummaryAgent) Process(ctx context.Context, segCtx core.SegmentContext) (core.AgentResult, error) {
	seg := segCtx.Segment
	if strings.TrimSpace(seg.Text) == "" {
		return core.AgentResult{}, fmt.Errorf("segment %s has no text to summarize", seg.ID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Speaker %s: %s\n", seg.Speaker, seg.Text)
	if len(segCtx.Entities) > 0 {
		b.WriteString("Noted: ")
		for i, entity := range segCtx.Entities {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s (%s)", entity.Text, entity.Category)
		}
		b.WriteString("\n")
	}

	return core.AgentResult{
		Documents: []core.Document{{
			Type:    "summary",
			Content: b.String(),
		}},
		Confidence: blendConfidence(seg.Confidence, segCtx.Intent.Top.Confidence),
	}, nil
}

// blendConfidence averages transcription and classification confidence so a
// generated artifact never claims more certainty than its weakest input.
func blendConfidence(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
