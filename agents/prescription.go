package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/scribemesh/scribemesh/core"
)

// Entity categories the prescription agent reads from the segment context.
const (
	EntityMedicationName = "MedicationName"
	EntityDosage         = "Dosage"
	EntityFrequency      = "Frequency"
)

// PrescriptionAgent drafts a prescription document from medication entities
// mentioned in a segment. It is typically configured with
// RequiredEntities: ["MedicationName"] so a medication mention activates it
// regardless of intent confidence.
type PrescriptionAgent struct{}

// NewPrescriptionAgent constructs the built-in prescription agent.
func NewPrescriptionAgent() *PrescriptionAgent { return &PrescriptionAgent{} }

// Name implements core.Agent.
func (a *PrescriptionAgent) Name() string { return "prescription" }

// ShouldActivate implements core.Agent. Defers to the config rule.
func (a *PrescriptionAgent) ShouldActivate(context.Context, core.SegmentContext) bool { return true }

// Process implements core.Agent.
func (a *PrescriptionAgent) Process(ctx context.Context, segCtx core.SegmentContext) (core.AgentResult, error) {
	medications := entitiesByCategory(segCtx.Entities, EntityMedicationName)
	if len(medications) == 0 {
		return core.AgentResult{}, fmt.Errorf("no medication entities in segment %s", segCtx.Segment.ID)
	}

	dosages := entitiesByCategory(segCtx.Entities, EntityDosage)
	frequencies := entitiesByCategory(segCtx.Entities, EntityFrequency)

	var b strings.Builder
	b.WriteString("Prescription draft\n")
	for _, med := range medications {
		fmt.Fprintf(&b, "- %s", med.Text)
		if len(dosages) > 0 {
			fmt.Fprintf(&b, ", %s", dosages[0].Text)
		}
		if len(frequencies) > 0 {
			fmt.Fprintf(&b, ", %s", frequencies[0].Text)
		}
		b.WriteString("\n")
	}

	confidence := medications[0].Confidence
	for _, med := range medications[1:] {
		if med.Confidence < confidence {
			confidence = med.Confidence
		}
	}

	return core.AgentResult{
		Documents: []core.Document{{
			Type:    "prescription",
			Content: b.String(),
		}},
		Confidence: confidence,
	}, nil
}

func entitiesByCategory(entities []core.ExtractedEntity, category string) []core.ExtractedEntity {
	var out []core.ExtractedEntity
	for _, entity := range entities {
		if entity.Category == category {
			out = append(out, entity)
		}
	}
	return out
}
