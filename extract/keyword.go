// Package extract provides core.Extractor implementations. The Keyword
// extractor is deterministic and dependency-free, used as the default
// collaborator in tests and offline runs; the openai and anthropic
// subpackages adapt hosted models behind the same interface.
package extract

import (
	"context"
	"strings"

	"github.com/scribemesh/scribemesh/core"
)

// Lexicon maps an entity category to the lowercase terms that signal it.
type Lexicon map[string][]string

// IntentRules maps an intent category to the lowercase phrases that signal it.
type IntentRules map[string][]string

// DefaultLexicon covers the entity categories the built-in agents consume.
var DefaultLexicon = Lexicon{
	"MedicationName": {"amoxicillin", "ibuprofen", "metformin", "lisinopril", "atorvastatin", "omeprazole"},
	"Dosage":         {"mg", "milligram", "ml", "tablet"},
	"Frequency":      {"daily", "twice a day", "every morning", "every night", "weekly"},
	"Symptom":        {"headache", "fever", "cough", "pain", "nausea", "fatigue"},
	"Timeframe":      {"next week", "two weeks", "next month", "tomorrow", "in a month"},
	"Task":           {"order", "schedule", "refer", "send", "check"},
}

// DefaultIntentRules covers the intent categories the default agent configs
// trigger on.
var DefaultIntentRules = IntentRules{
	"Prescription": {"prescribe", "prescription", "take", "medication", "dose"},
	"FollowUp":     {"follow up", "come back", "see you", "next visit", "appointment"},
	"ActionItem":   {"order", "schedule", "refer", "send", "make sure"},
	"Summary":      {"to summarize", "in summary", "overall"},
}

// KeywordOptions configure a Keyword extractor.
type KeywordOptions struct {
	Lexicon     Lexicon
	IntentRules IntentRules
}

// Keyword is a deterministic core.Extractor matching lowercase terms against
// a lexicon. Entity confidence is fixed per match; intent confidence grows
// with the number of matching phrases.
type Keyword struct {
	lexicon Lexicon
	intents IntentRules
}

// NewKeyword constructs a keyword extractor with optional overrides.
func NewKeyword(optFns ...func(o *KeywordOptions)) *Keyword {
	opts := KeywordOptions{Lexicon: DefaultLexicon, IntentRules: DefaultIntentRules}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Keyword{lexicon: opts.Lexicon, intents: opts.IntentRules}
}

// ExtractEntities implements core.Extractor.
func (k *Keyword) ExtractEntities(_ context.Context, text string) ([]core.ExtractedEntity, error) {
	lower := strings.ToLower(text)
	entities := []core.ExtractedEntity{}
	for category, terms := range k.lexicon {
		for _, term := range terms {
			if strings.Contains(lower, term) {
				entities = append(entities, core.ExtractedEntity{
					Category:   category,
					Text:       term,
					Confidence: 0.9,
				})
			}
		}
	}
	return entities, nil
}

// ClassifyIntent implements core.Extractor. The category with the most
// phrase matches wins; with no matches the segment classifies as "General"
// with low confidence.
func (k *Keyword) ClassifyIntent(_ context.Context, segment core.Segment, _ []core.ExtractedEntity) (core.IntentClassification, error) {
	lower := strings.ToLower(segment.Text)

	best := core.Intent{Category: "General", Confidence: 0.3}
	var alternates []core.Intent
	for category, phrases := range k.intents {
		matches := 0
		for _, phrase := range phrases {
			if strings.Contains(lower, phrase) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		confidence := 0.6 + 0.1*float64(matches)
		if confidence > 0.95 {
			confidence = 0.95
		}
		intent := core.Intent{Category: category, Confidence: confidence}
		if confidence > best.Confidence {
			if best.Category != "General" {
				alternates = append(alternates, best)
			}
			best = intent
		} else {
			alternates = append(alternates, intent)
		}
	}

	return core.IntentClassification{Top: best, Alternates: alternates}, nil
}
