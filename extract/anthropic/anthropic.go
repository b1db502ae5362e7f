// Package anthropic adapts the Anthropic Messages API to the core.Extractor
// interface.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/scribemesh/scribemesh/core"
)

const entitySystemPrompt = `You extract clinical entities from transcribed speech.
Respond with a JSON array only, no prose. Each element:
{"category": "MedicationName|Dosage|Frequency|Symptom|Timeframe|Task", "text": "<span>", "confidence": <0..1>}`

const intentSystemPrompt = `You classify the intent of a transcribed speech segment.
Respond with JSON only, no prose:
{"top": {"category": "<intent>", "confidence": <0..1>}, "alternates": [{"category": "<intent>", "confidence": <0..1>}]}`

// Options configure the Anthropic extractor adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Extractor wraps the Anthropic Messages API behind core.Extractor.
type Extractor struct {
	client *anthropic.Client
	opts   Options
}

// New creates an extractor using the official client.
func New(optFns ...func(o *Options)) *Extractor {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Extractor{client: &client, opts: opts}
}

// NewFromClient creates an extractor from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Extractor {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Extractor{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.0,
		MaxTokens:   1024,
	}
}

// ExtractEntities implements core.Extractor.
func (e *Extractor) ExtractEntities(ctx context.Context, text string) ([]core.ExtractedEntity, error) {
	raw, err := e.complete(ctx, entitySystemPrompt, text)
	if err != nil {
		return nil, err
	}
	var entities []core.ExtractedEntity
	if err := json.Unmarshal([]byte(raw), &entities); err != nil {
		return nil, fmt.Errorf("parse entity response: %w", err)
	}
	return entities, nil
}

// ClassifyIntent implements core.Extractor.
func (e *Extractor) ClassifyIntent(ctx context.Context, segment core.Segment, entities []core.ExtractedEntity) (core.IntentClassification, error) {
	var b strings.Builder
	b.WriteString(segment.Text)
	if len(entities) > 0 {
		b.WriteString("\n\nKnown entities: ")
		encoded, err := json.Marshal(entities)
		if err != nil {
			return core.IntentClassification{}, fmt.Errorf("encode entities: %w", err)
		}
		b.Write(encoded)
	}

	raw, err := e.complete(ctx, intentSystemPrompt, b.String())
	if err != nil {
		return core.IntentClassification{}, err
	}
	var classification core.IntentClassification
	if err := json.Unmarshal([]byte(raw), &classification); err != nil {
		return core.IntentClassification{}, fmt.Errorf("parse intent response: %w", err)
	}
	return classification, nil
}

func (e *Extractor) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       e.opts.Model,
		MaxTokens:   e.opts.MaxTokens,
		Temperature: anthropic.Float(e.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content returned")
	}
	return strings.TrimSpace(b.String()), nil
}
