// Package openai adapts the OpenAI Chat Completions API to the
// core.Extractor interface. The model is prompted for a strict JSON response
// which is parsed into entity and intent structures.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/scribemesh/scribemesh/core"
)

const entitySystemPrompt = `You extract clinical entities from transcribed speech.
Respond with a JSON array only, no prose. Each element:
{"category": "MedicationName|Dosage|Frequency|Symptom|Timeframe|Task", "text": "<span>", "confidence": <0..1>}`

const intentSystemPrompt = `You classify the intent of a transcribed speech segment.
Respond with JSON only, no prose:
{"top": {"category": "<intent>", "confidence": <0..1>}, "alternates": [{"category": "<intent>", "confidence": <0..1>}]}`

// Options configure the OpenAI extractor adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Extractor wraps the OpenAI Chat Completions API behind core.Extractor.
type Extractor struct {
	client *openai.Client
	opts   Options
}

// New creates an extractor using the default client (API key from env).
func New(optFns ...func(o *Options)) *Extractor {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an extractor from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Extractor {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.0,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Extractor{client: client, opts: opts}
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

// ClassifyIntent implements core.Extractor. Extracted entities are included
// in the prompt as additional signal.
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
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:               e.opts.Model,
		Temperature:         openai.Float(e.opts.Temperature),
		MaxCompletionTokens: openai.Int(e.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
