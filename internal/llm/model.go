// Package llm is the single choke point for calls to the hosted language
// model. Model abstracts the provider; Gateway adds the retry policy, tracing
// and the audit trail every call must leave behind.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrNoAPIKey is returned when a Gemini client is requested without a key.
var ErrNoAPIKey = errors.New("gemini api key is required")

// Request is one model invocation.
type Request struct {
	// Action names the operation for audit and analytics (see telemetry event names).
	Action            string
	SystemInstruction string
	Prompt            string
	// Schema, when set, asks for a JSON response matching it.
	Schema         *genai.Schema
	Temperature    *float32
	ThinkingBudget *int32
}

// Model generates text for a request.
//
// Stream yields text chunks in order. The sequence is finite and stops early
// when ctx is cancelled or the consumer stops iterating.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// safetySettings relaxes blocking to high-probability harm only; scripture
// quotes routinely trip lower thresholds.
func safetySettings() []*genai.SafetySetting {
	cats := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, 0, len(cats))
	for _, c := range cats {
		out = append(out, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockThresholdBlockOnlyHigh})
	}
	return out
}

// GenerateConfig translates req into the provider's request configuration.
func GenerateConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SafetySettings: safetySettings(),
		Temperature:    req.Temperature,
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}
	if req.ThinkingBudget != nil {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: req.ThinkingBudget}
	}
	return cfg
}

// GenAIModel calls Gemini through the google.golang.org/genai SDK.
type GenAIModel struct {
	client *genai.Client
	model  string
}

// NewGenAIModel creates a Gemini API client for model (DefaultModel when empty).
func NewGenAIModel(ctx context.Context, apiKey, model string) (*GenAIModel, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIModel{client: client, model: model}, nil
}

// Name returns the model identifier.
func (m *GenAIModel) Name() string { return m.model }

func (m *GenAIModel) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(req.Prompt), GenerateConfig(req))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

func (m *GenAIModel) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range m.client.Models.GenerateContentStream(ctx, m.model, genai.Text(req.Prompt), GenerateConfig(req)) {
			if err != nil {
				yield("", fmt.Errorf("stream content: %w", err))
				return
			}
			if t := resp.Text(); t != "" {
				if !yield(t, nil) {
					return
				}
			}
		}
	}
}
