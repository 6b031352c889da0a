package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/realtime-ai/counseling-interpreter/pkg/events"
)

const geminiDefaultModel = "gemini-2.0-flash"

// GeminiConfig configures GeminiTranslator.
type GeminiConfig struct {
	APIKey      string
	Model       string  // default gemini-2.0-flash
	Temperature float64 // default 0.3
	MaxTokens   int64   // default 500
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// GeminiTranslator streams content generation from the Gemini API.
type GeminiTranslator struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int64
	logger      *zap.Logger
}

// NewGeminiTranslator creates a Gemini-backed translator.
func NewGeminiTranslator(ctx context.Context, cfg GeminiConfig) (*GeminiTranslator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGoogleAI,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	t := &GeminiTranslator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}
	if t.model == "" {
		t.model = geminiDefaultModel
	}
	if t.temperature == 0 {
		t.temperature = DefaultTemperature
	}
	if t.maxTokens == 0 {
		t.maxTokens = DefaultMaxTokens
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	t.logger = t.logger.With(zap.String("component", "translate.gemini"))

	return t, nil
}

// Name returns the provider name.
func (t *GeminiTranslator) Name() string {
	return "gemini"
}

// TranslateStreaming translates text and forwards each streamed part to onFragment.
func (t *GeminiTranslator) TranslateStreaming(ctx context.Context, text string, direction events.Direction, onFragment FragmentFunc) (string, error) {
	profile, err := ProfileFor(direction)
	if err != nil {
		return "", &Error{Provider: t.Name(), Direction: direction, Err: err}
	}

	stream := t.client.Models.GenerateContentStream(
		ctx,
		t.model,
		genai.Text(text),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{
					{Text: profile.SystemPrompt},
				},
			},
			Temperature:     genai.Ptr(t.temperature),
			MaxOutputTokens: genai.Ptr(t.maxTokens),
		},
	)

	var builder strings.Builder
	for resp, err := range stream {
		if err != nil {
			t.logger.Warn("translation stream failed", zap.String("direction", string(direction)), zap.Error(err))
			return "", &Error{Provider: t.Name(), Direction: direction, Err: err}
		}
		if chunk := collectGeminiText(resp); chunk != "" {
			builder.WriteString(chunk)
			emit(onFragment, chunk)
		}
	}

	result := builder.String()
	if strings.TrimSpace(result) == "" {
		return "", &Error{Provider: t.Name(), Direction: direction, Err: errors.New("empty translation")}
	}
	return result, nil
}

func collectGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
	}

	return builder.String()
}

var _ Translator = (*GeminiTranslator)(nil)
