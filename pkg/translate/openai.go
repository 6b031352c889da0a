package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/realtime-ai/counseling-interpreter/pkg/events"
)

const openAIDefaultModel = "gpt-4o"

// OpenAIConfig configures OpenAITranslator.
type OpenAIConfig struct {
	APIKey      string
	Model       string  // default gpt-4o
	BaseURL     string  // optional, for proxies and tests
	Temperature float64 // default 0.3
	MaxTokens   int64   // default 500
	Logger      *zap.Logger
}

// OpenAITranslator streams chat completions.
type OpenAITranslator struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
	logger      *zap.Logger
}

// NewOpenAITranslator creates an OpenAI-backed translator.
func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	t := &OpenAITranslator{
		client:      &client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}
	if t.model == "" {
		t.model = openAIDefaultModel
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
	t.logger = t.logger.With(zap.String("component", "translate.openai"))

	return t, nil
}

// Name returns the provider name.
func (t *OpenAITranslator) Name() string {
	return "openai"
}

// TranslateStreaming translates text and forwards each delta to onFragment.
func (t *OpenAITranslator) TranslateStreaming(ctx context.Context, text string, direction events.Direction, onFragment FragmentFunc) (string, error) {
	profile, err := ProfileFor(direction)
	if err != nil {
		return "", &Error{Provider: t.Name(), Direction: direction, Err: err}
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(profile.SystemPrompt),
			openai.UserMessage(text),
		},
		Model:               shared.ChatModel(t.model),
		Temperature:         openai.Float(t.temperature),
		MaxCompletionTokens: openai.Int(t.maxTokens),
	}

	stream := t.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var builder strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			builder.WriteString(delta)
			emit(onFragment, delta)
		}
	}

	if err := stream.Err(); err != nil {
		t.logger.Warn("translation stream failed", zap.String("direction", string(direction)), zap.Error(err))
		return "", &Error{Provider: t.Name(), Direction: direction, Err: err}
	}

	result := builder.String()
	if strings.TrimSpace(result) == "" {
		return "", &Error{Provider: t.Name(), Direction: direction, Err: errors.New("empty translation")}
	}
	return result, nil
}

var _ Translator = (*OpenAITranslator)(nil)
