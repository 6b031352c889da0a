package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	openAIDefaultModel = "tts-1"
	openAIDefaultVoice = "alloy"
)

// OpenAI supported voices
var openAIVoices = []string{
	"alloy",   // Neutral and balanced
	"echo",    // More expressive
	"fable",   // British accent
	"onyx",    // Deep and authoritative
	"nova",    // Energetic and lively
	"shimmer", // Soft and gentle
}

// OpenAITTSConfig holds the configuration for OpenAI speech synthesis
type OpenAITTSConfig struct {
	APIKey  string // Required
	Model   string // "tts-1" or "tts-1-hd"
	Voice   string // default alloy
	BaseURL string // optional, for proxies and tests
}

// OpenAITTSProvider implements TTSProvider for OpenAI's speech API
type OpenAITTSProvider struct {
	client *openai.Client
	apiKey string
	model  string
	voice  string
}

// NewOpenAITTSProvider creates a new OpenAI TTS provider
func NewOpenAITTSProvider(cfg OpenAITTSConfig) (*OpenAITTSProvider, error) {
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

	p := &OpenAITTSProvider{
		client: &client,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		voice:  cfg.Voice,
	}
	if p.model == "" {
		p.model = openAIDefaultModel
	}
	if p.voice == "" {
		p.voice = openAIDefaultVoice
	}
	return p, nil
}

// Name returns the provider name
func (p *OpenAITTSProvider) Name() string {
	return "openai"
}

// Synthesize converts text to MP3 speech
func (p *OpenAITTSProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}

	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}

	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(p.model),
		Input:          req.Text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &SynthesisError{Provider: p.Name(), StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, &SynthesisError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SynthesisError{Provider: p.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return &SynthesizeResponse{
		AudioData: audioData,
		AudioFormat: AudioFormat{
			SampleRate: 24000,
			Channels:   1,
			MediaType:  "audio/mpeg",
			Encoding:   "mp3",
		},
	}, nil
}

// GetSupportedVoices returns the list of supported voices
func (p *OpenAITTSProvider) GetSupportedVoices() []string {
	return openAIVoices
}

// GetDefaultVoice returns the configured voice
func (p *OpenAITTSProvider) GetDefaultVoice() string {
	return p.voice
}

// ValidateConfig validates the provider configuration
func (p *OpenAITTSProvider) ValidateConfig() error {
	if p.apiKey == "" {
		return fmt.Errorf("OpenAI API key is not set")
	}
	return nil
}

var _ TTSProvider = (*OpenAITTSProvider)(nil)
