// ElevenLabs HTTP TTS Provider
//
// Implements StreamingTTSProvider using the ElevenLabs HTTP streaming API.
// Outputs MP3 at 44.1kHz/128kbps.
//
// Reference: https://elevenlabs.io/docs/api-reference/text-to-speech/stream

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	elevenLabsHTTPEndpoint           = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsHTTPDefaultVoice       = "21m00Tcm4TlvDq8ikWAM" // Rachel
	elevenLabsHTTPDefaultModel       = "eleven_turbo_v2_5"
	elevenLabsHTTPOutputFormat       = "mp3_44100_128"
	elevenLabsHTTPSampleRate         = 44100
	elevenLabsHTTPStreamingChunkSize = 4096
)

// ElevenLabs HTTP supported voices (partial list - use API to get full list)
var elevenLabsHTTPVoices = []string{
	"21m00Tcm4TlvDq8ikWAM", // Rachel
	"AZnzlk1XvdvUeBnXmlld", // Domi
	"EXAVITQu4vr4xnSDxMaL", // Bella
	"ErXwobaYiN019PkySvjV", // Antoni
	"MF3mGyEYCl7XYWbV9V6O", // Elli
	"TxGEqnHWrfWFTfGW9XjX", // Josh
	"pNInz6obpgDQGcFmaJgB", // Adam
}

// ElevenLabsHTTPTTSConfig holds the configuration for ElevenLabs HTTP TTS
type ElevenLabsHTTPTTSConfig struct {
	APIKey          string  // Required: ElevenLabs API key
	VoiceID         string  // Optional: Voice ID (default: Rachel)
	Model           string  // Optional: Model ID (default: eleven_turbo_v2_5)
	OutputFormat    string  // Optional: default mp3_44100_128
	Stability       float64 // Optional: Voice stability 0-1 (default: 0.5)
	SimilarityBoost float64 // Optional: Similarity boost 0-1 (default: 0.75)
	Endpoint        string  // Optional: overrides the API base, mainly for tests
	HTTPClient      *http.Client
}

// ElevenLabsHTTPTTSProvider implements StreamingTTSProvider using HTTP streaming
type ElevenLabsHTTPTTSProvider struct {
	apiKey          string
	voiceID         string
	model           string
	outputFormat    string
	stability       float64
	similarityBoost float64
	endpoint        string
	httpClient      *http.Client
}

// NewElevenLabsHTTPTTSProvider creates a new ElevenLabs HTTP TTS provider
func NewElevenLabsHTTPTTSProvider(config ElevenLabsHTTPTTSConfig) (*ElevenLabsHTTPTTSProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key is required")
	}

	p := &ElevenLabsHTTPTTSProvider{
		apiKey:          config.APIKey,
		voiceID:         config.VoiceID,
		model:           config.Model,
		outputFormat:    config.OutputFormat,
		stability:       config.Stability,
		similarityBoost: config.SimilarityBoost,
		endpoint:        strings.TrimRight(config.Endpoint, "/"),
		httpClient:      config.HTTPClient,
	}
	if p.voiceID == "" {
		p.voiceID = elevenLabsHTTPDefaultVoice
	}
	if p.model == "" {
		p.model = elevenLabsHTTPDefaultModel
	}
	if p.outputFormat == "" {
		p.outputFormat = elevenLabsHTTPOutputFormat
	}
	if p.stability == 0 {
		p.stability = 0.5
	}
	if p.similarityBoost == 0 {
		p.similarityBoost = 0.75
	}
	if p.endpoint == "" {
		p.endpoint = elevenLabsHTTPEndpoint
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{}
	}
	return p, nil
}

// Name returns the provider name
func (p *ElevenLabsHTTPTTSProvider) Name() string {
	return "elevenlabs"
}

// Synthesize converts text to speech (batch mode - collects all audio)
func (p *ElevenLabsHTTPTTSProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}

	audioChan, errChan := p.StreamSynthesize(ctx, req)

	var audioData []byte
	for chunk := range audioChan {
		audioData = append(audioData, chunk...)
	}
	if err := <-errChan; err != nil {
		return nil, err
	}

	return &SynthesizeResponse{
		AudioData: audioData,
		AudioFormat: AudioFormat{
			SampleRate: elevenLabsHTTPSampleRate,
			Channels:   1,
			MediaType:  "audio/mpeg",
			Encoding:   "mp3",
		},
	}, nil
}

// StreamSynthesize streams audio data as it's generated
func (p *ElevenLabsHTTPTTSProvider) StreamSynthesize(ctx context.Context, req *SynthesizeRequest) (<-chan []byte, <-chan error) {
	audioChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)
		defer close(audioChan)

		if err := p.doStreamSynthesize(ctx, req, audioChan); err != nil {
			errChan <- err
		}
	}()

	return audioChan, errChan
}

// doStreamSynthesize performs the actual HTTP streaming request
func (p *ElevenLabsHTTPTTSProvider) doStreamSynthesize(ctx context.Context, req *SynthesizeRequest, audioChan chan<- []byte) error {
	voiceID := req.Voice
	if voiceID == "" {
		voiceID = p.voiceID
	}

	params := url.Values{}
	params.Set("output_format", p.outputFormat)

	requestURL := fmt.Sprintf("%s/%s/stream?%s", p.endpoint, url.PathEscape(voiceID), params.Encode())

	bodyBytes, err := json.Marshal(elevenLabsHTTPRequestBody{
		Text:    req.Text,
		ModelID: p.model,
		VoiceSettings: &elevenLabsHTTPVoiceSettings{
			Stability:       p.stability,
			SimilarityBoost: p.similarityBoost,
			Style:           0,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return &SynthesisError{Provider: p.Name(), Err: fmt.Errorf("failed to marshal request body: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return &SynthesisError{Provider: p.Name(), Err: err}
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return &SynthesisError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &SynthesisError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	buffer := make([]byte, elevenLabsHTTPStreamingChunkSize)
	for {
		n, err := resp.Body.Read(buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])

			select {
			case audioChan <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return &SynthesisError{Provider: p.Name(), Err: fmt.Errorf("failed to read response body: %w", err)}
		}
	}
}

// GetSupportedVoices returns a list of known voice IDs
func (p *ElevenLabsHTTPTTSProvider) GetSupportedVoices() []string {
	return elevenLabsHTTPVoices
}

// GetDefaultVoice returns the configured voice ID
func (p *ElevenLabsHTTPTTSProvider) GetDefaultVoice() string {
	return p.voiceID
}

// ValidateConfig validates the provider configuration
func (p *ElevenLabsHTTPTTSProvider) ValidateConfig() error {
	if p.apiKey == "" {
		return fmt.Errorf("ElevenLabs API key is not set")
	}
	return nil
}

type elevenLabsHTTPRequestBody struct {
	Text          string                       `json:"text"`
	ModelID       string                       `json:"model_id,omitempty"`
	VoiceSettings *elevenLabsHTTPVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsHTTPVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

var _ StreamingTTSProvider = (*ElevenLabsHTTPTTSProvider)(nil)
