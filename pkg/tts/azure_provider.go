package tts

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	azureDefaultRegion       = "eastasia"
	azureDefaultVoice        = "zh-TW-HsiaoChenNeural"
	azureDefaultLanguage     = "zh-TW"
	azureDefaultOutputFormat = "audio-16khz-32kbitrate-mono-mp3"
)

var azureVoices = []string{
	"zh-TW-HsiaoChenNeural",
	"zh-TW-HsiaoYuNeural",
	"zh-TW-YunJheNeural",
	"en-US-JennyNeural",
	"en-US-GuyNeural",
}

// AzureConfig holds the configuration for Azure neural TTS over REST.
type AzureConfig struct {
	SubscriptionKey string // Required
	Region          string // default eastasia
	Voice           string // default zh-TW-HsiaoChenNeural
	OutputFormat    string // default audio-16khz-32kbitrate-mono-mp3
	Endpoint        string // overrides https://{region}.tts.speech.microsoft.com/cognitiveservices/v1
	HTTPClient      *http.Client
}

// AzureProvider implements TTSProvider with the Azure Speech REST API.
type AzureProvider struct {
	subscriptionKey string
	region          string
	voice           string
	outputFormat    string
	endpoint        string
	httpClient      *http.Client
}

// NewAzureProvider creates an Azure TTS provider.
func NewAzureProvider(cfg AzureConfig) (*AzureProvider, error) {
	if cfg.SubscriptionKey == "" {
		return nil, fmt.Errorf("Azure speech key is required")
	}

	p := &AzureProvider{
		subscriptionKey: cfg.SubscriptionKey,
		region:          cfg.Region,
		voice:           cfg.Voice,
		outputFormat:    cfg.OutputFormat,
		endpoint:        cfg.Endpoint,
		httpClient:      cfg.HTTPClient,
	}
	if p.region == "" {
		p.region = azureDefaultRegion
	}
	if p.voice == "" {
		p.voice = azureDefaultVoice
	}
	if p.outputFormat == "" {
		p.outputFormat = azureDefaultOutputFormat
	}
	if p.endpoint == "" {
		p.endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", p.region)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{}
	}
	return p, nil
}

// Name returns the provider name
func (p *AzureProvider) Name() string {
	return "azure"
}

// Synthesize renders text through an SSML request.
func (p *AzureProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}

	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}
	language := req.Language
	if language == "" {
		language = voiceLocale(voice)
	}

	ssml, err := buildSSML(req.Text, voice, language)
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", p.outputFormat)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.subscriptionKey)
	httpReq.Header.Set("User-Agent", "counseling-interpreter")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &SynthesisError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return &SynthesizeResponse{
		AudioData: audio,
		AudioFormat: AudioFormat{
			SampleRate: 16000,
			Channels:   1,
			MediaType:  "audio/mpeg",
			Encoding:   "mp3",
		},
	}, nil
}

// GetSupportedVoices returns a list of known voice names
func (p *AzureProvider) GetSupportedVoices() []string {
	return azureVoices
}

// GetDefaultVoice returns the configured voice
func (p *AzureProvider) GetDefaultVoice() string {
	return p.voice
}

// ValidateConfig validates the provider configuration
func (p *AzureProvider) ValidateConfig() error {
	if p.subscriptionKey == "" {
		return fmt.Errorf("Azure speech key is not set")
	}
	return nil
}

// buildSSML wraps escaped text in a single-voice SSML document.
func buildSSML(text, voice, language string) (string, error) {
	var escaped strings.Builder
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", err
	}
	var attr strings.Builder
	if err := xml.EscapeText(&attr, []byte(voice)); err != nil {
		return "", err
	}
	return fmt.Sprintf(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s"><voice name="%s">%s</voice></speak>`,
		language, attr.String(), escaped.String()), nil
}

// voiceLocale extracts "zh-TW" from "zh-TW-HsiaoChenNeural".
func voiceLocale(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return azureDefaultLanguage
	}
	return parts[0] + "-" + parts[1]
}

var _ TTSProvider = (*AzureProvider)(nil)
