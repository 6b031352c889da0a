// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Provider names accepted by the *_PROVIDER and *_TTS variables.
const (
	ProviderDeepgram   = "deepgram"
	ProviderElevenLabs = "elevenlabs"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderAzure      = "azure"
	ProviderPolly      = "polly"
)

// NO_PEER_AUDIO values.
const (
	NoPeerAudioSelf = "self"
	NoPeerAudioDrop = "drop"
)

type Config struct {
	Port        int
	Env         string
	LogLevel    string
	CORSOrigins []string

	STTProvider         string
	TranslationProvider string
	EnToZhTTS           string
	ZhToEnTTS           string
	NoPeerAudio         string

	AudioFramesPerSecond float64
	AudioFrameBurst      int

	Deepgram   DeepgramConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Azure      AzureConfig
	ElevenLabs ElevenLabsConfig
	Polly      PollyConfig
	Trace      TraceConfig
}

type DeepgramConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey   string
	Model    string
	TTSVoice string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type AzureConfig struct {
	SpeechKey string
	Region    string
	Voice     string
}

type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	Model   string
}

type PollyConfig struct {
	Region  string
	ZhVoice string
	EnVoice string
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
}

// Load reads a .env file when one exists, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	port, err := getEnvInt("PORT", 3001)
	if err != nil {
		return nil, err
	}
	fps, err := getEnvFloat("AUDIO_FRAMES_PER_SECOND", 100)
	if err != nil {
		return nil, err
	}
	burst, err := getEnvInt("AUDIO_FRAME_BURST", 200)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        port,
		Env:         getEnv("NODE_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitList(getEnv("CORS_ORIGIN", "*")),

		STTProvider:         strings.ToLower(getEnv("STT_PROVIDER", ProviderDeepgram)),
		TranslationProvider: strings.ToLower(getEnv("TRANSLATION_PROVIDER", ProviderOpenAI)),
		EnToZhTTS:           strings.ToLower(getEnv("EN_TO_ZH_TTS", ProviderAzure)),
		ZhToEnTTS:           strings.ToLower(getEnv("ZH_TO_EN_TTS", ProviderElevenLabs)),
		NoPeerAudio:         strings.ToLower(getEnv("NO_PEER_AUDIO", NoPeerAudioSelf)),

		AudioFramesPerSecond: fps,
		AudioFrameBurst:      burst,

		Deepgram: DeepgramConfig{
			APIKey: os.Getenv("DEEPGRAM_API_KEY"),
			Model:  getEnv("DEEPGRAM_MODEL", "nova-2"),
		},
		OpenAI: OpenAIConfig{
			APIKey:   os.Getenv("OPENAI_API_KEY"),
			Model:    getEnv("OPENAI_MODEL", "gpt-4o"),
			TTSVoice: getEnv("OPENAI_TTS_VOICE", "alloy"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Azure: AzureConfig{
			SpeechKey: os.Getenv("AZURE_SPEECH_KEY"),
			Region:    getEnv("AZURE_SPEECH_REGION", "eastasia"),
			Voice:     getEnv("AZURE_VOICE", "zh-TW-HsiaoChenNeural"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  os.Getenv("ELEVENLABS_API_KEY"),
			VoiceID: getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
			Model:   getEnv("ELEVENLABS_MODEL", "eleven_turbo_v2_5"),
		},
		Polly: PollyConfig{
			Region:  getEnv("AWS_REGION", "us-east-1"),
			ZhVoice: getEnv("POLLY_ZH_VOICE", "Zhiyu"),
			EnVoice: getEnv("POLLY_EN_VOICE", "Joanna"),
		},
		Trace: TraceConfig{
			Exporter:     getEnv("OTEL_EXPORTER", "none"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
	}, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate checks that every provider selected is known and has its
// credentials. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch c.STTProvider {
	case ProviderDeepgram:
		errs = appendMissing(errs, "DEEPGRAM_API_KEY", c.Deepgram.APIKey)
	case ProviderElevenLabs:
		errs = appendMissing(errs, "ELEVENLABS_API_KEY", c.ElevenLabs.APIKey)
	default:
		errs = append(errs, fmt.Errorf("STT_PROVIDER %q is not supported", c.STTProvider))
	}

	switch c.TranslationProvider {
	case ProviderOpenAI:
		errs = appendMissing(errs, "OPENAI_API_KEY", c.OpenAI.APIKey)
	case ProviderGemini:
		errs = appendMissing(errs, "GEMINI_API_KEY", c.Gemini.APIKey)
	default:
		errs = append(errs, fmt.Errorf("TRANSLATION_PROVIDER %q is not supported", c.TranslationProvider))
	}

	for _, sel := range []struct{ name, value string }{
		{"EN_TO_ZH_TTS", c.EnToZhTTS},
		{"ZH_TO_EN_TTS", c.ZhToEnTTS},
	} {
		switch sel.value {
		case ProviderAzure:
			errs = appendMissing(errs, "AZURE_SPEECH_KEY", c.Azure.SpeechKey)
		case ProviderElevenLabs:
			errs = appendMissing(errs, "ELEVENLABS_API_KEY", c.ElevenLabs.APIKey)
		case ProviderOpenAI:
			errs = appendMissing(errs, "OPENAI_API_KEY", c.OpenAI.APIKey)
		case ProviderPolly:
			errs = appendMissing(errs, "AWS_REGION", c.Polly.Region)
		default:
			errs = append(errs, fmt.Errorf("%s %q is not supported", sel.name, sel.value))
		}
	}

	if c.NoPeerAudio != NoPeerAudioSelf && c.NoPeerAudio != NoPeerAudioDrop {
		errs = append(errs, fmt.Errorf("NO_PEER_AUDIO must be %q or %q", NoPeerAudioSelf, NoPeerAudioDrop))
	}
	if c.AudioFramesPerSecond <= 0 || c.AudioFrameBurst <= 0 {
		errs = append(errs, errors.New("AUDIO_FRAMES_PER_SECOND and AUDIO_FRAME_BURST must be positive"))
	}

	return dedupe(errs)
}

func appendMissing(errs []error, key, value string) []error {
	if strings.TrimSpace(value) == "" {
		return append(errs, fmt.Errorf("%s is required", key))
	}
	return errs
}

// dedupe joins errs, dropping repeats such as a key required by two selections.
func dedupe(errs []error) error {
	seen := make(map[string]bool, len(errs))
	out := errs[:0]
	for _, err := range errs {
		if seen[err.Error()] {
			continue
		}
		seen[err.Error()] = true
		out = append(out, err)
	}
	return errors.Join(out...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
