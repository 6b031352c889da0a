package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/realtime-ai/counseling-interpreter/pkg/asr"
	"github.com/realtime-ai/counseling-interpreter/pkg/config"
	"github.com/realtime-ai/counseling-interpreter/pkg/translate"
	"github.com/realtime-ai/counseling-interpreter/pkg/tts"
)

const azureEnglishVoice = "en-US-JennyNeural"

// providers is the set of vendor adapters selected by configuration.
type providers struct {
	Recognizer asr.Provider
	Translator translate.Translator
	EnToZh     tts.Synthesizer
	ZhToEn     tts.Synthesizer
}

func (p *providers) Close() {
	if p.Recognizer != nil {
		_ = p.Recognizer.Close()
	}
}

func buildProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*providers, error) {
	recognizer, err := buildRecognizer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("speech recognition: %w", err)
	}
	translator, err := buildTranslator(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("translation: %w", err)
	}
	enToZh, err := buildVoice(cfg.EnToZhTTS, cfg, "zh-TW")
	if err != nil {
		return nil, fmt.Errorf("EN_TO_ZH_TTS: %w", err)
	}
	zhToEn, err := buildVoice(cfg.ZhToEnTTS, cfg, "en-US")
	if err != nil {
		return nil, fmt.Errorf("ZH_TO_EN_TTS: %w", err)
	}

	return &providers{
		Recognizer: recognizer,
		Translator: translator,
		EnToZh:     enToZh,
		ZhToEn:     zhToEn,
	}, nil
}

func buildRecognizer(cfg *config.Config, logger *zap.Logger) (asr.Provider, error) {
	switch cfg.STTProvider {
	case config.ProviderDeepgram:
		return asr.NewDeepgramProvider(asr.DeepgramConfig{
			APIKey: cfg.Deepgram.APIKey,
			Model:  cfg.Deepgram.Model,
			Logger: logger,
		})
	case config.ProviderElevenLabs:
		return asr.NewElevenLabsProvider(asr.ElevenLabsConfig{
			APIKey: cfg.ElevenLabs.APIKey,
			Logger: logger,
		})
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.STTProvider)
	}
}

func buildTranslator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (translate.Translator, error) {
	switch cfg.TranslationProvider {
	case config.ProviderOpenAI:
		return translate.NewOpenAITranslator(translate.OpenAIConfig{
			APIKey: cfg.OpenAI.APIKey,
			Model:  cfg.OpenAI.Model,
			Logger: logger,
		})
	case config.ProviderGemini:
		return translate.NewGeminiTranslator(ctx, translate.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
			Logger: logger,
		})
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.TranslationProvider)
	}
}

// buildVoice binds the named provider to a voice speaking language.
func buildVoice(name string, cfg *config.Config, language string) (tts.Synthesizer, error) {
	switch name {
	case config.ProviderAzure:
		voice := cfg.Azure.Voice
		if language == "en-US" {
			voice = azureEnglishVoice
		}
		p, err := tts.NewAzureProvider(tts.AzureConfig{
			SubscriptionKey: cfg.Azure.SpeechKey,
			Region:          cfg.Azure.Region,
			Voice:           voice,
		})
		if err != nil {
			return nil, err
		}
		return tts.NewVoice(p, voice, language), nil

	case config.ProviderElevenLabs:
		p, err := tts.NewElevenLabsHTTPTTSProvider(tts.ElevenLabsHTTPTTSConfig{
			APIKey:  cfg.ElevenLabs.APIKey,
			VoiceID: cfg.ElevenLabs.VoiceID,
			Model:   cfg.ElevenLabs.Model,
		})
		if err != nil {
			return nil, err
		}
		return tts.NewVoice(p, cfg.ElevenLabs.VoiceID, language), nil

	case config.ProviderOpenAI:
		p, err := tts.NewOpenAITTSProvider(tts.OpenAITTSConfig{
			APIKey: cfg.OpenAI.APIKey,
			Voice:  cfg.OpenAI.TTSVoice,
		})
		if err != nil {
			return nil, err
		}
		return tts.NewVoice(p, cfg.OpenAI.TTSVoice, language), nil

	case config.ProviderPolly:
		voice := cfg.Polly.EnVoice
		if language == "zh-TW" {
			voice = cfg.Polly.ZhVoice
		}
		p := tts.NewPollyProvider(tts.PollyConfig{
			Region: cfg.Polly.Region,
			Voice:  voice,
		})
		return tts.NewVoice(p, voice, language), nil

	default:
		return nil, fmt.Errorf("unsupported provider %q", name)
	}
}
