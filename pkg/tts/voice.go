package tts

import (
	"context"
	"errors"
)

// Synthesizer renders text in a preselected voice. The returned bytes are
// opaque encoded audio.
type Synthesizer interface {
	Name() string
	Provider() string
	VoiceID() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Voice binds a provider to one voice and language.
type Voice struct {
	provider TTSProvider
	voice    string
	language string
}

// NewVoice binds provider to voice. An empty voice selects the provider default.
func NewVoice(provider TTSProvider, voice, language string) *Voice {
	if voice == "" {
		voice = provider.GetDefaultVoice()
	}
	return &Voice{provider: provider, voice: voice, language: language}
}

// Name returns "<provider>:<voice>".
func (v *Voice) Name() string {
	return v.provider.Name() + ":" + v.voice
}

// Provider returns the name of the backing provider.
func (v *Voice) Provider() string {
	return v.provider.Name()
}

// VoiceID returns the provider-specific voice identifier.
func (v *Voice) VoiceID() string {
	return v.voice
}

// Synthesize returns the encoded audio for text. Failures are *SynthesisError.
func (v *Voice) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := v.provider.Synthesize(ctx, &SynthesizeRequest{
		Text:     text,
		Voice:    v.voice,
		Language: v.language,
	})
	if err != nil {
		var synthErr *SynthesisError
		if errors.As(err, &synthErr) {
			return nil, err
		}
		return nil, &SynthesisError{Provider: v.provider.Name(), Err: err}
	}
	if resp == nil || len(resp.AudioData) == 0 {
		return nil, &SynthesisError{Provider: v.provider.Name(), Err: errors.New("empty audio")}
	}
	return resp.AudioData, nil
}

var _ Synthesizer = (*Voice)(nil)
