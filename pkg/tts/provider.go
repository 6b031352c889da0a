// Package tts renders translated text into encoded audio. Each translation
// direction is bound to one Voice: a provider plus a fixed voice and language.
package tts

import (
	"context"
	"fmt"
)

// AudioFormat describes the encoded audio a provider returns.
type AudioFormat struct {
	SampleRate int    // Sample rate in Hz (e.g., 16000, 44100)
	Channels   int    // Number of audio channels
	MediaType  string // MIME type (e.g., "audio/mpeg")
	Encoding   string // Codec label (e.g., "mp3")
}

// SynthesizeRequest represents a request to synthesize speech
type SynthesizeRequest struct {
	Text     string                 // Text to synthesize
	Voice    string                 // Voice ID or name
	Language string                 // Language code (e.g., "en-US", "zh-TW")
	Options  map[string]interface{} // Additional provider-specific options
}

// SynthesizeResponse represents the response from speech synthesis
type SynthesizeResponse struct {
	AudioData   []byte      // Encoded audio data
	AudioFormat AudioFormat // Format of the audio data
}

// TTSProvider defines the interface that all TTS services must implement
type TTSProvider interface {
	// Name returns the name of the TTS provider (e.g., "azure", "elevenlabs")
	Name() string

	// Synthesize converts text to speech
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)

	// GetSupportedVoices returns a list of known voices for this provider
	GetSupportedVoices() []string

	// GetDefaultVoice returns the default voice for this provider
	GetDefaultVoice() string

	// ValidateConfig returns an error if credentials or required settings are missing
	ValidateConfig() error
}

// StreamingTTSProvider extends TTSProvider with streaming capabilities
type StreamingTTSProvider interface {
	TTSProvider

	// StreamSynthesize streams audio data as it's generated
	StreamSynthesize(ctx context.Context, req *SynthesizeRequest) (<-chan []byte, <-chan error)
}

// SynthesisError reports a failed synthesis.
type SynthesisError struct {
	Provider   string
	StatusCode int // HTTP status when the provider answered, otherwise 0
	Err        error
}

func (e *SynthesisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s synthesis failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s synthesis failed: %v", e.Provider, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}
