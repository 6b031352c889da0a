// Package asr provides a unified interface for streaming speech recognition.
// Each provider turns a continuous PCM stream for one language into a
// sequence of interim and final transcript events.
package asr

import (
	"context"
	"time"
)

// RecognitionResult represents the output of speech recognition.
type RecognitionResult struct {
	// Text is the recognized text, never empty
	Text string

	// IsFinal indicates if this is a final result (true) or partial/interim (false)
	IsFinal bool

	// Confidence score (0.0-1.0) if available, otherwise -1
	Confidence float32

	// Language used for recognition
	Language string

	// Duration of the audio segment that was recognized
	Duration time.Duration

	// Timestamp when the result was received
	Timestamp time.Time
}

// Event is one item of a recognition stream: either a result or a
// provider-side error. Errors do not end the stream.
type Event struct {
	Result *RecognitionResult
	Err    error
}

// AudioConfig specifies the audio format for recognition.
type AudioConfig struct {
	// SampleRate in Hz (e.g., 16000)
	SampleRate int

	// Channels (1 for mono)
	Channels int

	// Encoding format (e.g., "linear16")
	Encoding string
}

// RecognitionConfig contains settings for speech recognition.
type RecognitionConfig struct {
	// Language code (e.g., "en-US", "zh-TW")
	Language string

	// Model overrides the provider default
	Model string

	// EnablePartialResults requests interim results
	EnablePartialResults bool
}

// StreamingRecognizer handles continuous speech recognition from an audio stream.
type StreamingRecognizer interface {
	// SendAudio queues one frame. It is a no-op when the stream is not ready
	// or already closed.
	SendAudio(ctx context.Context, audioData []byte) error

	// Events returns the stream's results and errors. The channel is closed
	// by Close.
	Events() <-chan Event

	// Close stops recognition and releases resources. It may be called
	// more than once.
	Close() error
}

// Provider is the main interface for ASR systems.
type Provider interface {
	// Name returns the provider name (e.g., "deepgram", "elevenlabs")
	Name() string

	// StreamingRecognize opens a stream for one language.
	StreamingRecognize(ctx context.Context, audioConfig AudioConfig, config RecognitionConfig) (StreamingRecognizer, error)

	// SupportedLanguages returns a list of supported language codes.
	SupportedLanguages() []string

	// Close releases any resources held by the provider.
	Close() error
}

// Error types for ASR operations
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInvalidConfig
	ErrCodeInvalidAudio
	ErrCodeUnsupportedLanguage
	ErrCodeAuthenticationFailed
	ErrCodeQuotaExceeded
	ErrCodeNetworkError
	ErrCodeProviderError
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeInvalidConfig:
		return "invalid_config"
	case ErrCodeInvalidAudio:
		return "invalid_audio"
	case ErrCodeUnsupportedLanguage:
		return "unsupported_language"
	case ErrCodeAuthenticationFailed:
		return "authentication_failed"
	case ErrCodeQuotaExceeded:
		return "quota_exceeded"
	case ErrCodeNetworkError:
		return "network_error"
	case ErrCodeProviderError:
		return "provider_error"
	default:
		return "unknown"
	}
}
