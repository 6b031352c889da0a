// ElevenLabs Scribe realtime recognition. Partial transcripts become interim
// results and VAD-committed transcripts become finals. Input must be 16 kHz
// mono PCM16, sent base64-encoded inside JSON frames.

package asr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// ElevenLabs Scribe V2 Realtime WebSocket endpoint
	elevenlabsRealtimeWSURL = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"

	// Default model
	elevenlabsDefaultModel = "scribe_v2_realtime"

	// Required sample rate (ElevenLabs only supports 16kHz)
	elevenlabsRequiredSampleRate = 16000

	// Connection configuration
	elevenlabsMaxRetryAttempts  = 3
	elevenlabsInitialRetryDelay = 1 * time.Second
	elevenlabsMaxRetryDelay     = 4 * time.Second
	elevenlabsConnectionTimeout = 10 * time.Second
)

// ElevenLabsConfig holds configuration for ElevenLabsProvider.
type ElevenLabsConfig struct {
	// APIKey is the ElevenLabs API key (required)
	APIKey string

	// Model to use (default: "scribe_v2_realtime")
	Model string

	// Endpoint overrides the realtime URL, mainly for tests
	Endpoint string

	// MaxRetryAttempts for the initial dial (default: 3)
	MaxRetryAttempts int

	Logger *zap.Logger
}

// ElevenLabsProvider implements the Provider interface using ElevenLabs Scribe V2 Realtime API.
type ElevenLabsProvider struct {
	apiKey      string
	model       string
	endpoint    string
	maxAttempts int
	logger      *zap.Logger
}

// NewElevenLabsProvider creates a new ElevenLabs Realtime ASR provider.
func NewElevenLabsProvider(config ElevenLabsConfig) (*ElevenLabsProvider, error) {
	if config.APIKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "ElevenLabs API key is required",
		}
	}

	p := &ElevenLabsProvider{
		apiKey:      config.APIKey,
		model:       config.Model,
		endpoint:    config.Endpoint,
		maxAttempts: config.MaxRetryAttempts,
		logger:      config.Logger,
	}
	if p.model == "" {
		p.model = elevenlabsDefaultModel
	}
	if p.endpoint == "" {
		p.endpoint = elevenlabsRealtimeWSURL
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = elevenlabsMaxRetryAttempts
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.logger = p.logger.With(zap.String("component", "asr.elevenlabs"))

	return p, nil
}

// Name returns the provider name.
func (p *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// StreamingRecognize creates a streaming recognizer for continuous audio input.
func (p *ElevenLabsProvider) StreamingRecognize(ctx context.Context, audioConfig AudioConfig, config RecognitionConfig) (StreamingRecognizer, error) {
	if audioConfig.SampleRate != elevenlabsRequiredSampleRate {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: fmt.Sprintf("ElevenLabs ASR requires 16kHz sample rate, got %dHz", audioConfig.SampleRate),
		}
	}

	model := config.Model
	if model == "" {
		model = p.model
	}

	params := url.Values{}
	params.Set("model_id", model)
	params.Set("commit_strategy", "vad")
	if config.Language != "" && config.Language != "auto" {
		params.Set("language_code", normalizeLanguageCode(config.Language))
	}

	logger := p.logger.With(zap.String("language", config.Language))

	header := http.Header{}
	header.Set("xi-api-key", p.apiKey)

	conn, err := dialWithRetry(ctx, dialConfig{
		url:          p.endpoint + "?" + params.Encode(),
		header:       header,
		timeout:      elevenlabsConnectionTimeout,
		maxAttempts:  p.maxAttempts,
		initialDelay: elevenlabsInitialRetryDelay,
		maxDelay:     elevenlabsMaxRetryDelay,
		logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	r := &elevenlabsStreamingRecognizer{
		conn:       conn,
		language:   config.Language,
		sampleRate: audioConfig.SampleRate,
		sendChan:   make(chan []byte, 100),
		sink:       newEventSink(logger),
		logger:     logger,
		ready:      make(chan struct{}),
		startTime:  time.Now(),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(2)
	go r.readLoop(conn)
	go r.writeLoop()

	// Audio sent before session_started is dropped by writeLoop, so wait
	// briefly for the session to be ready.
	select {
	case <-r.ready:
	case <-time.After(elevenlabsConnectionTimeout):
		logger.Warn("session_started not received, continuing")
	case <-ctx.Done():
		r.Close()
		return nil, ctx.Err()
	}

	return r, nil
}

// SupportedLanguages returns a list of supported language codes.
func (p *ElevenLabsProvider) SupportedLanguages() []string {
	return []string{
		"en", "zh", "es", "fr", "de", "it", "pt", "ru", "ja", "ko",
		"ar", "hi", "nl", "pl", "tr", "vi", "th", "id", "auto",
	}
}

// Close releases any resources held by the provider.
func (p *ElevenLabsProvider) Close() error {
	return nil
}

// elevenlabsStreamingRecognizer implements StreamingRecognizer for ElevenLabs.
type elevenlabsStreamingRecognizer struct {
	conn       *websocket.Conn
	language   string
	sampleRate int
	sendChan   chan []byte
	sink       *eventSink
	logger     *zap.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.Mutex
	closed       atomic.Bool
	sessionReady atomic.Bool
	ready        chan struct{}
	startTime    time.Time // start of the current segment, read by readLoop only
}

// ElevenLabs message types
type elevenlabsMessage struct {
	MessageType string           `json:"message_type"`
	Text        string           `json:"text,omitempty"`
	Confidence  *float32         `json:"confidence,omitempty"`
	Error       *elevenlabsError `json:"error,omitempty"`
}

type elevenlabsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type elevenlabsAudioChunk struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
	Commit      bool   `json:"commit"`
	SampleRate  int    `json:"sample_rate"`
}

// readLoop handles incoming WebSocket messages.
func (r *elevenlabsStreamingRecognizer) readLoop(conn *websocket.Conn) {
	defer r.wg.Done()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if r.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			r.logger.Warn("websocket read error", zap.Error(err))
			r.sink.fail(r.ctx, &Error{
				Code:    ErrCodeNetworkError,
				Message: "elevenlabs stream interrupted",
				Err:     err,
			})
			return
		}

		r.handleMessage(message)
	}
}

// writeLoop handles outgoing audio.
func (r *elevenlabsStreamingRecognizer) writeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return

		case audioData := <-r.sendChan:
			if !r.sessionReady.Load() {
				r.logger.Debug("session not ready, dropping audio")
				continue
			}
			r.sendAudioChunk(audioData)
		}
	}
}

// sendAudioChunk sends an audio chunk to the WebSocket.
func (r *elevenlabsStreamingRecognizer) sendAudioChunk(audioData []byte) {
	chunk := elevenlabsAudioChunk{
		MessageType: "input_audio_chunk",
		AudioBase64: base64.StdEncoding.EncodeToString(audioData),
		SampleRate:  r.sampleRate,
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		r.logger.Warn("failed to marshal audio chunk", zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			r.logger.Warn("failed to send audio", zap.Error(err))
		}
	}
}

// handleMessage processes incoming WebSocket messages.
func (r *elevenlabsStreamingRecognizer) handleMessage(data []byte) {
	var msg elevenlabsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Warn("failed to parse message", zap.Error(err))
		return
	}

	switch msg.MessageType {
	case "session_started":
		if !r.sessionReady.Swap(true) {
			close(r.ready)
		}
		r.startTime = time.Now()

	case "partial_transcript":
		confidence := float32(0.8)
		if msg.Confidence != nil {
			confidence = *msg.Confidence
		}
		r.sink.result(r.ctx, &RecognitionResult{
			Text:       strings.TrimSpace(msg.Text),
			IsFinal:    false,
			Confidence: confidence,
			Language:   r.language,
			Duration:   time.Since(r.startTime),
			Timestamp:  time.Now(),
		})

	case "committed_transcript", "committed_transcript_with_timestamps":
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return
		}
		confidence := float32(0.95)
		if msg.Confidence != nil {
			confidence = *msg.Confidence
		}
		r.sink.result(r.ctx, &RecognitionResult{
			Text:       text,
			IsFinal:    true,
			Confidence: confidence,
			Language:   r.language,
			Duration:   time.Since(r.startTime),
			Timestamp:  time.Now(),
		})
		r.startTime = time.Now()

	case "error", "auth_error", "quota_exceeded":
		code, message := msg.MessageType, ""
		if msg.Error != nil {
			code, message = msg.Error.Code, msg.Error.Message
		}
		r.logger.Warn("provider error", zap.String("code", code), zap.String("message", message))
		r.sink.fail(r.ctx, &Error{
			Code:    ErrCodeProviderError,
			Message: fmt.Sprintf("elevenlabs error %s: %s", code, message),
		})

	default:
		r.logger.Debug("unknown message type", zap.String("type", msg.MessageType))
	}
}

// SendAudio queues audio. It is a no-op once the recognizer is closed.
func (r *elevenlabsStreamingRecognizer) SendAudio(ctx context.Context, audioData []byte) error {
	if r.closed.Load() || len(audioData) == 0 {
		return nil
	}

	select {
	case r.sendChan <- audioData:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return nil
	}
}

// Events returns the recognition event channel.
func (r *elevenlabsStreamingRecognizer) Events() <-chan Event {
	return r.sink.ch
}

// Close stops recognition and releases resources.
func (r *elevenlabsStreamingRecognizer) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	r.cancel()

	r.mu.Lock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
	close(r.sink.ch)

	r.logger.Info("recognizer closed")
	return nil
}

// normalizeLanguageCode converts language code to ISO 639-1 format.
func normalizeLanguageCode(language string) string {
	if len(language) >= 2 && (len(language) == 2 || language[2] == '-' || language[2] == '_') {
		return strings.ToLower(language[:2])
	}
	return language
}

var _ Provider = (*ElevenLabsProvider)(nil)
