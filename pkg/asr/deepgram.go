// Deepgram Live Streaming ASR Provider
//
// Streams raw linear PCM over a WebSocket to Deepgram's /v1/listen endpoint
// and surfaces interim and final transcripts.
//
// Features:
// - Binary audio frames, no base64 framing
// - Interim results, smart formatting and punctuation
// - KeepAlive messages while the speaker is silent
// - CloseStream on shutdown
//
// Reference: https://developers.deepgram.com/docs/live-streaming-audio

package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	deepgramListenURL      = "wss://api.deepgram.com/v1/listen"
	deepgramDefaultModel   = "nova-2"
	deepgramUtteranceEndMs = 1000
	deepgramEndpointingMs  = 300
	deepgramKeepAlive      = 8 * time.Second
	deepgramConnectTimeout = 10 * time.Second
	deepgramMaxRetries     = 3
	deepgramInitialRetry   = 500 * time.Millisecond
	deepgramMaxRetryDelay  = 4 * time.Second
	deepgramWriteTimeout   = 5 * time.Second
	deepgramSendBufferSize = 100
)

// DeepgramConfig holds configuration for DeepgramProvider.
type DeepgramConfig struct {
	// APIKey is the Deepgram API key (required)
	APIKey string

	// Model to use (default: "nova-2")
	Model string

	// Endpoint overrides the listen URL, mainly for tests
	Endpoint string

	// KeepAliveInterval between KeepAlive messages (default: 8s)
	KeepAliveInterval time.Duration

	// MaxRetryAttempts for the initial dial (default: 3)
	MaxRetryAttempts int

	Logger *zap.Logger
}

// DeepgramProvider implements Provider using Deepgram live streaming.
type DeepgramProvider struct {
	apiKey      string
	model       string
	endpoint    string
	keepAlive   time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// NewDeepgramProvider creates a new Deepgram live ASR provider.
func NewDeepgramProvider(config DeepgramConfig) (*DeepgramProvider, error) {
	if config.APIKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "Deepgram API key is required",
		}
	}

	p := &DeepgramProvider{
		apiKey:      config.APIKey,
		model:       config.Model,
		endpoint:    config.Endpoint,
		keepAlive:   config.KeepAliveInterval,
		maxAttempts: config.MaxRetryAttempts,
		logger:      config.Logger,
	}
	if p.model == "" {
		p.model = deepgramDefaultModel
	}
	if p.endpoint == "" {
		p.endpoint = deepgramListenURL
	}
	if p.keepAlive <= 0 {
		p.keepAlive = deepgramKeepAlive
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = deepgramMaxRetries
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.logger = p.logger.With(zap.String("component", "asr.deepgram"))

	return p, nil
}

// Name returns the provider name.
func (p *DeepgramProvider) Name() string {
	return "deepgram"
}

// SupportedLanguages returns the language codes the interpreter uses.
func (p *DeepgramProvider) SupportedLanguages() []string {
	return []string{"en", "en-US", "en-GB", "zh", "zh-TW", "zh-CN"}
}

// Close releases any resources held by the provider.
func (p *DeepgramProvider) Close() error {
	return nil
}

// listenURL builds the query string for one stream.
func (p *DeepgramProvider) listenURL(audioConfig AudioConfig, config RecognitionConfig) string {
	model := config.Model
	if model == "" {
		model = p.model
	}

	params := url.Values{}
	params.Set("model", model)
	params.Set("language", config.Language)
	params.Set("smart_format", "true")
	params.Set("punctuate", "true")
	params.Set("interim_results", strconv.FormatBool(config.EnablePartialResults))
	params.Set("utterance_end_ms", strconv.Itoa(deepgramUtteranceEndMs))
	params.Set("vad_events", "true")
	params.Set("endpointing", strconv.Itoa(deepgramEndpointingMs))
	params.Set("encoding", audioConfig.Encoding)
	params.Set("sample_rate", strconv.Itoa(audioConfig.SampleRate))
	params.Set("channels", strconv.Itoa(audioConfig.Channels))

	return p.endpoint + "?" + params.Encode()
}

// StreamingRecognize opens a live transcription socket.
func (p *DeepgramProvider) StreamingRecognize(ctx context.Context, audioConfig AudioConfig, config RecognitionConfig) (StreamingRecognizer, error) {
	if config.Language == "" {
		return nil, &Error{
			Code:    ErrCodeUnsupportedLanguage,
			Message: "language is required",
		}
	}
	if audioConfig.SampleRate <= 0 || audioConfig.Channels <= 0 || audioConfig.Encoding == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: fmt.Sprintf("invalid audio config %+v", audioConfig),
		}
	}

	logger := p.logger.With(zap.String("language", config.Language))

	header := http.Header{}
	header.Set("Authorization", "Token "+p.apiKey)

	conn, err := dialWithRetry(ctx, dialConfig{
		url:          p.listenURL(audioConfig, config),
		header:       header,
		timeout:      deepgramConnectTimeout,
		maxAttempts:  p.maxAttempts,
		initialDelay: deepgramInitialRetry,
		maxDelay:     deepgramMaxRetryDelay,
		logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	r := &deepgramStreamingRecognizer{
		conn:      conn,
		language:  config.Language,
		keepAlive: p.keepAlive,
		sendChan:  make(chan []byte, deepgramSendBufferSize),
		sink:      newEventSink(logger),
		logger:    logger,
		startTime: time.Now(),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(2)
	go r.readLoop(conn)
	go r.writeLoop()

	logger.Info("stream opened")
	return r, nil
}

// deepgramStreamingRecognizer implements StreamingRecognizer for Deepgram.
type deepgramStreamingRecognizer struct {
	conn      *websocket.Conn
	language  string
	keepAlive time.Duration
	sendChan  chan []byte
	sink      *eventSink
	logger    *zap.Logger
	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex // guards writes on conn
	closed atomic.Bool
}

type deepgramMessage struct {
	Type        string          `json:"type"`
	IsFinal     bool            `json:"is_final"`
	SpeechFinal bool            `json:"speech_final"`
	Start       float64         `json:"start"`
	Duration    float64         `json:"duration"`
	Channel     deepgramChannel `json:"channel"`

	// Error frames
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
	ErrCode     string `json:"err_code,omitempty"`
	ErrMsg      string `json:"err_msg,omitempty"`
}

type deepgramChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives"`
}

type deepgramAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float32 `json:"confidence"`
}

type deepgramControl struct {
	Type string `json:"type"`
}

// readLoop handles incoming WebSocket messages.
func (r *deepgramStreamingRecognizer) readLoop(conn *websocket.Conn) {
	defer r.wg.Done()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if r.closed.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				r.logger.Info("stream closed by provider")
				return
			}
			r.logger.Warn("websocket read error", zap.Error(err))
			r.sink.fail(r.ctx, &Error{
				Code:    ErrCodeNetworkError,
				Message: "deepgram stream interrupted",
				Err:     err,
			})
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		r.handleMessage(data)
	}
}

func (r *deepgramStreamingRecognizer) handleMessage(data []byte) {
	var msg deepgramMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Warn("failed to parse message", zap.Error(err))
		return
	}

	switch msg.Type {
	case "Results":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		alt := msg.Channel.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			return
		}
		r.sink.result(r.ctx, &RecognitionResult{
			Text:       text,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
			Language:   r.language,
			Duration:   time.Duration(msg.Duration * float64(time.Second)),
			Timestamp:  time.Now(),
		})

	case "Error":
		detail := firstNonEmpty(msg.Description, msg.Message, msg.ErrMsg)
		r.logger.Warn("provider error", zap.String("code", msg.ErrCode), zap.String("detail", detail))
		r.sink.fail(r.ctx, &Error{
			Code:    ErrCodeProviderError,
			Message: fmt.Sprintf("deepgram error %s: %s", msg.ErrCode, detail),
		})

	case "Metadata", "SpeechStarted", "UtteranceEnd":
		r.logger.Debug("control message", zap.String("type", msg.Type))

	default:
		r.logger.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

// writeLoop forwards queued audio and keeps the socket alive during silence.
func (r *deepgramStreamingRecognizer) writeLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case frame := <-r.sendChan:
			if err := r.write(websocket.BinaryMessage, frame); err != nil {
				r.logger.Warn("failed to send audio", zap.Error(err))
			}

		case <-ticker.C:
			if err := r.writeControl("KeepAlive"); err != nil {
				r.logger.Debug("failed to send keepalive", zap.Error(err))
			}
		}
	}
}

func (r *deepgramStreamingRecognizer) write(messageType int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	r.conn.SetWriteDeadline(time.Now().Add(deepgramWriteTimeout))
	return r.conn.WriteMessage(messageType, data)
}

func (r *deepgramStreamingRecognizer) writeControl(controlType string) error {
	data, err := json.Marshal(deepgramControl{Type: controlType})
	if err != nil {
		return err
	}
	return r.write(websocket.TextMessage, data)
}

// SendAudio queues a PCM frame. Frames sent after Close are ignored.
func (r *deepgramStreamingRecognizer) SendAudio(ctx context.Context, audioData []byte) error {
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
func (r *deepgramStreamingRecognizer) Events() <-chan Event {
	return r.sink.ch
}

// Close sends CloseStream, tears down the socket and closes Events.
func (r *deepgramStreamingRecognizer) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	if err := r.writeControl("CloseStream"); err != nil {
		r.logger.Debug("failed to send CloseStream", zap.Error(err))
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

	r.logger.Info("stream closed", zap.Duration("lifetime", time.Since(r.startTime)))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ Provider = (*DeepgramProvider)(nil)
