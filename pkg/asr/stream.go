package asr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const eventBufferSize = 32

// eventSink delivers recognition events. Interim results are dropped when
// the consumer lags; finals and errors wait until the stream is cancelled.
type eventSink struct {
	ch     chan Event
	logger *zap.Logger
}

func newEventSink(logger *zap.Logger) *eventSink {
	return &eventSink{
		ch:     make(chan Event, eventBufferSize),
		logger: logger,
	}
}

func (s *eventSink) result(ctx context.Context, r *RecognitionResult) {
	if r.Text == "" {
		return
	}
	if !r.IsFinal {
		select {
		case s.ch <- Event{Result: r}:
		default:
			s.logger.Debug("event buffer full, dropping interim result")
		}
		return
	}
	select {
	case s.ch <- Event{Result: r}:
	case <-ctx.Done():
	}
}

func (s *eventSink) fail(ctx context.Context, err error) {
	select {
	case s.ch <- Event{Err: err}:
	case <-ctx.Done():
	}
}

type dialConfig struct {
	url          string
	header       http.Header
	timeout      time.Duration
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	logger       *zap.Logger
}

// dialWithRetry opens a provider websocket, retrying transient failures
// with exponential backoff. Authentication failures are not retried.
func dialWithRetry(ctx context.Context, cfg dialConfig) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.timeout,
	}

	attempts := cfg.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := cfg.initialDelay

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		conn, resp, err := dialer.DialContext(ctx, cfg.url, cfg.header)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &Error{
				Code:    ErrCodeAuthenticationFailed,
				Message: fmt.Sprintf("handshake rejected with status %d", resp.StatusCode),
				Err:     err,
			}
		}
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return nil, &Error{
				Code:    ErrCodeQuotaExceeded,
				Message: "handshake rejected with status 429",
				Err:     err,
			}
		}

		cfg.logger.Warn("connection attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Error(err))

		if attempt < attempts-1 {
			select {
			case <-time.After(delay):
				delay *= 2
				if delay > cfg.maxDelay {
					delay = cfg.maxDelay
				}
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if errors.Is(lastErr, context.Canceled) {
		return nil, lastErr
	}
	return nil, &Error{
		Code:    ErrCodeNetworkError,
		Message: fmt.Sprintf("failed to connect after %d attempts", attempts),
		Err:     lastErr,
	}
}
