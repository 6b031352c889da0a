package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/realtime-ai/counseling-interpreter/pkg/events"
	"github.com/realtime-ai/counseling-interpreter/pkg/metrics"
	"github.com/realtime-ai/counseling-interpreter/pkg/session"
	"github.com/realtime-ai/counseling-interpreter/pkg/trace"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

var _ session.Peer = (*Client)(nil)

// Client is one accepted WebSocket connection. Outbound events are queued on
// a bounded channel drained by writePump; Send never blocks.
type Client struct {
	id      string
	conn    *websocket.Conn
	handler ConnectionHandler
	limiter *rate.Limiter
	metrics *metrics.Collector
	logger  *zap.Logger

	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn, handler ConnectionHandler, cfg *Config, collector *metrics.Collector, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:      id,
		conn:    conn,
		handler: handler,
		limiter: rate.NewLimiter(rate.Limit(cfg.AudioFramesPerSecond), cfg.AudioFrameBurst),
		metrics: collector,
		logger:  logger.With(zap.String("connection_id", id)),
		send:    make(chan []byte, cfg.SendQueueSize),
		closed:  make(chan struct{}),
	}
}

// ID returns the connection id announced in connection:established.
func (c *Client) ID() string {
	return c.id
}

// Send queues an event for delivery. A full queue drops the event.
func (c *Client) Send(event events.ServerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("send queue is full, dropping event",
			zap.String("type", string(event.ServerEventType())))
		c.metrics.RecordDroppedFrame("send_queue_full")
	}
	return nil
}

// Close tears down the socket. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}

// serve runs both pumps and returns once the connection is gone. The handler's
// Disconnect runs exactly once, after the read side has stopped.
func (c *Client) serve(ctx context.Context) {
	ctx, span := trace.InstrumentConnection(ctx, c.id, c.conn.RemoteAddr().String())
	defer span.End()

	c.handler.Connect(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	c.readPump(ctx)
	c.Close()
	<-done

	c.handler.Disconnect(c)
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
				trace.RecordError(oteltrace.SpanFromContext(ctx), err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleAudio(message)
		case websocket.TextMessage:
			event, err := events.ParseClientEvent(message)
			if err != nil {
				c.logger.Warn("failed to parse client event", zap.Error(err))
				continue
			}
			if chunk, ok := event.(*events.AudioChunkEvent); ok {
				c.handleAudio(chunk.Audio)
				continue
			}
			c.handler.HandleEvent(c, event)
		}
	}
}

func (c *Client) handleAudio(frame []byte) {
	if !c.limiter.Allow() {
		c.metrics.RecordDroppedFrame("rate_limited")
		return
	}
	c.handler.HandleAudio(c, frame)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("websocket write error", zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
