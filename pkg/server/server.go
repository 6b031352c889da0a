// Package server exposes the interpreter over HTTP: a WebSocket endpoint for
// the event channel plus health, info and metrics routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/realtime-ai/counseling-interpreter/pkg/metrics"
)

// Config holds the configuration for the HTTP and WebSocket server.
type Config struct {
	// Addr is the address to listen on (e.g., ":3001").
	Addr string

	// Env is reported by /health.
	Env string

	// AllowedOrigins lists the origins accepted on the WebSocket upgrade.
	// "*" accepts any origin.
	AllowedOrigins []string

	ReadBufferSize  int
	WriteBufferSize int

	// SendQueueSize bounds the outbound events buffered per connection.
	SendQueueSize int

	// AudioFramesPerSecond and AudioFrameBurst configure the per-connection
	// token bucket applied to inbound audio frames.
	AudioFramesPerSecond float64
	AudioFrameBurst      int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:                 ":3001",
		Env:                  "development",
		AllowedOrigins:       []string{"*"},
		ReadBufferSize:       4096,
		WriteBufferSize:      4096,
		SendQueueSize:        256,
		AudioFramesPerSecond: 100,
		AudioFrameBurst:      200,
	}
}

// Server accepts client connections and hands them to a ConnectionHandler.
type Server struct {
	config  *Config
	handler ConnectionHandler
	metrics *metrics.Collector
	logger  *zap.Logger

	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server

	mu      sync.Mutex
	clients map[*Client]struct{}
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server. collector may be nil.
func New(cfg *Config, handler ConnectionHandler, collector *metrics.Collector, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:  cfg,
		handler: handler,
		metrics: collector,
		logger:  logger.With(zap.String("component", "server")),
		clients: make(map[*Client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/api", s.handleInfo)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/ws", s.handleWebSocket)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every client and waits for
// their disconnect handling to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.config.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.config.AllowedOrigins, origin)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.ctx.Done():
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		return
	}

	client := newClient(conn, s.handler, s.config, s.metrics, s.logger)

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		client.Close()
		return
	}
	s.clients[client] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		client.serve(s.ctx)

		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"env":       s.config.Env,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{
		"name":        "Counseling Interpreter API",
		"version":     "1.0.0",
		"description": "Real-time interpretation between English and Traditional Chinese for counseling sessions",
	})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
