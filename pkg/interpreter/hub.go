package interpreter

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/realtime-ai/counseling-interpreter/pkg/events"
	"github.com/realtime-ai/counseling-interpreter/pkg/session"
	"github.com/realtime-ai/counseling-interpreter/pkg/trace"
)

var errInvalidJoin = errors.New("invalid session join")

// connState is what the hub knows about one connection.
type connState struct {
	peer      session.Peer
	sessionID string
	role      events.Role
	language  events.Language
	muted     bool
	pipeline  *Pipeline
}

func (s *connState) inSession() bool {
	return s.sessionID != ""
}

// Hub owns the session registry and the active pipelines, and applies client
// events to them. Each connection must deliver its events sequentially;
// different connections may call the hub concurrently.
type Hub struct {
	registry   *session.Registry
	directions DirectionTable
	caps       Capabilities
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	conns map[string]*connState
}

// NewHub creates a hub with its own registry.
func NewHub(directions DirectionTable, caps Capabilities) *Hub {
	if caps.Logger == nil {
		caps.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   session.NewRegistry(),
		directions: directions,
		caps:       caps,
		logger:     caps.Logger.With(zap.String("component", "hub")),
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[string]*connState),
	}
}

// Registry exposes the session registry.
func (h *Hub) Registry() *session.Registry {
	return h.registry
}

// Connect registers a new connection and greets it.
func (h *Hub) Connect(peer session.Peer) {
	h.mu.Lock()
	h.conns[peer.ID()] = &connState{peer: peer}
	h.mu.Unlock()

	h.caps.Metrics.ConnectionOpened()
	h.logger.Info("client connected", zap.String("connection_id", peer.ID()))
	h.send(peer, events.NewConnectionEstablishedEvent(peer.ID()))
}

// HandleEvent applies one client event.
func (h *Hub) HandleEvent(peer session.Peer, event events.ClientEvent) {
	switch e := event.(type) {
	case *events.SessionJoinEvent:
		h.join(peer, e)
	case *events.SessionLeaveEvent:
		h.leave(peer)
	case *events.AudioStartEvent:
		h.startAudio(peer, e.Language)
	case *events.AudioChunkEvent:
		h.HandleAudio(peer, e.Audio)
	case *events.AudioStopEvent:
		h.stopAudio(peer)
	case *events.ControlMuteEvent:
		h.setMuted(peer, e.Muted())
	default:
		h.logger.Warn("unhandled client event",
			zap.String("connection_id", peer.ID()),
			zap.String("type", string(event.ClientEventType())))
	}
}

// HandleAudio forwards a frame to the connection's pipeline. A connection
// outside any session gets NOT_IN_SESSION; one without a pipeline is ignored.
func (h *Hub) HandleAudio(peer session.Peer, frame []byte) {
	h.mu.RLock()
	st, ok := h.conns[peer.ID()]
	var inSession bool
	var pipeline *Pipeline
	if ok {
		inSession, pipeline = st.inSession(), st.pipeline
	}
	h.mu.RUnlock()

	if !inSession {
		h.sendError(peer, events.ErrCodeNotInSession, "Must join a session before sending audio", "")
		return
	}
	if pipeline == nil {
		return
	}
	pipeline.PushAudio(frame)
}

// Disconnect runs the implicit leave and stop for a closed connection.
// Registry cleanup happens before the pipeline releases its providers.
func (h *Hub) Disconnect(peer session.Peer) {
	h.mu.Lock()
	st, ok := h.conns[peer.ID()]
	delete(h.conns, peer.ID())
	h.mu.Unlock()
	if !ok {
		return
	}

	if st.inSession() {
		h.release(peer, st.sessionID, st.role)
	}
	if st.pipeline != nil {
		st.pipeline.Stop()
	}

	h.caps.Metrics.ConnectionClosed()
	h.logger.Info("client disconnected",
		zap.String("connection_id", peer.ID()),
		zap.String("session_id", st.sessionID))
}

// Shutdown stops every pipeline. Connections are expected to be closed by
// the transport, which calls Disconnect for each.
func (h *Hub) Shutdown() {
	h.cancel()

	h.mu.Lock()
	var pipelines []*Pipeline
	for _, st := range h.conns {
		if st.pipeline != nil {
			pipelines = append(pipelines, st.pipeline)
			st.pipeline = nil
		}
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range pipelines {
		wg.Add(1)
		go func(p *Pipeline) {
			defer wg.Done()
			p.Stop()
		}(p)
	}
	wg.Wait()
	h.logger.Info("hub stopped", zap.Int("pipelines", len(pipelines)))
}

func (h *Hub) join(peer session.Peer, e *events.SessionJoinEvent) {
	_, span := trace.InstrumentSessionJoin(h.ctx, peer.ID(), e.SessionID, string(e.Role))
	defer span.End()

	if e.SessionID == "" || !e.Role.Valid() {
		trace.RecordError(span, errInvalidJoin)
		h.send(peer, events.NewSessionErrorEvent(events.ErrCodeInvalidJoin, "sessionId and a valid role are required"))
		return
	}

	h.mu.Lock()
	st := h.stateLocked(peer)
	prevSession, prevRole := st.sessionID, st.role
	var prevPipeline *Pipeline
	moving := st.inSession() && (prevSession != e.SessionID || prevRole != e.Role)
	if moving {
		prevPipeline = st.pipeline
		st.pipeline = nil
		st.language = ""
	}
	st.sessionID = e.SessionID
	st.role = e.Role
	st.muted = false
	h.mu.Unlock()

	if moving {
		h.release(peer, prevSession, prevRole)
		if prevPipeline != nil {
			prevPipeline.Stop()
		}
	}

	if displaced := h.registry.Register(e.SessionID, e.Role, peer); displaced != nil {
		h.evict(displaced, e.SessionID, e.Role)
		h.logger.Info("role taken over by new connection",
			zap.String("session_id", e.SessionID),
			zap.String("role", string(e.Role)),
			zap.String("previous_connection_id", displaced.ID()),
			zap.String("connection_id", peer.ID()))
	}

	participants := h.registry.ListParticipants(e.SessionID)
	startedAt, _ := h.registry.StartedAt(e.SessionID)
	h.send(peer, events.NewSessionJoinedEvent(e.SessionID, participants, startedAt))

	if other, ok := h.registry.LookupPeer(e.SessionID, e.Role); ok && other.ID() != peer.ID() {
		h.send(other, events.NewParticipantJoinedEvent(e.Role, peer.ID()))
	}

	h.caps.Metrics.SetActiveSessions(h.registry.SessionCount())
	h.logger.Info("participant joined session",
		zap.String("connection_id", peer.ID()),
		zap.String("session_id", e.SessionID),
		zap.String("role", string(e.Role)),
		zap.Int("participants", len(participants)))
}

func (h *Hub) leave(peer session.Peer) {
	h.mu.Lock()
	st, ok := h.conns[peer.ID()]
	if !ok || !st.inSession() {
		h.mu.Unlock()
		return
	}
	sessionID, role, pipeline := st.sessionID, st.role, st.pipeline
	st.sessionID, st.role, st.language, st.pipeline = "", "", "", nil
	h.mu.Unlock()

	h.release(peer, sessionID, role)
	if pipeline != nil {
		pipeline.Stop()
	}
	h.logger.Info("participant left session",
		zap.String("connection_id", peer.ID()),
		zap.String("session_id", sessionID),
		zap.String("role", string(role)))
}

// release drops peer's registry entry, if it still owns it, and tells the
// remaining participant.
func (h *Hub) release(peer session.Peer, sessionID string, role events.Role) {
	if !h.registry.Release(sessionID, role, peer) {
		return
	}
	if other, ok := h.registry.LookupPeer(sessionID, role); ok {
		h.send(other, events.NewParticipantLeftEvent(role, peer.ID()))
	}
	h.caps.Metrics.SetActiveSessions(h.registry.SessionCount())
}

// evict detaches a connection whose role was registered to another one. Its
// pipeline stops and it is told so; the socket stays open for a new join.
func (h *Hub) evict(peer session.Peer, sessionID string, role events.Role) {
	h.mu.Lock()
	st, ok := h.conns[peer.ID()]
	var p *Pipeline
	if ok && st.sessionID == sessionID && st.role == role {
		p = st.pipeline
		st.sessionID, st.role, st.language, st.pipeline = "", "", "", nil
		st.muted = false
	}
	h.mu.Unlock()

	if p != nil {
		p.Stop()
	}
	h.send(peer, events.NewSessionErrorEvent(events.ErrCodeRoleTaken,
		"Another connection joined this session with the same role"))
}

func (h *Hub) startAudio(peer session.Peer, language events.Language) {
	h.mu.Lock()
	st, ok := h.conns[peer.ID()]
	if !ok || !st.inSession() {
		h.mu.Unlock()
		h.sendError(peer, events.ErrCodeNotInSession, "Must join a session before starting audio", "")
		return
	}
	sessionID, role, old := st.sessionID, st.role, st.pipeline
	st.pipeline = nil
	h.mu.Unlock()

	if old != nil {
		old.Stop()
	}

	dir, err := h.directions.Lookup(language)
	if err != nil {
		h.sendError(peer, events.ErrCodePipelineStart, "Failed to start audio processing", err.Error())
		return
	}

	p := NewPipeline(PipelineConfig{
		SessionID: sessionID,
		Role:      role,
		Origin:    peer,
		Direction: dir,
		Registry:  h.registry,
	}, h.caps)

	if err := p.Start(h.ctx); err != nil {
		h.logger.Error("failed to start pipeline",
			zap.String("connection_id", peer.ID()),
			zap.String("session_id", sessionID),
			zap.Error(err))
		h.sendError(peer, events.ErrCodePipelineStart, "Failed to start audio processing", err.Error())
		return
	}

	h.mu.Lock()
	st, ok = h.conns[peer.ID()]
	installed := ok && st.sessionID == sessionID && st.role == role && st.pipeline == nil
	if installed {
		st.pipeline = p
		st.language = language
	}
	h.mu.Unlock()

	if !installed {
		// Connection left or disconnected while the stream was opening.
		p.Stop()
		return
	}
	h.send(peer, events.NewProcessingStatusEvent(events.StageSTT, true))
}

func (h *Hub) stopAudio(peer session.Peer) {
	h.mu.Lock()
	st, ok := h.conns[peer.ID()]
	var p *Pipeline
	if ok {
		p = st.pipeline
		st.pipeline = nil
	}
	h.mu.Unlock()

	if p == nil {
		return
	}
	p.Stop()
	h.send(peer, events.NewProcessingStatusEvent(events.StageSTT, false))
}

func (h *Hub) setMuted(peer session.Peer, muted bool) {
	h.mu.Lock()
	st := h.stateLocked(peer)
	st.muted = muted
	h.mu.Unlock()

	h.logger.Info("mute changed", zap.String("connection_id", peer.ID()), zap.Bool("muted", muted))
}

// Muted reports the connection's mute flag.
func (h *Hub) Muted(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st, ok := h.conns[connectionID]
	return ok && st.muted
}

// stateLocked returns the state for peer, creating it for a connection that
// skipped Connect.
func (h *Hub) stateLocked(peer session.Peer) *connState {
	st, ok := h.conns[peer.ID()]
	if !ok {
		st = &connState{peer: peer}
		h.conns[peer.ID()] = st
	}
	return st
}

func (h *Hub) send(peer session.Peer, event events.ServerEvent) {
	if err := peer.Send(event); err != nil {
		h.logger.Debug("send failed",
			zap.String("connection_id", peer.ID()),
			zap.String("event", string(event.ServerEventType())),
			zap.Error(err))
	}
}

func (h *Hub) sendError(peer session.Peer, code events.ErrorCode, message, details string) {
	h.caps.Metrics.RecordError(string(code))
	h.send(peer, events.NewConnectionErrorEvent(code, message, details))
}
