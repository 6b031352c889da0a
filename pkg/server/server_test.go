package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/realtime-ai/counseling-interpreter/pkg/events"
	"github.com/realtime-ai/counseling-interpreter/pkg/interpreter"
	"github.com/realtime-ai/counseling-interpreter/pkg/metrics"
	"github.com/realtime-ai/counseling-interpreter/pkg/session"
)

type recordingHandler struct {
	mu           sync.Mutex
	received     []events.ClientEvent
	frames       [][]byte
	disconnected []string
}

func (h *recordingHandler) Connect(peer session.Peer) {
	_ = peer.Send(events.NewConnectionEstablishedEvent(peer.ID()))
}

func (h *recordingHandler) HandleEvent(_ session.Peer, event events.ClientEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, event)
}

func (h *recordingHandler) HandleAudio(_ session.Peer, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, frame)
}

func (h *recordingHandler) Disconnect(peer session.Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, peer.ID())
}

func (h *recordingHandler) snapshot() (received []events.ClientEvent, frames [][]byte, disconnected []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.ClientEvent(nil), h.received...),
		append([][]byte(nil), h.frames...),
		append([]string(nil), h.disconnected...)
}

func newTestServer(t *testing.T, cfg *Config, handler ConnectionHandler, collector *metrics.Collector) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(cfg, handler, collector, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// readUntil skips events until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ events.ServerEventType) map[string]any {
	t.Helper()
	for {
		ev := readEvent(t, conn)
		if ev["type"] == string(typ) {
			return ev
		}
	}
}

func TestServer_Health(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Env = "test"
	_, ts := newTestServer(t, cfg, &recordingHandler{}, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["env"])
	_, err = time.Parse(time.RFC3339, body["timestamp"])
	assert.NoError(t, err)
}

func TestServer_Info(t *testing.T) {
	_, ts := newTestServer(t, nil, &recordingHandler{}, nil)

	resp, err := http.Get(ts.URL + "/api")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Counseling Interpreter API", body["name"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.NotEmpty(t, body["description"])
}

func TestServer_Metrics(t *testing.T) {
	collector := metrics.NewCollector(prometheus.NewRegistry(), nil)
	collector.RecordUtterance("en-to-zh")
	_, ts := newTestServer(t, nil, &recordingHandler{}, collector)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `interpreter_utterances_total{direction="en-to-zh"} 1`)
}

func TestServer_MetricsWithoutCollector(t *testing.T) {
	_, ts := newTestServer(t, nil, &recordingHandler{}, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_DispatchesTextAndBinary(t *testing.T) {
	h := &recordingHandler{}
	_, ts := newTestServer(t, nil, h, nil)
	conn := dial(t, ts, nil)

	established := readEvent(t, conn)
	assert.Equal(t, "connection:established", established["type"])
	assert.NotEmpty(t, established["connectionId"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"session:join","sessionId":"s1","role":"student"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"audio:chunk","audio":"AAABAA=="}`)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 0, 2, 0}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"control:mute"}`)))

	require.Eventually(t, func() bool {
		received, frames, _ := h.snapshot()
		return len(received) == 2 && len(frames) == 2
	}, 2*time.Second, 10*time.Millisecond)

	received, frames, _ := h.snapshot()
	join, ok := received[0].(*events.SessionJoinEvent)
	require.True(t, ok)
	assert.Equal(t, "s1", join.SessionID)
	assert.Equal(t, events.RoleStudent, join.Role)

	mute, ok := received[1].(*events.ControlMuteEvent)
	require.True(t, ok)
	assert.True(t, mute.Muted())

	assert.Equal(t, []byte{0, 0, 1, 0}, frames[0])
	assert.Equal(t, []byte{1, 0, 2, 0}, frames[1])
}

func TestServer_DisconnectOnClientClose(t *testing.T) {
	h := &recordingHandler{}
	_, ts := newTestServer(t, nil, h, nil)
	conn := dial(t, ts, nil)
	id := readEvent(t, conn)["connectionId"]

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool {
		_, _, disconnected := h.snapshot()
		return len(disconnected) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, _, disconnected := h.snapshot()
	assert.Equal(t, id, disconnected[0])
}

func TestServer_RateLimitsAudio(t *testing.T) {
	collector := metrics.NewCollector(prometheus.NewRegistry(), nil)
	cfg := DefaultConfig()
	cfg.AudioFramesPerSecond = 0.001
	cfg.AudioFrameBurst = 2
	h := &recordingHandler{}
	_, ts := newTestServer(t, cfg, h, collector)
	conn := dial(t, ts, nil)
	readEvent(t, conn)

	for i := 0; i < 5; i++ {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0, 0}))
	}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"audio:stop"}`)))

	require.Eventually(t, func() bool {
		received, _, _ := h.snapshot()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, frames, _ := h.snapshot()
	assert.Len(t, frames, 2)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `interpreter_dropped_frames_total{reason="rate_limited"} 3`)
}

func TestServer_RejectsForeignOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"http://localhost:5173"}
	_, ts := newTestServer(t, cfg, &recordingHandler{}, nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, ts, http.Header{"Origin": {"http://localhost:5173"}})
	assert.Equal(t, "connection:established", readEvent(t, conn)["type"])
}

func TestServer_ShutdownClosesClients(t *testing.T) {
	h := &recordingHandler{}
	srv, ts := newTestServer(t, nil, h, nil)
	conn := dial(t, ts, nil)
	readEvent(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	_, _, disconnected := h.snapshot()
	assert.Len(t, disconnected, 1)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestServer_HubSessionFlow(t *testing.T) {
	hub := interpreter.NewHub(interpreter.DirectionTable{}, interpreter.Capabilities{})
	t.Cleanup(hub.Shutdown)
	_, ts := newTestServer(t, nil, hub, nil)

	student := dial(t, ts, nil)
	studentID := readEvent(t, student)["connectionId"]
	counselor := dial(t, ts, nil)
	counselorID := readEvent(t, counselor)["connectionId"]

	require.NoError(t, student.WriteJSON(map[string]string{"type": "session:join", "sessionId": "room-1", "role": "student"}))
	joined := readUntil(t, student, events.ServerEventTypeSessionJoined)
	assert.Equal(t, "room-1", joined["sessionId"])

	require.NoError(t, counselor.WriteJSON(map[string]string{"type": "session:join", "sessionId": "room-1", "role": "counselor"}))
	joined = readUntil(t, counselor, events.ServerEventTypeSessionJoined)
	participants, ok := joined["participants"].([]any)
	require.True(t, ok)
	require.Len(t, participants, 2)
	assert.Equal(t, "student", participants[0].(map[string]any)["role"])
	assert.Equal(t, studentID, participants[0].(map[string]any)["connectionId"])

	notice := readUntil(t, student, events.ServerEventTypeSessionParticipantJoined)
	assert.Equal(t, "counselor", notice["role"])
	assert.Equal(t, counselorID, notice["connectionId"])

	require.NoError(t, student.WriteJSON(map[string]string{"type": "audio:start", "language": "fr"}))
	failure := readUntil(t, student, events.ServerEventTypeConnectionError)
	assert.Equal(t, string(events.ErrCodePipelineStart), failure["code"])

	require.NoError(t, counselor.Close())
	left := readUntil(t, student, events.ServerEventTypeSessionParticipantLeft)
	assert.Equal(t, "counselor", left["role"])
}
