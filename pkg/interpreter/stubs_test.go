package interpreter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/counseling-interpreter/pkg/asr"
	"github.com/realtime-ai/counseling-interpreter/pkg/events"
	"github.com/realtime-ai/counseling-interpreter/pkg/translate"
)

// stubStream is a recognition stream driven by the test.
type stubStream struct {
	events    chan asr.Event
	mu        sync.Mutex
	frames    [][]byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newStubStream() *stubStream {
	return &stubStream{
		events: make(chan asr.Event, 16),
		closed: make(chan struct{}),
	}
}

func (s *stubStream) SendAudio(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *stubStream) Events() <-chan asr.Event { return s.events }

func (s *stubStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.closed)
		close(s.events)
		s.mu.Unlock()
	})
	return nil
}

// emit pushes an event unless the stream was closed.
func (s *stubStream) emit(ev asr.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
	default:
		s.events <- ev
	}
}

func (s *stubStream) interim(text string) {
	s.emit(asr.Event{Result: &asr.RecognitionResult{Text: text}})
}

func (s *stubStream) final(text string) {
	s.emit(asr.Event{Result: &asr.RecognitionResult{Text: text, IsFinal: true}})
}

func (s *stubStream) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// stubRecognizer hands out stubStreams.
type stubRecognizer struct {
	mu      sync.Mutex
	err     error
	streams []*stubStream
	configs []asr.RecognitionConfig
}

func (r *stubRecognizer) Name() string                 { return "stub" }
func (r *stubRecognizer) SupportedLanguages() []string { return []string{"en-US", "zh-TW"} }
func (r *stubRecognizer) Close() error                 { return nil }

func (r *stubRecognizer) StreamingRecognize(_ context.Context, _ asr.AudioConfig, cfg asr.RecognitionConfig) (asr.StreamingRecognizer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s := newStubStream()
	r.streams = append(r.streams, s)
	r.configs = append(r.configs, cfg)
	return s, nil
}

func (r *stubRecognizer) opened() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

func (r *stubRecognizer) last(t *testing.T) *stubStream {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.streams, "no recognition stream opened")
	return r.streams[len(r.streams)-1]
}

// stubTranslator emits fixed fragments. When gate is set, it waits for the
// gate after the first fragment.
type stubTranslator struct {
	fragments []string
	err       error
	gate      chan struct{}
	entered   chan struct{}
}

func (s *stubTranslator) Name() string { return "stub" }

func (s *stubTranslator) TranslateStreaming(ctx context.Context, text string, _ events.Direction, onFragment translate.FragmentFunc) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	var out strings.Builder
	for i, f := range s.fragments {
		onFragment(f)
		out.WriteString(f)
		if i == 0 && s.gate != nil {
			if s.entered != nil {
				close(s.entered)
			}
			select {
			case <-s.gate:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return out.String(), nil
}

// stubVoice returns a fixed buffer.
type stubVoice struct {
	audio []byte
	err   error
	delay time.Duration

	mu    sync.Mutex
	texts []string
}

func (v *stubVoice) Name() string     { return "stub:voice" }
func (v *stubVoice) Provider() string { return "stub" }
func (v *stubVoice) VoiceID() string  { return "voice" }

func (v *stubVoice) Synthesize(ctx context.Context, text string) ([]byte, error) {
	v.mu.Lock()
	v.texts = append(v.texts, text)
	v.mu.Unlock()

	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if v.err != nil {
		return nil, v.err
	}
	return v.audio, nil
}

func (v *stubVoice) calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.texts...)
}

// recordingPeer stores everything sent to it.
type recordingPeer struct {
	id string

	mu     sync.Mutex
	events []events.ServerEvent
}

func newRecordingPeer(id string) *recordingPeer {
	return &recordingPeer{id: id}
}

func (p *recordingPeer) ID() string { return p.id }

func (p *recordingPeer) Send(ev events.ServerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPeer) all() []events.ServerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.ServerEvent(nil), p.events...)
}

func (p *recordingPeer) ofType(typ events.ServerEventType) []events.ServerEvent {
	var out []events.ServerEvent
	for _, ev := range p.all() {
		if ev.ServerEventType() == typ {
			out = append(out, ev)
		}
	}
	return out
}

// types lists received event types, leaving out status events.
func (p *recordingPeer) types() []events.ServerEventType {
	var out []events.ServerEventType
	for _, ev := range p.all() {
		switch ev.ServerEventType() {
		case events.ServerEventTypeStatusProcessing, events.ServerEventTypeStatusLatency:
			continue
		}
		out = append(out, ev.ServerEventType())
	}
	return out
}

func (p *recordingPeer) waitFor(t *testing.T, typ events.ServerEventType) events.ServerEvent {
	t.Helper()
	var found events.ServerEvent
	require.Eventually(t, func() bool {
		evs := p.ofType(typ)
		if len(evs) == 0 {
			return false
		}
		found = evs[0]
		return true
	}, 2*time.Second, 5*time.Millisecond, "%s never received %s", p.id, typ)
	return found
}

func (p *recordingPeer) lastError(t *testing.T) *events.ConnectionErrorEvent {
	t.Helper()
	p.waitFor(t, events.ServerEventTypeConnectionError)
	evs := p.ofType(events.ServerEventTypeConnectionError)
	return evs[len(evs)-1].(*events.ConnectionErrorEvent)
}

var errProvider = errors.New("provider unavailable")

func asrError(msg string) asr.Event {
	return asr.Event{Err: &asr.Error{Code: asr.ErrCodeProviderError, Message: msg}}
}
