// Package interpreter turns one participant's speech into translated speech
// for the other participant of the session.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realtime-ai/counseling-interpreter/pkg/asr"
	"github.com/realtime-ai/counseling-interpreter/pkg/audio"
	"github.com/realtime-ai/counseling-interpreter/pkg/events"
	"github.com/realtime-ai/counseling-interpreter/pkg/latency"
	"github.com/realtime-ai/counseling-interpreter/pkg/metrics"
	"github.com/realtime-ai/counseling-interpreter/pkg/session"
	"github.com/realtime-ai/counseling-interpreter/pkg/trace"
	"github.com/realtime-ai/counseling-interpreter/pkg/translate"
)

// NoPeerPolicy decides what happens to synthesized audio when the speaker is
// alone in the session.
type NoPeerPolicy string

const (
	// NoPeerSelf sends the audio back to the speaker.
	NoPeerSelf NoPeerPolicy = "self"
	// NoPeerDrop discards it.
	NoPeerDrop NoPeerPolicy = "drop"
)

// ErrPipelineStopped is returned by Start on a pipeline that was stopped.
var ErrPipelineStopped = errors.New("pipeline stopped")

// StartError reports that the recognition stream could not be opened. The
// pipeline must not be treated as active.
type StartError struct {
	Direction events.Direction
	Err       error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s pipeline: %v", e.Direction, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

const finalsBuffer = 16

// Capabilities are the stateless providers shared by every pipeline.
type Capabilities struct {
	Recognizer  asr.Provider
	Translator  translate.Translator
	NoPeerAudio NoPeerPolicy
	Metrics     *metrics.Collector
	Logger      *zap.Logger
	Now         func() time.Time
}

// PipelineConfig binds a pipeline to its speaker.
type PipelineConfig struct {
	SessionID string
	Role      events.Role
	Origin    session.Peer
	Direction Direction
	Registry  *session.Registry
}

// utterance carries one finalized transcript through translation and
// synthesis.
type utterance struct {
	id     string
	text   string
	stages latency.Stages
}

// Pipeline drives recognition, translation and synthesis for one speaking
// connection. Output goes to the speaker and to whichever peer holds the
// opposite role at the moment of delivery.
type Pipeline struct {
	cfg     PipelineConfig
	caps    Capabilities
	logger  *zap.Logger
	tracker *latency.Tracker

	// mu guards the lifecycle fields. Every delivery holds the read lock,
	// so nothing reaches a client once Stop has taken the write lock.
	mu        sync.RWMutex
	started   bool
	stopped   bool
	rec       asr.StreamingRecognizer
	ctx       context.Context
	cancel    context.CancelFunc
	pendingID string

	finals chan *utterance
	synth  *synthesisSet
	wg     sync.WaitGroup
}

// NewPipeline creates an idle pipeline.
func NewPipeline(cfg PipelineConfig, caps Capabilities) *Pipeline {
	if caps.Logger == nil {
		caps.Logger = zap.NewNop()
	}
	if caps.Now == nil {
		caps.Now = time.Now
	}
	if caps.NoPeerAudio == "" {
		caps.NoPeerAudio = NoPeerSelf
	}
	logger := caps.Logger.With(
		zap.String("component", "pipeline"),
		zap.String("session_id", cfg.SessionID),
		zap.String("role", string(cfg.Role)),
		zap.String("direction", string(cfg.Direction.Name)),
	)
	return &Pipeline{
		cfg:     cfg,
		caps:    caps,
		logger:  logger,
		tracker: latency.NewTracker(caps.Now),
		finals:  make(chan *utterance, finalsBuffer),
		synth:   newSynthesisSet(),
	}
}

// Direction returns the pipeline's language pair.
func (p *Pipeline) Direction() events.Direction {
	return p.cfg.Direction.Name
}

// Start opens the recognition stream and begins processing. Failures are
// *StartError.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return &StartError{Direction: p.cfg.Direction.Name, Err: ErrPipelineStopped}
	}
	if p.started {
		p.mu.Unlock()
		return &StartError{Direction: p.cfg.Direction.Name, Err: errors.New("already started")}
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	runCtx := p.ctx
	p.mu.Unlock()

	spanCtx, span := trace.InstrumentRecognitionStart(runCtx, p.caps.Recognizer.Name(), p.cfg.Direction.RecognitionLanguage)
	rec, err := p.caps.Recognizer.StreamingRecognize(spanCtx,
		asr.AudioConfig{
			SampleRate: audio.Ingress.SampleRate,
			Channels:   audio.Ingress.Channels,
			Encoding:   audio.Ingress.Encoding(),
		},
		asr.RecognitionConfig{
			Language:             p.cfg.Direction.RecognitionLanguage,
			EnablePartialResults: true,
		},
	)
	if err != nil {
		trace.RecordError(span, err)
		span.End()
		p.cancel()
		return &StartError{Direction: p.cfg.Direction.Name, Err: err}
	}
	span.End()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		_ = rec.Close()
		return &StartError{Direction: p.cfg.Direction.Name, Err: ErrPipelineStopped}
	}
	p.rec = rec
	p.wg.Add(2)
	go p.recognitionLoop(rec)
	go p.translationLoop(runCtx)
	p.mu.Unlock()

	p.caps.Metrics.PipelineStarted()
	p.logger.Info("pipeline started",
		zap.String("provider", p.caps.Recognizer.Name()),
		zap.String("language", p.cfg.Direction.RecognitionLanguage))
	return nil
}

// PushAudio forwards one PCM frame to the recognizer. Frames arriving before
// Start or after Stop are dropped silently.
func (p *Pipeline) PushAudio(frame []byte) {
	if err := audio.Ingress.Validate(frame); err != nil {
		p.caps.Metrics.RecordDroppedFrame("invalid")
		p.logger.Debug("dropping audio frame", zap.Int("bytes", len(frame)), zap.Error(err))
		return
	}

	p.mu.RLock()
	rec, ctx, stopped := p.rec, p.ctx, p.stopped
	p.mu.RUnlock()
	if rec == nil || stopped {
		return
	}

	if err := rec.SendAudio(ctx, frame); err != nil && ctx.Err() == nil {
		p.logger.Debug("send audio failed", zap.Error(err))
	}
}

// Stop closes the recognition stream and suppresses all further output,
// including that of in-flight translation and synthesis. It is idempotent
// and safe on a pipeline that never started.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	rec, cancel := p.rec, p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.synth.cancelAll()
	if rec != nil {
		if err := rec.Close(); err != nil {
			p.logger.Warn("closing recognizer", zap.Error(err))
		}
	}
	p.wg.Wait()

	if rec != nil {
		p.caps.Metrics.PipelineStopped()
		p.logger.Info("pipeline stopped")
	}
}

func (p *Pipeline) recognitionLoop(rec asr.StreamingRecognizer) {
	defer p.wg.Done()

	for ev := range rec.Events() {
		if ev.Err != nil {
			p.reportError(events.ErrCodeSTT, "Speech recognition error", ev.Err)
			continue
		}
		if ev.Result == nil || ev.Result.Text == "" {
			continue
		}
		if ev.Result.IsFinal {
			p.handleFinal(ev.Result)
		} else {
			p.handleInterim(ev.Result)
		}
	}
}

// currentUtteranceID returns the id of the utterance being recognized,
// creating one on first use.
func (p *Pipeline) currentUtteranceID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingID == "" {
		p.pendingID = uuid.NewString()
	}
	return p.pendingID
}

// takeUtteranceID returns the current utterance id and clears it so the next
// interim starts a new utterance.
func (p *Pipeline) takeUtteranceID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.pendingID
	if id == "" {
		id = uuid.NewString()
	}
	p.pendingID = ""
	return id
}

func (p *Pipeline) handleInterim(r *asr.RecognitionResult) {
	p.tracker.Begin()
	p.deliverOrigin(nil, events.NewTranscriptEvent(events.Transcript{
		ID:        p.currentUtteranceID(),
		Text:      r.Text,
		Speaker:   p.cfg.Role,
		Language:  p.cfg.Direction.Source,
		Timestamp: events.Millis(p.caps.Now()),
		IsFinal:   false,
	}))
}

func (p *Pipeline) handleFinal(r *asr.RecognitionResult) {
	u := &utterance{
		id:   p.takeUtteranceID(),
		text: r.Text,
	}
	u.stages.STT = p.tracker.Finalize()

	p.caps.Metrics.RecordUtterance(string(p.cfg.Direction.Name))
	p.caps.Metrics.ObserveStage(string(events.StageSTT), string(p.cfg.Direction.Name), u.stages.STT)

	p.deliverBoth(nil, events.NewTranscriptEvent(events.Transcript{
		ID:        u.id,
		Text:      u.text,
		Speaker:   p.cfg.Role,
		Language:  p.cfg.Direction.Source,
		Timestamp: events.Millis(p.caps.Now()),
		IsFinal:   true,
	}))

	p.mu.RLock()
	ctx, stopped := p.ctx, p.stopped
	p.mu.RUnlock()
	if stopped {
		return
	}
	select {
	case p.finals <- u:
	case <-ctx.Done():
	}
}

// translationLoop handles finalized utterances one at a time so fragments of
// consecutive utterances never interleave.
func (p *Pipeline) translationLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-p.finals:
			p.translate(ctx, u)
		}
	}
}

func (p *Pipeline) translate(ctx context.Context, u *utterance) {
	dir := p.cfg.Direction.Name
	ctx, span := trace.InstrumentTranslation(ctx, p.caps.Translator.Name(), u.id, string(dir), u.text)
	defer span.End()

	elapsed := latency.Stopwatch(p.caps.Now)
	p.deliverBoth(nil, events.NewTranslationStartEvent(u.id))
	p.deliverOrigin(nil, events.NewProcessingStatusEvent(events.StageTranslation, true))

	translated, err := p.caps.Translator.TranslateStreaming(ctx, u.text, dir, func(fragment string) {
		p.deliverBoth(nil, events.NewTranslationChunkEvent(u.id, fragment, p.caps.Now()))
	})
	u.stages.Translation = elapsed()
	p.deliverOrigin(nil, events.NewProcessingStatusEvent(events.StageTranslation, false))

	if err != nil {
		trace.RecordError(span, err)
		if ctx.Err() != nil {
			return
		}
		p.reportError(events.ErrCodePipeline, "Translation error", err)
		return
	}
	p.caps.Metrics.ObserveStage(string(events.StageTranslation), string(dir), u.stages.Translation)

	p.deliverBoth(nil, events.NewTranslationCompleteEvent(events.Translation{
		ID:             u.id,
		OriginalText:   u.text,
		TranslatedText: translated,
		Direction:      dir,
		Timestamp:      events.Millis(p.caps.Now()),
	}))

	p.dispatchSynthesis(u, translated)
}

// dispatchSynthesis starts synthesis in the background. Any older synthesis
// still running is superseded and will not deliver.
func (p *Pipeline) dispatchSynthesis(u *utterance, text string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	h := p.synth.supersede(p.ctx, u.id)
	p.wg.Add(1)
	p.mu.Unlock()

	go p.synthesize(h, u, text)
}

func (p *Pipeline) synthesize(h *synthesisHandle, u *utterance, text string) {
	defer p.wg.Done()
	defer p.synth.done(h)

	voice := p.cfg.Direction.Voice
	ctx, span := trace.InstrumentSynthesis(h.ctx, voice.Provider(), voice.VoiceID(), u.id, text)
	defer span.End()

	p.deliverBoth(h, events.NewTTSStartEvent(u.id, p.caps.Now()))
	p.deliverOrigin(h, events.NewProcessingStatusEvent(events.StageTTS, true))

	elapsed := latency.Stopwatch(p.caps.Now)
	speech, err := voice.Synthesize(ctx, text)
	u.stages.TTS = elapsed()
	p.deliverOrigin(h, events.NewProcessingStatusEvent(events.StageTTS, false))

	if err != nil {
		trace.RecordError(span, err)
		if ctx.Err() != nil {
			return
		}
		p.reportErrorFor(h, events.ErrCodeTTS, "TTS synthesis failed", err)
		return
	}
	p.caps.Metrics.ObserveStage(string(events.StageTTS), string(p.cfg.Direction.Name), u.stages.TTS)

	if peer, ok := p.peer(); ok {
		p.deliver(h, peer, events.NewTTSChunkEvent(u.id, speech, p.caps.Now()))
		p.deliver(h, peer, events.NewTTSCompleteEvent(u.id, p.caps.Now()))
	} else if p.caps.NoPeerAudio == NoPeerSelf {
		p.logger.Debug("no peer in session, returning audio to speaker", zap.String("utterance_id", u.id))
		p.deliverOrigin(h, events.NewTTSChunkEvent(u.id, speech, p.caps.Now()))
	}
	p.deliverOrigin(h, events.NewTTSCompleteEvent(u.id, p.caps.Now()))

	m := u.stages.Metrics()
	p.deliverOrigin(h, events.NewLatencyEvent(m))
	p.logger.Info("utterance complete",
		zap.String("utterance_id", u.id),
		zap.Int64("stt_ms", m.STT),
		zap.Int64("translation_ms", m.Translation),
		zap.Int64("tts_ms", m.TTS),
		zap.Int64("total_ms", m.Total))
}

// peer resolves the counterpart at the moment of delivery. A pipeline whose
// origin no longer holds its role has no counterpart.
func (p *Pipeline) peer() (session.Peer, bool) {
	if p.cfg.Registry == nil {
		return nil, false
	}
	if self, ok := p.cfg.Registry.Lookup(p.cfg.SessionID, p.cfg.Role); !ok || self.ID() != p.cfg.Origin.ID() {
		return nil, false
	}
	peer, ok := p.cfg.Registry.LookupPeer(p.cfg.SessionID, p.cfg.Role)
	if !ok || peer.ID() == p.cfg.Origin.ID() {
		return nil, false
	}
	return peer, true
}

// deliver sends event to to unless the pipeline is stopped or h is stale.
func (p *Pipeline) deliver(h *synthesisHandle, to session.Peer, event events.ServerEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped || !h.live() {
		return
	}
	if err := to.Send(event); err != nil {
		p.logger.Debug("delivery failed",
			zap.String("connection_id", to.ID()),
			zap.String("event", string(event.ServerEventType())),
			zap.Error(err))
	}
}

func (p *Pipeline) deliverOrigin(h *synthesisHandle, event events.ServerEvent) {
	p.deliver(h, p.cfg.Origin, event)
}

func (p *Pipeline) deliverBoth(h *synthesisHandle, event events.ServerEvent) {
	p.deliver(h, p.cfg.Origin, event)
	if peer, ok := p.peer(); ok {
		p.deliver(h, peer, event)
	}
}

func (p *Pipeline) reportError(code events.ErrorCode, message string, err error) {
	p.reportErrorFor(nil, code, message, err)
}

func (p *Pipeline) reportErrorFor(h *synthesisHandle, code events.ErrorCode, message string, err error) {
	p.logger.Error(message, zap.String("code", string(code)), zap.Error(err))
	p.caps.Metrics.RecordError(string(code))
	p.deliverOrigin(h, events.NewConnectionErrorEvent(code, message, err.Error()))
}
