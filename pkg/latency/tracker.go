// Package latency measures how long each stage of one utterance takes.
package latency

import (
	"sync"
	"time"

	"github.com/realtime-ai/counseling-interpreter/pkg/events"
)

// Stages holds the three stage durations of a single utterance.
type Stages struct {
	STT         time.Duration
	Translation time.Duration
	TTS         time.Duration
}

// Metrics converts the durations to whole milliseconds. Total is the sum of
// the three reported values, not a separately measured span.
func (s Stages) Metrics() events.LatencyMetrics {
	m := events.LatencyMetrics{
		STT:         millis(s.STT),
		Translation: millis(s.Translation),
		TTS:         millis(s.TTS),
	}
	m.Total = m.STT + m.Translation + m.TTS
	return m
}

func millis(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}

// Tracker remembers when the utterance currently being recognized began.
// It is reset each time an utterance is finalized, so nothing accumulates
// across utterances.
type Tracker struct {
	mu    sync.Mutex
	now   func() time.Time
	start time.Time
}

// NewTracker creates a tracker. A nil clock selects time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Begin marks the start of the current utterance. Later calls before
// Finalize are ignored.
func (t *Tracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.start.IsZero() {
		t.start = t.now()
	}
}

// Finalize returns the recognition duration of the current utterance and
// resets the tracker. Without a prior Begin the duration is zero.
func (t *Tracker) Finalize() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.start.IsZero() {
		return 0
	}
	d := t.now().Sub(t.start)
	t.start = time.Time{}
	if d < 0 {
		return 0
	}
	return d
}

// Stopwatch returns a function reporting the time elapsed since it was created.
func Stopwatch(now func() time.Time) func() time.Duration {
	if now == nil {
		now = time.Now
	}
	start := now()
	return func() time.Duration {
		return now().Sub(start)
	}
}
