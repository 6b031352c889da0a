package interpreter

import (
	"context"
	"sync"
	"sync/atomic"
)

// synthesisHandle tracks one in-flight synthesis task. A stale handle may
// still finish its provider call, but its output is never delivered.
type synthesisHandle struct {
	utteranceID string
	ctx         context.Context
	cancel      context.CancelFunc
	stale       atomic.Bool
}

func (h *synthesisHandle) live() bool {
	return h == nil || !h.stale.Load()
}

// synthesisSet holds the pipeline's in-flight synthesis handles keyed by
// utterance id.
type synthesisSet struct {
	mu      sync.Mutex
	handles map[string]*synthesisHandle
}

func newSynthesisSet() *synthesisSet {
	return &synthesisSet{handles: make(map[string]*synthesisHandle)}
}

// supersede marks every existing handle stale, cancels it, and registers a
// new handle for utteranceID derived from parent.
func (s *synthesisSet) supersede(parent context.Context, utteranceID string) *synthesisHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, h := range s.handles {
		h.stale.Store(true)
		h.cancel()
		delete(s.handles, id)
	}

	ctx, cancel := context.WithCancel(parent)
	h := &synthesisHandle{utteranceID: utteranceID, ctx: ctx, cancel: cancel}
	s.handles[utteranceID] = h
	return h
}

// done releases h once its task has finished.
func (s *synthesisSet) done(h *synthesisHandle) {
	h.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.handles[h.utteranceID]; ok && cur == h {
		delete(s.handles, h.utteranceID)
	}
}

// cancelAll marks all handles stale and cancels them.
func (s *synthesisSet) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, h := range s.handles {
		h.stale.Store(true)
		h.cancel()
		delete(s.handles, id)
	}
}

func (s *synthesisSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}
