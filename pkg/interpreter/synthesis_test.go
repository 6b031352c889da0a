package interpreter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSynthesisSet_Supersede(t *testing.T) {
	s := newSynthesisSet()

	first := s.supersede(context.Background(), "u1")
	assert.True(t, first.live())

	second := s.supersede(context.Background(), "u2")
	assert.False(t, first.live())
	assert.Error(t, first.ctx.Err())
	assert.True(t, second.live())
	assert.Equal(t, 1, s.count())

	// A finished stale handle must not remove its successor.
	s.done(first)
	assert.Equal(t, 1, s.count())

	s.done(second)
	assert.Zero(t, s.count())
	assert.True(t, second.live(), "completion is not staleness")
}

func TestSynthesisSet_CancelAll(t *testing.T) {
	s := newSynthesisSet()
	h := s.supersede(context.Background(), "u1")

	s.cancelAll()
	assert.False(t, h.live())
	assert.Error(t, h.ctx.Err())
	assert.Zero(t, s.count())

	var none *synthesisHandle
	assert.True(t, none.live(), "deliveries outside synthesis carry no handle")
}
