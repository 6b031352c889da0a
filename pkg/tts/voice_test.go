package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	req   *SynthesizeRequest
	audio []byte
	err   error
}

func (s *stubProvider) Name() string                 { return "stub" }
func (s *stubProvider) GetSupportedVoices() []string { return []string{"v1"} }
func (s *stubProvider) GetDefaultVoice() string      { return "v1" }
func (s *stubProvider) ValidateConfig() error        { return nil }

func (s *stubProvider) Synthesize(_ context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &SynthesizeResponse{AudioData: s.audio}, nil
}

func TestVoice_Synthesize(t *testing.T) {
	p := &stubProvider{audio: []byte{1, 2, 3}}
	v := NewVoice(p, "", "zh-TW")

	assert.Equal(t, "stub:v1", v.Name())
	assert.Equal(t, "stub", v.Provider())
	assert.Equal(t, "v1", v.VoiceID())

	audio, err := v.Synthesize(context.Background(), "你好")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, audio)
	assert.Equal(t, "v1", p.req.Voice)
	assert.Equal(t, "zh-TW", p.req.Language)
}

func TestVoice_Errors(t *testing.T) {
	v := NewVoice(&stubProvider{err: errors.New("boom")}, "v2", "en-US")
	_, err := v.Synthesize(context.Background(), "hello")
	var synthErr *SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, "stub", synthErr.Provider)

	v = NewVoice(&stubProvider{}, "v2", "en-US")
	_, err = v.Synthesize(context.Background(), "hello")
	require.ErrorAs(t, err, &synthErr)
	assert.Contains(t, err.Error(), "empty audio")
}
