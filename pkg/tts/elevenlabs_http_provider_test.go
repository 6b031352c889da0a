// Unit tests for ElevenLabs HTTP TTS Provider

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewElevenLabsHTTPTTSProvider(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsHTTPTTSConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  ElevenLabsHTTPTTSConfig{APIKey: "test-api-key", VoiceID: "test-voice-id"},
			wantErr: false,
		},
		{
			name:    "defaults voice",
			config:  ElevenLabsHTTPTTSConfig{APIKey: "test-api-key"},
			wantErr: false,
		},
		{
			name:    "missing API key",
			config:  ElevenLabsHTTPTTSConfig{VoiceID: "test-voice-id"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewElevenLabsHTTPTTSProvider(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, elevenLabsHTTPDefaultModel, provider.model)
			assert.Equal(t, 0.5, provider.stability)
			assert.Equal(t, 0.75, provider.similarityBoost)
			assert.NotEmpty(t, provider.GetDefaultVoice())
		})
	}
}

func TestElevenLabsHTTPTTSProvider_Synthesize(t *testing.T) {
	var gotPath, gotFormat, gotKey string
	var gotBody elevenLabsHTTPRequestBody
	audio := bytes.Repeat([]byte{0xFF, 0xFB}, 5000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	p, err := NewElevenLabsHTTPTTSProvider(ElevenLabsHTTPTTSConfig{APIKey: "secret", Endpoint: srv.URL})
	require.NoError(t, err)

	resp, err := p.Synthesize(context.Background(), &SynthesizeRequest{Text: "How are you feeling today?"})
	require.NoError(t, err)

	assert.Equal(t, audio, resp.AudioData)
	assert.Equal(t, "audio/mpeg", resp.AudioFormat.MediaType)
	assert.Equal(t, "/"+elevenLabsHTTPDefaultVoice+"/stream", gotPath)
	assert.Equal(t, "mp3_44100_128", gotFormat)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "How are you feeling today?", gotBody.Text)
	assert.Equal(t, "eleven_turbo_v2_5", gotBody.ModelID)
	require.NotNil(t, gotBody.VoiceSettings)
	assert.True(t, gotBody.VoiceSettings.UseSpeakerBoost)
	assert.Zero(t, gotBody.VoiceSettings.Style)
}

func TestElevenLabsHTTPTTSProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota_exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewElevenLabsHTTPTTSProvider(ElevenLabsHTTPTTSConfig{APIKey: "secret", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = p.Synthesize(context.Background(), &SynthesizeRequest{Text: "hello"})
	var synthErr *SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, http.StatusTooManyRequests, synthErr.StatusCode)
	assert.Equal(t, "elevenlabs", synthErr.Provider)
}

func TestElevenLabsHTTPTTSProvider_StreamCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p, err := NewElevenLabsHTTPTTSProvider(ElevenLabsHTTPTTSConfig{APIKey: "secret", Endpoint: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	audioChan, errChan := p.StreamSynthesize(ctx, &SynthesizeRequest{Text: "hello"})
	cancel()

	for range audioChan {
	}
	select {
	case err := <-errChan:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestElevenLabsHTTPTTSProvider_Integration(t *testing.T) {
	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		t.Skip("ELEVENLABS_API_KEY not set, skipping integration test")
	}

	p, err := NewElevenLabsHTTPTTSProvider(ElevenLabsHTTPTTSConfig{APIKey: apiKey})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := p.Synthesize(ctx, &SynthesizeRequest{Text: "Thank you for sharing that with me."})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AudioData)
}
