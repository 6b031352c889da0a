// Unit tests for ElevenLabs Scribe V2 Realtime ASR Provider

package asr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElevenLabsProvider_Name(t *testing.T) {
	provider, err := NewElevenLabsProvider(ElevenLabsConfig{
		APIKey: "test-api-key",
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if provider.Name() != "elevenlabs" {
		t.Errorf("Expected name 'elevenlabs', got '%s'", provider.Name())
	}
}

func TestElevenLabsProvider_SupportedLanguages(t *testing.T) {
	provider, err := NewElevenLabsProvider(ElevenLabsConfig{
		APIKey: "test-api-key",
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	langMap := make(map[string]bool)
	for _, lang := range provider.SupportedLanguages() {
		langMap[lang] = true
	}
	for _, expected := range []string{"en", "zh"} {
		if !langMap[expected] {
			t.Errorf("Expected language '%s' to be supported", expected)
		}
	}
}

func TestNewElevenLabsProvider_NoAPIKey(t *testing.T) {
	_, err := NewElevenLabsProvider(ElevenLabsConfig{})
	if err == nil {
		t.Fatal("Expected error when API key is empty")
	}

	asrErr, ok := err.(*Error)
	if !ok {
		t.Errorf("Expected *Error, got %T", err)
	} else if asrErr.Code != ErrCodeInvalidConfig {
		t.Errorf("Expected ErrCodeInvalidConfig, got %v", asrErr.Code)
	}
}

func TestNewElevenLabsProvider_DefaultModel(t *testing.T) {
	provider, err := NewElevenLabsProvider(ElevenLabsConfig{APIKey: "test-api-key"})
	require.NoError(t, err)
	assert.Equal(t, elevenlabsDefaultModel, provider.model)
}

func TestElevenLabsProvider_RejectsSampleRate(t *testing.T) {
	provider, err := NewElevenLabsProvider(ElevenLabsConfig{APIKey: "test-api-key"})
	require.NoError(t, err)

	_, err = provider.StreamingRecognize(context.Background(), AudioConfig{SampleRate: 48000, Channels: 1, Encoding: "linear16"}, RecognitionConfig{Language: "en"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidConfig, err.(*Error).Code)
}

func TestNormalizeLanguageCode(t *testing.T) {
	tests := map[string]string{
		"zh-TW": "zh",
		"en-US": "en",
		"en":    "en",
		"pt_BR": "pt",
		"yue":   "yue",
	}
	for in, want := range tests {
		if got := normalizeLanguageCode(in); got != want {
			t.Errorf("normalizeLanguageCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestElevenLabsRecognizer_Stream(t *testing.T) {
	vendor := newFakeVendor(t, `{"message_type":"session_started"}`)
	provider, err := NewElevenLabsProvider(ElevenLabsConfig{APIKey: "xi-key", Endpoint: vendor.url()})
	require.NoError(t, err)

	r, err := provider.StreamingRecognize(context.Background(), testAudioConfig, RecognitionConfig{Language: "zh-TW"})
	require.NoError(t, err)
	defer r.Close()

	req := <-vendor.requests
	assert.Equal(t, "xi-key", req.Header.Get("xi-api-key"))
	assert.Equal(t, "zh", req.URL.Query().Get("language_code"))
	assert.Equal(t, "vad", req.URL.Query().Get("commit_strategy"))

	require.NoError(t, r.SendAudio(context.Background(), []byte{9, 9}))
	select {
	case raw := <-vendor.inbound:
		var chunk elevenlabsAudioChunk
		require.NoError(t, json.Unmarshal(raw, &chunk))
		assert.Equal(t, "input_audio_chunk", chunk.MessageType)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{9, 9}), chunk.AudioBase64)
		assert.Equal(t, 16000, chunk.SampleRate)
	case <-time.After(2 * time.Second):
		t.Fatal("audio chunk never reached the vendor")
	}

	vendor.outbound <- `{"message_type":"partial_transcript","text":"我覺得"}`
	vendor.outbound <- `{"message_type":"committed_transcript","text":""}`
	vendor.outbound <- `{"message_type":"committed_transcript","text":"我覺得很焦慮"}`

	ev := nextEvent(t, r)
	require.NoError(t, ev.Err)
	assert.False(t, ev.Result.IsFinal)
	assert.Equal(t, "我覺得", ev.Result.Text)

	ev = nextEvent(t, r)
	require.NoError(t, ev.Err)
	assert.True(t, ev.Result.IsFinal)
	assert.Equal(t, "我覺得很焦慮", ev.Result.Text)

	vendor.outbound <- `{"message_type":"error","error":{"code":"x","message":"boom"}}`
	ev = nextEvent(t, r)
	require.Error(t, ev.Err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}
