package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType ClientEventType
		check    func(t *testing.T, ev ClientEvent)
	}{
		{
			name:     "session join",
			input:    `{"type":"session:join","sessionId":"ABC123","role":"student"}`,
			wantType: ClientEventTypeSessionJoin,
			check: func(t *testing.T, ev ClientEvent) {
				join := ev.(*SessionJoinEvent)
				assert.Equal(t, "ABC123", join.SessionID)
				assert.Equal(t, RoleStudent, join.Role)
			},
		},
		{
			name:     "audio start",
			input:    `{"type":"audio:start","language":"zh"}`,
			wantType: ClientEventTypeAudioStart,
			check: func(t *testing.T, ev ClientEvent) {
				assert.Equal(t, LanguageChinese, ev.(*AudioStartEvent).Language)
			},
		},
		{
			name:     "audio chunk decodes base64",
			input:    `{"type":"audio:chunk","audio":"AAEC"}`,
			wantType: ClientEventTypeAudioChunk,
			check: func(t *testing.T, ev ClientEvent) {
				assert.Equal(t, []byte{0, 1, 2}, ev.(*AudioChunkEvent).Audio)
			},
		},
		{
			name:     "mute",
			input:    `{"type":"control:mute"}`,
			wantType: ClientEventTypeControlMute,
			check: func(t *testing.T, ev ClientEvent) {
				assert.True(t, ev.(*ControlMuteEvent).Muted())
			},
		},
		{
			name:     "unmute",
			input:    `{"type":"control:unmute"}`,
			wantType: ClientEventTypeControlUnmute,
			check: func(t *testing.T, ev ClientEvent) {
				assert.False(t, ev.(*ControlMuteEvent).Muted())
			},
		},
		{
			name:     "leave",
			input:    `{"type":"session:leave"}`,
			wantType: ClientEventTypeSessionLeave,
		},
		{
			name:     "stop",
			input:    `{"type":"audio:stop"}`,
			wantType: ClientEventTypeAudioStop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseClientEvent([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ev.ClientEventType())
			if tt.check != nil {
				tt.check(t, ev)
			}
		})
	}
}

func TestParseClientEvent_Errors(t *testing.T) {
	_, err := ParseClientEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseClientEvent([]byte(`{"type":"session:dance"}`))
	assert.Error(t, err)

	_, err = ParseClientEvent([]byte(`{"type":"audio:chunk","audio":"%%%"}`))
	assert.Error(t, err)
}

func TestRole(t *testing.T) {
	assert.True(t, RoleStudent.Valid())
	assert.True(t, RoleCounselor.Valid())
	assert.False(t, Role("observer").Valid())
	assert.Equal(t, RoleCounselor, RoleStudent.Opposite())
	assert.Equal(t, RoleStudent, RoleCounselor.Opposite())
}

func TestServerEventWireShape(t *testing.T) {
	ts := time.UnixMilli(1700000000000)

	data, err := json.Marshal(NewTranscriptEvent(Transcript{
		ID:        "u1",
		Text:      "I feel anxious today",
		Speaker:   RoleStudent,
		Language:  LanguageEnglish,
		Timestamp: Millis(ts),
		IsFinal:   true,
	}))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "transcript:final", got["type"])
	assert.Equal(t, "u1", got["id"])
	assert.Equal(t, true, got["isFinal"])
	assert.Equal(t, float64(1700000000000), got["timestamp"])
	assert.Contains(t, got["event_id"], "evt_")

	data, err = json.Marshal(NewTTSChunkEvent("u1", []byte{1, 2, 3}, ts))
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "tts:chunk", got["type"])
	assert.Equal(t, "AQID", got["chunk"])

	data, err = json.Marshal(NewLatencyEvent(LatencyMetrics{STT: 1, Translation: 2, TTS: 3, Total: 6}))
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "status:latency", got["type"])
	assert.Equal(t, float64(6), got["total"])

	data, err = json.Marshal(NewConnectionErrorEvent(ErrCodeNotInSession, "join a session first", ""))
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "NOT_IN_SESSION", got["code"])
	_, hasDetails := got["details"]
	assert.False(t, hasDetails)
}
