package events

import (
	"encoding/json"
	"fmt"
)

// ClientEventType represents the type of client event.
type ClientEventType string

const (
	ClientEventTypeSessionJoin   ClientEventType = "session:join"
	ClientEventTypeSessionLeave  ClientEventType = "session:leave"
	ClientEventTypeAudioStart    ClientEventType = "audio:start"
	ClientEventTypeAudioChunk    ClientEventType = "audio:chunk"
	ClientEventTypeAudioStop     ClientEventType = "audio:stop"
	ClientEventTypeControlMute   ClientEventType = "control:mute"
	ClientEventTypeControlUnmute ClientEventType = "control:unmute"
)

// ClientEvent is the interface for all client events.
type ClientEvent interface {
	ClientEventType() ClientEventType
}

// BaseClientEvent contains common fields for all client events.
type BaseClientEvent struct {
	Type ClientEventType `json:"type"`
}

func (e BaseClientEvent) ClientEventType() ClientEventType {
	return e.Type
}

// SessionJoinEvent joins or creates a session under the given role.
type SessionJoinEvent struct {
	BaseClientEvent
	SessionID string `json:"sessionId"`
	Role      Role   `json:"role"`
}

// SessionLeaveEvent leaves the current session.
type SessionLeaveEvent struct {
	BaseClientEvent
}

// AudioStartEvent begins a pipeline for the announced spoken language.
type AudioStartEvent struct {
	BaseClientEvent
	Language Language `json:"language"`
}

// AudioChunkEvent carries one PCM16 mono 16 kHz frame.
type AudioChunkEvent struct {
	BaseClientEvent
	Audio []byte `json:"audio"` // base64 in JSON
}

// AudioStopEvent stops the active pipeline.
type AudioStopEvent struct {
	BaseClientEvent
}

// ControlMuteEvent sets or clears the connection's mute flag.
// Both "control:mute" and "control:unmute" decode into this struct.
type ControlMuteEvent struct {
	BaseClientEvent
}

// Muted reports the flag value requested by the event.
func (e ControlMuteEvent) Muted() bool {
	return e.Type == ClientEventTypeControlMute
}

// NewAudioChunkEvent wraps a binary frame received outside the JSON envelope.
func NewAudioChunkEvent(frame []byte) *AudioChunkEvent {
	return &AudioChunkEvent{
		BaseClientEvent: BaseClientEvent{Type: ClientEventTypeAudioChunk},
		Audio:           frame,
	}
}

// ParseClientEvent parses a JSON message into a ClientEvent.
func ParseClientEvent(data []byte) (ClientEvent, error) {
	var base BaseClientEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse event type: %w", err)
	}

	var event ClientEvent
	var err error

	switch base.Type {
	case ClientEventTypeSessionJoin:
		var e SessionJoinEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case ClientEventTypeSessionLeave:
		var e SessionLeaveEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case ClientEventTypeAudioStart:
		var e AudioStartEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case ClientEventTypeAudioChunk:
		var e AudioChunkEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case ClientEventTypeAudioStop:
		var e AudioStopEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case ClientEventTypeControlMute, ClientEventTypeControlUnmute:
		var e ControlMuteEvent
		err = json.Unmarshal(data, &e)
		event = &e

	default:
		return nil, fmt.Errorf("unknown client event type: %q", base.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse %s event: %w", base.Type, err)
	}

	return event, nil
}
