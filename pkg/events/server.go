package events

import (
	"time"

	"github.com/google/uuid"
)

// ServerEventType represents the type of server event.
type ServerEventType string

const (
	ServerEventTypeConnectionEstablished    ServerEventType = "connection:established"
	ServerEventTypeConnectionError          ServerEventType = "connection:error"
	ServerEventTypeSessionJoined            ServerEventType = "session:joined"
	ServerEventTypeSessionParticipantJoined ServerEventType = "session:participant-joined"
	ServerEventTypeSessionParticipantLeft   ServerEventType = "session:participant-left"
	ServerEventTypeSessionError             ServerEventType = "session:error"
	ServerEventTypeTranscriptInterim        ServerEventType = "transcript:interim"
	ServerEventTypeTranscriptFinal          ServerEventType = "transcript:final"
	ServerEventTypeTranslationStart         ServerEventType = "translation:start"
	ServerEventTypeTranslationChunk         ServerEventType = "translation:chunk"
	ServerEventTypeTranslationComplete      ServerEventType = "translation:complete"
	ServerEventTypeTTSStart                 ServerEventType = "tts:start"
	ServerEventTypeTTSChunk                 ServerEventType = "tts:chunk"
	ServerEventTypeTTSComplete              ServerEventType = "tts:complete"
	ServerEventTypeStatusProcessing         ServerEventType = "status:processing"
	ServerEventTypeStatusLatency            ServerEventType = "status:latency"
)

// ServerEvent is the interface for all server events.
type ServerEvent interface {
	ServerEventType() ServerEventType
	GetEventID() string
}

// BaseServerEvent contains common fields for all server events.
type BaseServerEvent struct {
	EventID string          `json:"event_id"`
	Type    ServerEventType `json:"type"`
}

func (e BaseServerEvent) ServerEventType() ServerEventType {
	return e.Type
}

func (e BaseServerEvent) GetEventID() string {
	return e.EventID
}

// NewBaseServerEvent creates a new base server event with a generated event ID.
func NewBaseServerEvent(eventType ServerEventType) BaseServerEvent {
	return BaseServerEvent{
		EventID: "evt_" + uuid.New().String()[:8],
		Type:    eventType,
	}
}

// Millis converts t to milliseconds since the Unix epoch.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// ConnectionEstablishedEvent greets a newly accepted connection.
type ConnectionEstablishedEvent struct {
	BaseServerEvent
	ConnectionID string `json:"connectionId"`
}

func NewConnectionEstablishedEvent(connectionID string) *ConnectionEstablishedEvent {
	return &ConnectionEstablishedEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeConnectionEstablished),
		ConnectionID:    connectionID,
	}
}

// ConnectionErrorEvent reports an ingress-state or stage error.
type ConnectionErrorEvent struct {
	BaseServerEvent
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func NewConnectionErrorEvent(code ErrorCode, message, details string) *ConnectionErrorEvent {
	return &ConnectionErrorEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeConnectionError),
		Code:            code,
		Message:         message,
		Details:         details,
	}
}

// SessionJoinedEvent answers a successful join with the session state.
type SessionJoinedEvent struct {
	BaseServerEvent
	SessionID    string            `json:"sessionId"`
	Participants []ParticipantInfo `json:"participants"`
	StartedAt    int64             `json:"startedAt"`
}

func NewSessionJoinedEvent(sessionID string, participants []ParticipantInfo, startedAt time.Time) *SessionJoinedEvent {
	return &SessionJoinedEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeSessionJoined),
		SessionID:       sessionID,
		Participants:    participants,
		StartedAt:       Millis(startedAt),
	}
}

// ParticipantEvent is sent to the peer when a participant joins or leaves.
type ParticipantEvent struct {
	BaseServerEvent
	Role         Role   `json:"role"`
	ConnectionID string `json:"connectionId"`
}

func NewParticipantJoinedEvent(role Role, connectionID string) *ParticipantEvent {
	return &ParticipantEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeSessionParticipantJoined),
		Role:            role,
		ConnectionID:    connectionID,
	}
}

func NewParticipantLeftEvent(role Role, connectionID string) *ParticipantEvent {
	return &ParticipantEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeSessionParticipantLeft),
		Role:            role,
		ConnectionID:    connectionID,
	}
}

// SessionErrorEvent rejects a malformed join request.
type SessionErrorEvent struct {
	BaseServerEvent
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewSessionErrorEvent(code, message string) *SessionErrorEvent {
	return &SessionErrorEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeSessionError),
		Code:            code,
		Message:         message,
	}
}

// TranscriptEvent carries an interim or final recognition result.
type TranscriptEvent struct {
	BaseServerEvent
	Transcript
}

func NewTranscriptEvent(t Transcript) *TranscriptEvent {
	eventType := ServerEventTypeTranscriptInterim
	if t.IsFinal {
		eventType = ServerEventTypeTranscriptFinal
	}
	return &TranscriptEvent{
		BaseServerEvent: NewBaseServerEvent(eventType),
		Transcript:      t,
	}
}

// TranslationStartEvent opens the translation of one utterance.
type TranslationStartEvent struct {
	BaseServerEvent
	ID string `json:"id"`
}

func NewTranslationStartEvent(id string) *TranslationStartEvent {
	return &TranslationStartEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeTranslationStart),
		ID:              id,
	}
}

// TranslationChunkEvent carries one incremental translation fragment.
type TranslationChunkEvent struct {
	BaseServerEvent
	ID        string `json:"id"`
	Chunk     string `json:"chunk"`
	Timestamp int64  `json:"timestamp"`
}

func NewTranslationChunkEvent(id, chunk string, ts time.Time) *TranslationChunkEvent {
	return &TranslationChunkEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeTranslationChunk),
		ID:              id,
		Chunk:           chunk,
		Timestamp:       Millis(ts),
	}
}

// TranslationCompleteEvent closes the translation of one utterance.
type TranslationCompleteEvent struct {
	BaseServerEvent
	Translation
}

func NewTranslationCompleteEvent(t Translation) *TranslationCompleteEvent {
	return &TranslationCompleteEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeTranslationComplete),
		Translation:     t,
	}
}

// TTSEvent brackets synthesized audio for one utterance.
type TTSEvent struct {
	BaseServerEvent
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

func NewTTSStartEvent(id string, ts time.Time) *TTSEvent {
	return &TTSEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeTTSStart),
		ID:              id,
		Timestamp:       Millis(ts),
	}
}

func NewTTSCompleteEvent(id string, ts time.Time) *TTSEvent {
	return &TTSEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeTTSComplete),
		ID:              id,
		Timestamp:       Millis(ts),
	}
}

// TTSChunkEvent carries encoded audio bytes. The codec depends on the
// synthesis provider bound to the direction.
type TTSChunkEvent struct {
	BaseServerEvent
	ID        string `json:"id"`
	Chunk     []byte `json:"chunk"` // base64 in JSON
	Timestamp int64  `json:"timestamp"`
}

func NewTTSChunkEvent(id string, chunk []byte, ts time.Time) *TTSChunkEvent {
	return &TTSChunkEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeTTSChunk),
		ID:              id,
		Chunk:           chunk,
		Timestamp:       Millis(ts),
	}
}

// ProcessingStatusEvent reports that a stage became active or idle.
type ProcessingStatusEvent struct {
	BaseServerEvent
	Stage  Stage `json:"stage"`
	Active bool  `json:"active"`
}

func NewProcessingStatusEvent(stage Stage, active bool) *ProcessingStatusEvent {
	return &ProcessingStatusEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeStatusProcessing),
		Stage:           stage,
		Active:          active,
	}
}

// LatencyEvent reports the stage durations of one utterance.
type LatencyEvent struct {
	BaseServerEvent
	LatencyMetrics
}

func NewLatencyEvent(m LatencyMetrics) *LatencyEvent {
	return &LatencyEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeStatusLatency),
		LatencyMetrics:  m,
	}
}
