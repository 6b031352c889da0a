// Package events defines the event types exchanged with interpreter clients.
package events

// Role identifies a participant slot within a session.
type Role string

const (
	RoleStudent   Role = "student"
	RoleCounselor Role = "counselor"
)

// Roles lists the session roles in their canonical order.
var Roles = []Role{RoleStudent, RoleCounselor}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleCounselor
}

// Opposite returns the counterpart role.
func (r Role) Opposite() Role {
	if r == RoleStudent {
		return RoleCounselor
	}
	return RoleStudent
}

// Language is the spoken language announced by a participant.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageChinese Language = "zh"
)

// Direction names an ordered source/target language pair.
type Direction string

const (
	DirectionEnToZh Direction = "en-to-zh"
	DirectionZhToEn Direction = "zh-to-en"
)

// ErrorCode is carried by connection:error events.
type ErrorCode string

const (
	ErrCodeSTT           ErrorCode = "STT_ERROR"
	ErrCodePipeline      ErrorCode = "PIPELINE_ERROR"
	ErrCodeTTS           ErrorCode = "TTS_ERROR"
	ErrCodePipelineStart ErrorCode = "PIPELINE_START_ERROR"
	ErrCodeNotInSession  ErrorCode = "NOT_IN_SESSION"
)

// Codes carried by session:error.
const (
	// ErrCodeInvalidJoin answers a malformed join request.
	ErrCodeInvalidJoin = "INVALID_JOIN"
	// ErrCodeRoleTaken tells a connection that a newer join took its role.
	ErrCodeRoleTaken = "ROLE_TAKEN"
)

// Stage names one step of the interpretation pipeline.
type Stage string

const (
	StageSTT         Stage = "stt"
	StageTranslation Stage = "translation"
	StageTTS         Stage = "tts"
)

// ParticipantInfo describes one occupied role in a session.
type ParticipantInfo struct {
	Role         Role   `json:"role"`
	ConnectionID string `json:"connectionId"`
	Connected    bool   `json:"connected"`
}

// Transcript is the payload of transcript:interim and transcript:final.
type Transcript struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Speaker   Role     `json:"speaker"`
	Language  Language `json:"language"`
	Timestamp int64    `json:"timestamp"`
	IsFinal   bool     `json:"isFinal"`
}

// Translation is the payload of translation:complete.
type Translation struct {
	ID             string    `json:"id"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	Direction      Direction `json:"direction"`
	Timestamp      int64     `json:"timestamp"`
}

// LatencyMetrics reports per-stage durations in milliseconds.
type LatencyMetrics struct {
	STT         int64 `json:"stt"`
	Translation int64 `json:"translation"`
	TTS         int64 `json:"tts"`
	Total       int64 `json:"total"`
}
