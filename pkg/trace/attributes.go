package trace

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by the interpreter spans.
const (
	AttrSessionID   = "session.id"
	AttrRole        = "session.role"
	AttrUtteranceID = "utterance.id"
	AttrDirection   = "interpreter.direction"

	AttrConnectionID = "connection.id"
	AttrRemoteAddr   = "net.peer.addr"

	AttrSTTProvider         = "stt.provider"
	AttrSTTLanguage         = "stt.language"
	AttrTranslationProvider = "translation.provider"
	AttrTTSProvider         = "tts.provider"
	AttrTTSVoice            = "tts.voice"
	AttrTextLength          = "text.length"
)

func SessionAttrs(sessionID, role string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrRole, role),
	}
}

// UtteranceAttrs identifies one utterance moving through a direction.
func UtteranceAttrs(utteranceID, direction string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrUtteranceID, utteranceID),
		attribute.String(AttrDirection, direction),
	}
}

func ConnectionAttrs(connID, remoteAddr string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrConnectionID, connID),
		attribute.String(AttrRemoteAddr, remoteAddr),
	}
}
