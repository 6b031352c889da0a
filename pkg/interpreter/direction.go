package interpreter

import (
	"fmt"

	"github.com/realtime-ai/counseling-interpreter/pkg/events"
	"github.com/realtime-ai/counseling-interpreter/pkg/tts"
)

// Direction is the parameter set for one language pair. A pipeline is
// configured entirely by the Direction selected from the announced source
// language.
type Direction struct {
	Name   events.Direction
	Source events.Language
	Target events.Language

	// RecognitionLanguage is the locale requested from the recognizer.
	RecognitionLanguage string

	// Voice renders translated text for the listener.
	Voice tts.Synthesizer
}

// DirectionTable maps a source language to its Direction.
type DirectionTable map[events.Language]Direction

// NewDirectionTable builds the English/Chinese table with one voice bound
// per direction.
func NewDirectionTable(enToZh, zhToEn tts.Synthesizer) DirectionTable {
	return DirectionTable{
		events.LanguageEnglish: {
			Name:                events.DirectionEnToZh,
			Source:              events.LanguageEnglish,
			Target:              events.LanguageChinese,
			RecognitionLanguage: "en-US",
			Voice:               enToZh,
		},
		events.LanguageChinese: {
			Name:                events.DirectionZhToEn,
			Source:              events.LanguageChinese,
			Target:              events.LanguageEnglish,
			RecognitionLanguage: "zh-TW",
			Voice:               zhToEn,
		},
	}
}

// Lookup returns the Direction for a source language.
func (t DirectionTable) Lookup(source events.Language) (Direction, error) {
	d, ok := t[source]
	if !ok {
		return Direction{}, fmt.Errorf("unsupported source language %q", source)
	}
	if d.Voice == nil {
		return Direction{}, fmt.Errorf("no voice bound for %s", d.Name)
	}
	return d, nil
}
