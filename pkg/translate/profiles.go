package translate

import (
	"fmt"
	"strings"

	"github.com/realtime-ai/counseling-interpreter/pkg/events"
)

// Term is one glossary entry.
type Term struct {
	English string
	Chinese string
}

// Glossary biases both directions towards consistent clinical terminology.
var Glossary = []Term{
	{"anxiety", "焦慮"},
	{"depression", "憂鬱"},
	{"trauma", "創傷"},
	{"PTSD", "創傷後壓力症候群"},
	{"attachment", "依附關係"},
	{"transference", "移情"},
	{"countertransference", "反移情"},
	{"CBT", "認知行為治療"},
	{"mindfulness", "正念"},
	{"self-esteem", "自尊"},
	{"boundaries", "界限"},
	{"coping mechanism", "因應機制"},
	{"dissociation", "解離"},
	{"grief", "哀傷"},
	{"panic attack", "恐慌發作"},
	{"phobia", "恐懼症"},
	{"obsessive-compulsive", "強迫症"},
	{"bipolar", "雙相情緒障礙"},
	{"schizophrenia", "思覺失調症"},
	{"eating disorder", "飲食障礙"},
	{"substance abuse", "物質濫用"},
	{"suicidal ideation", "自殺意念"},
	{"self-harm", "自傷"},
	{"therapeutic alliance", "治療同盟"},
	{"empathy", "同理心"},
	{"unconditional positive regard", "無條件正向關懷"},
}

// Profile is the instruction set for one direction.
type Profile struct {
	Direction    events.Direction
	Source       events.Language
	Target       events.Language
	SystemPrompt string
}

var profiles = map[events.Direction]Profile{
	events.DirectionEnToZh: {
		Direction: events.DirectionEnToZh,
		Source:    events.LanguageEnglish,
		Target:    events.LanguageChinese,
		SystemPrompt: buildPrompt(
			"You are a professional interpreter in a counseling session, translating English spoken by a student into Traditional Chinese for a counselor in Taiwan.",
			[]string{
				"Use Traditional Chinese characters and Taiwan usage.",
				"Preserve the speaker's tone and emotional nuance.",
				"Use the glossary terms for clinical vocabulary.",
				"Render hesitations or pauses as \"...\".",
				"Keep the first person; do not summarize or add commentary.",
				"Output only the translation, natural and concise.",
			},
			func(t Term) string { return fmt.Sprintf("%s → %s", t.English, t.Chinese) },
		),
	},
	events.DirectionZhToEn: {
		Direction: events.DirectionZhToEn,
		Source:    events.LanguageChinese,
		Target:    events.LanguageEnglish,
		SystemPrompt: buildPrompt(
			"You are a professional interpreter in a counseling session, translating Chinese spoken by a counselor in Taiwan into natural conversational English for a student.",
			[]string{
				"Use natural, warm conversational English.",
				"Preserve the speaker's tone and emotional nuance.",
				"Use the glossary terms for clinical vocabulary.",
				"Render hesitations or pauses as \"...\".",
				"Keep the first person; do not summarize or add commentary.",
				"Output only the translation, natural and concise.",
			},
			func(t Term) string { return fmt.Sprintf("%s → %s", t.Chinese, t.English) },
		),
	},
}

func buildPrompt(role string, guidelines []string, entry func(Term) string) string {
	var b strings.Builder
	b.WriteString(role)
	b.WriteString("\n\nGuidelines:\n")
	for i, g := range guidelines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, g)
	}
	b.WriteString("\nGlossary:\n")
	for _, t := range Glossary {
		b.WriteString("- ")
		b.WriteString(entry(t))
		b.WriteString("\n")
	}
	return b.String()
}

// ProfileFor returns the instruction profile for direction.
func ProfileFor(direction events.Direction) (Profile, error) {
	p, ok := profiles[direction]
	if !ok {
		return Profile{}, fmt.Errorf("unsupported translation direction %q", direction)
	}
	return p, nil
}
