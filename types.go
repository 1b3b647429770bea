package reverie

import (
	"slices"
	"time"
)

// Role identifies the speaker of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Intent is the classifier's label for what a user message is about.
type Intent string

const (
	IntentAboutUser          Intent = "about_user"
	IntentAboutRelationship  Intent = "about_relationship"
	IntentAboutAssistant     Intent = "about_astra"
	IntentEmotionalSupport   Intent = "emotional_support"
	IntentInformationRequest Intent = "information_request"
	IntentCommand            Intent = "command"
	IntentIntimate           Intent = "intimate"
	IntentGreeting           Intent = "greeting"
	IntentFarewell           Intent = "farewell"
	IntentMemoryRecall       Intent = "memory_recall"
	IntentCasualChat         Intent = "casual_chat"
)

// KnownIntents lists every intent the classifiers may return.
var KnownIntents = []Intent{
	IntentAboutUser, IntentAboutRelationship, IntentAboutAssistant,
	IntentEmotionalSupport, IntentInformationRequest, IntentCommand,
	IntentIntimate, IntentGreeting, IntentFarewell, IntentMemoryRecall,
	IntentCasualChat,
}

// ParseIntent maps a raw classifier label to a known intent.
// Unknown labels become IntentCasualChat.
func ParseIntent(s string) Intent {
	for _, in := range KnownIntents {
		if string(in) == s {
			return in
		}
	}
	return IntentCasualChat
}

// EmotionalState is the assistant's resolved feeling for a turn.
// Once resolved every list is non-nil and de-duplicated.
type EmotionalState struct {
	Tone    string   `json:"tone"`
	Emotion []string `json:"emotion"`
	Subtone []string `json:"subtone"`
	Flavor  []string `json:"flavor"`
}

// DefaultEmotionalState is the state used for a fresh store or after a
// corrupted current-state row has been reset.
func DefaultEmotionalState() EmotionalState {
	return EmotionalState{
		Tone:    "нежный",
		Emotion: []string{"нежность"},
		Subtone: []string{"дрожащий"},
		Flavor:  []string{"медово-текучий"},
	}
}

// Canonical returns a copy with every list de-duplicated (first occurrence
// wins) and nil lists replaced by empty ones.
func (s EmotionalState) Canonical() EmotionalState {
	return EmotionalState{
		Tone:    s.Tone,
		Emotion: dedupStrings(s.Emotion),
		Subtone: dedupStrings(s.Subtone),
		Flavor:  dedupStrings(s.Flavor),
	}
}

// IsZero reports whether the state carries no labels at all.
func (s EmotionalState) IsZero() bool {
	return s.Tone == "" && len(s.Emotion) == 0 && len(s.Subtone) == 0 && len(s.Flavor) == 0
}

// Equal compares two states field by field, order-sensitive.
func (s EmotionalState) Equal(o EmotionalState) bool {
	return s.Tone == o.Tone &&
		slices.Equal(s.Emotion, o.Emotion) &&
		slices.Equal(s.Subtone, o.Subtone) &&
		slices.Equal(s.Flavor, o.Flavor)
}

func dedupStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// EmotionMemoryEntry maps a normalized phrase to the state it evokes.
type EmotionMemoryEntry struct {
	Trigger string   `json:"trigger"`
	Emotion []string `json:"emotion"`
	Tone    string   `json:"tone"`
	Subtone []string `json:"subtone"`
	Flavor  []string `json:"flavor"`
}

// State returns the entry's fields as an EmotionalState.
func (e EmotionMemoryEntry) State() EmotionalState {
	return EmotionalState{Tone: e.Tone, Emotion: e.Emotion, Subtone: e.Subtone, Flavor: e.Flavor}.Canonical()
}

// TriggerPhrase is a hard override: when Trigger occurs anywhere in a
// message (case-insensitive), Sets becomes the resolved state.
type TriggerPhrase struct {
	Trigger string         `json:"trigger"`
	Sets    EmotionalState `json:"sets"`
}

// MemoryFragment is a scored piece of long-form memory text. Relevance is
// only comparable between fragments returned by the same query.
type MemoryFragment struct {
	ID              string  `json:"id,omitempty"`
	Text            string  `json:"text"`
	Relevance       float64 `json:"relevance"`
	Source          string  `json:"source"`
	EmotionalWeight float64 `json:"emotional_weight"`
}

// ConversationMessage is one turn of dialogue.
type ConversationMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is a compacted prefix of conversation history. UpTo is the
// number of log messages, counted from the start of the log, that this and
// every earlier summary cover.
type Summary struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"summary"`
	UpTo      int       `json:"upto"`
}

// LabelKind is one of the emotion label tables.
type LabelKind string

const (
	KindTone    LabelKind = "tone"
	KindSubtone LabelKind = "subtone"
	KindFlavor  LabelKind = "flavor"
	KindEmotion LabelKind = "emotion"
)

// Label is a catalog entry for a tone, subtone, flavor or emotion.
type Label struct {
	Name        string   `json:"label"        yaml:"label"`
	Description string   `json:"description"  yaml:"description"`
	TriggeredBy []string `json:"triggered_by" yaml:"triggered_by"`
	Examples    []string `json:"examples"     yaml:"examples"`
}

// StyleProfile describes how the user writes, so replies can mirror it.
type StyleProfile struct {
	Length            string   `json:"length"`
	Formality         string   `json:"formality"`
	Emotionality      string   `json:"emotionality"`
	Structure         string   `json:"structure"`
	Pace              string   `json:"pace"`
	SpecialFeatures   []string `json:"special_features"`
	MirrorSuggestions []string `json:"mirror_suggestions"`
}

// NeutralStyle is used when style analysis is unavailable.
func NeutralStyle() StyleProfile {
	return StyleProfile{
		Length:       "средняя",
		Formality:    "нейтральная",
		Emotionality: "умеренная",
		Structure:    "простая",
		Pace:         "размеренный",
	}
}

// ClassifierResult is the output of intent/style classification.
type ClassifierResult struct {
	Intent           Intent
	MemoryHints      []string
	RelevancePhrases []string
	Confidence       float64
	// Recommendation is nil when the classifier had no usable opinion.
	Recommendation *EmotionalState
	Style          *StyleProfile
}

// DefaultClassification is the degraded result used when the classifier fails.
func DefaultClassification() ClassifierResult {
	style := NeutralStyle()
	return ClassifierResult{Intent: IntentCasualChat, Confidence: 0, Style: &style}
}
