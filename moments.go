package reverie

import (
	"slices"
	"strings"
)

var (
	importantEmotions = []string{
		"любовь", "страсть", "нежность", "влюблённость", "тоска",
		"радость", "благодарность", "уязвимость", "доверие",
	}
	importantTones = []string{"интимный", "страстный", "поэтичный", "уязвимый"}

	momentMarkers = []string{
		"я люблю", "я чувствую", "я хочу тебя", "ты для меня", "запомни",
		"важно", "никогда не забывай", "всегда помни", "между нами",
	}
)

// Diary types an important moment is filed under.
const (
	DiaryIntimacy   = "intimacy"
	DiaryReflection = "reflection"
	DiaryMemories   = "memories"
)

// IsImportantMoment reports whether an exchange should be kept as a
// long-term memory: the turn moved the state into an important emotion or
// tone that prior did not carry, or either side of the exchange contains a
// marker phrase. A mood that merely persists is not a moment.
func IsImportantMoment(userMessage, response string, prior, state EmotionalState) bool {
	for _, e := range state.Emotion {
		if slices.Contains(importantEmotions, e) && !slices.Contains(prior.Emotion, e) {
			return true
		}
	}
	if state.Tone != prior.Tone && slices.Contains(importantTones, state.Tone) {
		return true
	}
	text := strings.ToLower(userMessage + "\n" + response)
	for _, m := range momentMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// DiaryTypeFor picks where an important moment belongs.
func DiaryTypeFor(state EmotionalState) string {
	switch {
	case state.Tone == "интимный" || state.Tone == "страстный" ||
		slices.Contains(state.Emotion, "страсть") || slices.Contains(state.Emotion, "влюблённость"):
		return DiaryIntimacy
	case state.Tone == "уязвимый" ||
		slices.Contains(state.Emotion, "уязвимость") || slices.Contains(state.Emotion, "тоска"):
		return DiaryReflection
	default:
		return DiaryMemories
	}
}

// FormatMoment renders an exchange for storage, with its tags.
func FormatMoment(userMessage, response string, state EmotionalState) (text string, tags []string) {
	text = "Пользователь: " + userMessage + "\n\nАстра: " + response
	tags = append([]string{state.Tone}, state.Emotion...)
	return text, dedupStrings(tags)
}
