package reverie

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsImportantMoment(t *testing.T) {
	plain := EmotionalState{Tone: "игривый", Emotion: []string{"юмор"}}

	assert.True(t, IsImportantMoment("ну привет", "привет", plain, EmotionalState{Emotion: []string{"юмор", "любовь"}}))
	assert.True(t, IsImportantMoment("ну привет", "привет", plain, EmotionalState{Tone: "уязвимый"}))
	assert.True(t, IsImportantMoment("Запомни этот вечер", "хорошо", plain, plain))
	assert.False(t, IsImportantMoment("который час", "почти полночь", plain, plain))
}

func TestIsImportantMomentNeedsAChange(t *testing.T) {
	calm := DefaultEmotionalState()
	assert.False(t, IsImportantMoment("как день", "спокойно", calm, calm), "a lingering emotion is not a moment")

	warmer := SmoothTransition(EmotionalState{Emotion: []string{"радость"}}, calm)
	assert.True(t, IsImportantMoment("как день", "чудесно", calm, warmer))
	assert.False(t, IsImportantMoment("а вечер", "тоже", warmer, SmoothTransition(EmotionalState{}, warmer)))

	intimate := EmotionalState{Tone: "интимный"}
	assert.False(t, IsImportantMoment("ещё", "да", intimate, intimate))
}

func TestDiaryTypeFor(t *testing.T) {
	assert.Equal(t, DiaryIntimacy, DiaryTypeFor(EmotionalState{Tone: "интимный"}))
	assert.Equal(t, DiaryIntimacy, DiaryTypeFor(EmotionalState{Emotion: []string{"страсть"}}))
	assert.Equal(t, DiaryReflection, DiaryTypeFor(EmotionalState{Emotion: []string{"тоска"}}))
	assert.Equal(t, DiaryMemories, DiaryTypeFor(DefaultEmotionalState()))
}

func TestFormatMoment(t *testing.T) {
	text, tags := FormatMoment("я скучал", "и я", EmotionalState{Tone: "нежный", Emotion: []string{"тоска", "нежность", "тоска"}})
	assert.Equal(t, "Пользователь: я скучал\n\nАстра: и я", text)
	assert.Equal(t, []string{"нежный", "тоска", "нежность"}, tags)
}
