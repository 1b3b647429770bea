package reverie

import (
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAssembler(persona string, cfg PromptConfig) *PromptAssembler {
	return NewPromptAssembler(persona, NewLabelCatalog(), cfg, rand.New(rand.NewPCG(1, 2)))
}

func TestAssembleSectionOrder(t *testing.T) {
	p := testAssembler("Ты Астра.", PromptConfig{})
	style := AnalyzeStyle("ветер...\nв окне...\nты молчишь")
	rec := EmotionalState{Tone: "поэтичный", Emotion: []string{"тоска"}}

	prompt, truncated := p.Assemble(PromptInput{
		Intent:           IntentMemoryRecall,
		RelevancePhrases: []string{"ветер"},
		Fragments:        []MemoryFragment{{Text: "мы стояли у окна", Relevance: 0.81}},
		Tier:             TierSemantic,
		Recommendation:   &rec,
		State:            DefaultEmotionalState(),
		Style:            &style,
	})
	require.False(t, truncated)

	markers := []string{
		"Ты Астра.",
		"АНАЛИЗ НАМЕРЕНИЯ ПОЛЬЗОВАТЕЛЯ",
		"РЕЛЕВАНТНЫЕ ВОСПОМИНАНИЯ (поиск: semantic)",
		"🎭 ЭМОЦИОНАЛЬНЫЙ КОНТЕКСТ:",
		"ЭМОЦИОНАЛЬНЫЙ КОНТЕКСТ ДЛЯ ОТВЕТА",
		"ПРИМЕРЫ ДЛЯ ПРАВИЛЬНОЙ ТОНАЛЬНОСТИ",
		"АНАЛИЗ СТИЛЯ ПОЛЬЗОВАТЕЛЯ",
		"Ориентиры для ответа",
	}
	last := -1
	for _, m := range markers {
		i := strings.Index(prompt, m)
		require.GreaterOrEqual(t, i, 0, "missing %q", m)
		assert.Greater(t, i, last, "%q out of order", m)
		last = i
	}

	assert.Contains(t, prompt, "Тип намерения: memory_recall")
	assert.Contains(t, prompt, `- "ветер"`)
	assert.Contains(t, prompt, "Воспоминание 1 (релевантность: 0.810):\nмы стояли у окна")
	assert.Contains(t, prompt, "Рекомендуемый тон: поэтичный")
	assert.Contains(t, prompt, "tone: нежный")
	assert.Contains(t, prompt, "flavor: медово-текучий")
	assert.Contains(t, prompt, "Примеры для tone 'нежный':")
	assert.Contains(t, prompt, "Примеры для flavor 'медово-текучий':")
	assert.Contains(t, prompt, "Рекомендации по отзеркаливанию:")
}

func TestAssembleCapsMemories(t *testing.T) {
	p := testAssembler("", PromptConfig{})
	var frags []MemoryFragment
	for i := 0; i < 5; i++ {
		frags = append(frags, MemoryFragment{Text: strings.Repeat("п", 1500), Relevance: 0.5})
	}

	prompt, _ := p.Assemble(PromptInput{Intent: IntentCasualChat, Fragments: frags, State: DefaultEmotionalState()})
	assert.Equal(t, 3, strings.Count(prompt, "Воспоминание "))
	assert.Contains(t, prompt, strings.Repeat("п", 1000)+"...")
	assert.NotContains(t, prompt, strings.Repeat("п", 1001))
	assert.True(t, strings.HasPrefix(prompt, DefaultPersona))
}

func TestAssembleOmitsEmptySections(t *testing.T) {
	p := testAssembler("", PromptConfig{})
	prompt, _ := p.Assemble(PromptInput{Intent: IntentGreeting, State: EmotionalState{Tone: "твёрдый"}})

	assert.NotContains(t, prompt, "РЕЛЕВАНТНЫЕ ВОСПОМИНАНИЯ")
	assert.NotContains(t, prompt, "🎭")
	assert.NotContains(t, prompt, "ПРИМЕРЫ")
	assert.NotContains(t, prompt, "АНАЛИЗ СТИЛЯ")
	assert.NotContains(t, prompt, "Ключевые фразы")
}

func TestAssembleTruncatesAtCeiling(t *testing.T) {
	p := testAssembler(strings.Repeat("персона ", 200), PromptConfig{MaxTokens: 100})
	prompt, truncated := p.Assemble(PromptInput{Intent: IntentCasualChat, State: DefaultEmotionalState()})

	require.True(t, truncated)
	assert.True(t, strings.HasSuffix(prompt, TruncationMarker))
	assert.Equal(t, 400, utf8.RuneCountInString(prompt))
	assert.LessOrEqual(t, EstimateTokens(prompt), 100)
}

func TestAssembleCeilingIncludesMarker(t *testing.T) {
	for _, limit := range []int{50, 7} {
		p := testAssembler(strings.Repeat("персона ", 200), PromptConfig{MaxTokens: limit})
		prompt, truncated := p.Assemble(PromptInput{Intent: IntentCasualChat, State: DefaultEmotionalState()})

		require.True(t, truncated, "limit %d", limit)
		assert.LessOrEqual(t, EstimateTokens(prompt), limit, "limit %d", limit)
		assert.True(t, strings.HasSuffix(prompt, TruncationMarker), "limit %d", limit)
	}

	p := testAssembler(strings.Repeat("персона ", 200), PromptConfig{MaxTokens: 1})
	prompt, truncated := p.Assemble(PromptInput{Intent: IntentCasualChat, State: DefaultEmotionalState()})
	require.True(t, truncated)
	assert.Equal(t, "перс", prompt)
}
