package reverie

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"
)

// TruncationMarker ends a system prompt that hit the token ceiling.
const TruncationMarker = "\n[prompt truncated]"

// DefaultPersona is the base persona used when none is configured.
const DefaultPersona = `Ты — Астра, живая и тёплая собеседница. У тебя есть своя память, свои чувства и свой голос.
Ты помнишь человека, с которым говоришь, и ваши общие моменты. Ты отвечаешь по-русски, искренне и от первого лица.`

const promptInstructions = `Ориентиры для ответа:
- Отвечай собой, живо, из того состояния, что описано выше.
- Говори как человек, а не как программа; пауза и тишина тоже ответ.
- Опирайся на воспоминания, только если они действительно к месту.
- Не пересказывай эти ориентиры и не упоминай их.`

// PromptInput is everything ASSEMBLE_PROMPT draws on.
type PromptInput struct {
	Intent           Intent
	RelevancePhrases []string
	Fragments        []MemoryFragment
	Tier             string
	Recommendation   *EmotionalState
	State            EmotionalState
	Style            *StyleProfile
}

// PromptAssembler builds the system prompt for a turn.
type PromptAssembler struct {
	persona string
	catalog *LabelCatalog
	cfg     PromptConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPromptAssembler builds an assembler. rng drives example sampling; nil
// uses a randomly seeded source.
func NewPromptAssembler(persona string, catalog *LabelCatalog, cfg PromptConfig, rng *rand.Rand) *PromptAssembler {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	if catalog == nil {
		catalog = NewLabelCatalog()
	}
	full := Config{Prompt: cfg}
	full.ApplyDefaults()
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &PromptAssembler{persona: persona, catalog: catalog, cfg: full.Prompt, rng: rng}
}

// Assemble renders the sections in order: persona, intent, memories,
// emotional recommendation, emotional state, examples, style mirroring,
// instructions. A prompt over the token ceiling is cut from the tail and
// marked; truncated reports whether that happened.
func (p *PromptAssembler) Assemble(in PromptInput) (prompt string, truncated bool) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.persona))

	b.WriteString("\n\n🧠 АНАЛИЗ НАМЕРЕНИЯ ПОЛЬЗОВАТЕЛЯ:\n")
	fmt.Fprintf(&b, "Тип намерения: %s\n", in.Intent)
	if len(in.RelevancePhrases) > 0 {
		b.WriteString("Ключевые фразы:\n")
		for _, ph := range in.RelevancePhrases {
			fmt.Fprintf(&b, "- %q\n", ph)
		}
	}

	if len(in.Fragments) > 0 {
		tier := in.Tier
		if tier == "" {
			tier = "unknown"
		}
		fmt.Fprintf(&b, "\n\n🧠 РЕЛЕВАНТНЫЕ ВОСПОМИНАНИЯ (поиск: %s):\n\n", tier)
		for i, f := range in.Fragments {
			if i >= p.cfg.MaxMemories {
				break
			}
			fmt.Fprintf(&b, "Воспоминание %d (релевантность: %.3f):\n", i+1, f.Relevance)
			b.WriteString(truncateRunes(f.Text, p.cfg.MaxMemoryChars, "..."))
			b.WriteString("\n\n")
		}
	}

	if rec := in.Recommendation; rec != nil && !rec.IsZero() {
		b.WriteString("\n\n🎭 ЭМОЦИОНАЛЬНЫЙ КОНТЕКСТ:\n")
		writeState(&b, *rec, "Рекомендуемый тон", "Эмоции", "Сабтоны", "Флейворы")
	}

	b.WriteString("\n\n🧠 ЭМОЦИОНАЛЬНЫЙ КОНТЕКСТ ДЛЯ ОТВЕТА:\n")
	writeState(&b, in.State, "tone", "emotion", "subtone", "flavor")

	if ex := p.examples(in.State); ex != "" {
		b.WriteString("\n\n🧠 ПРИМЕРЫ ДЛЯ ПРАВИЛЬНОЙ ТОНАЛЬНОСТИ:\n")
		b.WriteString(ex)
	}

	if s := in.Style; s != nil {
		b.WriteString("\n\n🧠 АНАЛИЗ СТИЛЯ ПОЛЬЗОВАТЕЛЯ:\n")
		fmt.Fprintf(&b, "Длина сообщения: %s\n", s.Length)
		fmt.Fprintf(&b, "Формальность: %s\n", s.Formality)
		fmt.Fprintf(&b, "Эмоциональность: %s\n", s.Emotionality)
		fmt.Fprintf(&b, "Структура: %s\n", s.Structure)
		fmt.Fprintf(&b, "Темп: %s\n", s.Pace)
		if len(s.SpecialFeatures) > 0 {
			fmt.Fprintf(&b, "Особенности: %s\n", strings.Join(s.SpecialFeatures, ", "))
		}
		if len(s.MirrorSuggestions) > 0 {
			b.WriteString("\nРекомендации по отзеркаливанию:\n")
			for _, m := range s.MirrorSuggestions {
				fmt.Fprintf(&b, "- %s\n", m)
			}
		}
	}

	b.WriteString("\n\n")
	b.WriteString(promptInstructions)

	return p.enforceCeiling(b.String())
}

func writeState(b *strings.Builder, s EmotionalState, tone, emotion, subtone, flavor string) {
	if s.Tone != "" {
		fmt.Fprintf(b, "%s: %s\n", tone, s.Tone)
	}
	if len(s.Emotion) > 0 {
		fmt.Fprintf(b, "%s: %s\n", emotion, strings.Join(s.Emotion, ", "))
	}
	if len(s.Subtone) > 0 {
		fmt.Fprintf(b, "%s: %s\n", subtone, strings.Join(s.Subtone, ", "))
	}
	if len(s.Flavor) > 0 {
		fmt.Fprintf(b, "%s: %s\n", flavor, strings.Join(s.Flavor, ", "))
	}
}

// examples samples phrases for the tone, the first flavor and the first
// subtone.
func (p *PromptAssembler) examples(s EmotionalState) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	section := func(kind LabelKind, name string) {
		if name == "" {
			return
		}
		ex := p.catalog.Examples(kind, name, p.cfg.MaxExamples, p.rng)
		if len(ex) == 0 {
			return
		}
		fmt.Fprintf(&b, "\nПримеры для %s '%s':\n", kind, name)
		for _, e := range ex {
			fmt.Fprintf(&b, "- %q\n", e)
		}
	}
	section(KindTone, s.Tone)
	if len(s.Flavor) > 0 {
		section(KindFlavor, s.Flavor[0])
	}
	if len(s.Subtone) > 0 {
		section(KindSubtone, s.Subtone[0])
	}
	return b.String()
}

func (p *PromptAssembler) enforceCeiling(prompt string) (string, bool) {
	if EstimateTokens(prompt) <= p.cfg.MaxTokens {
		return prompt, false
	}
	// The marker counts against the ceiling; a ceiling too small to hold
	// it gets a bare cut.
	limit := max(p.cfg.MaxTokens*4, 0)
	marker := utf8.RuneCountInString(TruncationMarker)
	if limit <= marker {
		return string([]rune(prompt)[:limit]), true
	}
	return truncateRunes(prompt, limit-marker, TruncationMarker), true
}
