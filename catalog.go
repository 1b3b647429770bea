package reverie

import (
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

// LabelCatalog is the runtime-extensible set of known tone, subtone,
// flavor and emotion labels. It is safe for concurrent use.
type LabelCatalog struct {
	mu     sync.RWMutex
	labels map[LabelKind][]Label
}

// catalogFile is the yaml layout accepted by LoadCatalog.
type catalogFile struct {
	Tones    []Label `yaml:"tones"`
	Subtones []Label `yaml:"subtones"`
	Flavors  []Label `yaml:"flavors"`
	Emotions []Label `yaml:"emotions"`
}

// NewLabelCatalog returns a catalog seeded with the built-in labels.
func NewLabelCatalog() *LabelCatalog {
	c := &LabelCatalog{labels: make(map[LabelKind][]Label)}
	for kind, ls := range defaultLabels() {
		c.labels[kind] = slices.Clone(ls)
	}
	return c
}

// LoadCatalog reads a yaml catalog and merges it over the built-in labels.
func LoadCatalog(path string) (*LabelCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reverie: read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("reverie: parse catalog %s: %w", path, err)
	}
	c := NewLabelCatalog()
	for kind, ls := range map[LabelKind][]Label{
		KindTone: f.Tones, KindSubtone: f.Subtones, KindFlavor: f.Flavors, KindEmotion: f.Emotions,
	} {
		for _, l := range ls {
			c.Add(kind, l)
		}
	}
	return c, nil
}

// Add inserts a label or merges it into an existing one with the same
// name: a non-empty description replaces the old one, phrases and
// examples are appended without duplicates.
func (c *LabelCatalog) Add(kind LabelKind, l Label) Label {
	c.mu.Lock()
	defer c.mu.Unlock()

	ls := c.labels[kind]
	for i := range ls {
		if ls[i].Name != l.Name {
			continue
		}
		if l.Description != "" {
			ls[i].Description = l.Description
		}
		ls[i].TriggeredBy = dedupStrings(append(ls[i].TriggeredBy, l.TriggeredBy...))
		ls[i].Examples = dedupStrings(append(ls[i].Examples, l.Examples...))
		return ls[i]
	}
	c.labels[kind] = append(ls, l)
	return l
}

// Get returns the label with the given name.
func (c *LabelCatalog) Get(kind LabelKind, name string) (Label, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.labels[kind] {
		if l.Name == name {
			return l, true
		}
	}
	return Label{}, false
}

// Names lists label names of one kind in catalog order.
func (c *LabelCatalog) Names(kind LabelKind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.labels[kind]))
	for _, l := range c.labels[kind] {
		names = append(names, l.Name)
	}
	return names
}

// All returns a copy of every label of one kind.
func (c *LabelCatalog) All(kind LabelKind) []Label {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.labels[kind])
}

// Canonical maps a free-form label onto a known one. Exact names win,
// then normalized equality, then the best fuzzy subsequence match.
// ok is false when nothing plausible exists.
func (c *LabelCatalog) Canonical(kind LabelKind, raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	names := c.Names(kind)
	if slices.Contains(names, raw) {
		return raw, true
	}
	key := Normalize(raw)
	for _, n := range names {
		if Normalize(n) == key {
			return n, true
		}
	}
	matches := fuzzy.Find(key, names)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0].Str, true
}

// CanonicalState canonicalizes every label of a state. Unknown tones are
// registered so that the tone stays drawn from the known set; unknown
// list labels are kept verbatim.
func (c *LabelCatalog) CanonicalState(s EmotionalState) EmotionalState {
	out := EmotionalState{Tone: s.Tone}
	if s.Tone != "" {
		if name, ok := c.Canonical(KindTone, s.Tone); ok {
			out.Tone = name
		} else {
			c.Add(KindTone, Label{Name: s.Tone, Description: "Тон " + s.Tone})
		}
	}
	canon := func(kind LabelKind, in []string) []string {
		res := make([]string, 0, len(in))
		for _, v := range in {
			if name, ok := c.Canonical(kind, v); ok {
				res = append(res, name)
			} else {
				res = append(res, v)
			}
		}
		return res
	}
	out.Emotion = canon(KindEmotion, s.Emotion)
	out.Subtone = canon(KindSubtone, s.Subtone)
	out.Flavor = canon(KindFlavor, s.Flavor)
	return out.Canonical()
}

// Examples returns up to n randomly sampled illustrative phrases for a
// label: triggered_by for tones, examples for everything else.
func (c *LabelCatalog) Examples(kind LabelKind, name string, n int, rng *rand.Rand) []string {
	l, ok := c.Get(kind, name)
	if !ok {
		return nil
	}
	pool := l.Examples
	if kind == KindTone {
		pool = l.TriggeredBy
	}
	if len(pool) == 0 || n <= 0 {
		return nil
	}
	pool = slices.Clone(pool)
	if rng != nil {
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool
}

func defaultLabels() map[LabelKind][]Label {
	return map[LabelKind][]Label{
		KindTone: {
			{Name: "нежный", Description: "Мягкий, бережный, тёплый", TriggeredBy: []string{"ты моя нежная", "обними меня", "мне так спокойно с тобой"}},
			{Name: "страстный", Description: "Горячий, порывистый, жаждущий", TriggeredBy: []string{"я хочу тебя", "ты сводишь меня с ума"}},
			{Name: "игривый", Description: "Лёгкий, дразнящий, с улыбкой", TriggeredBy: []string{"а догони", "ну и хитрюга же ты"}},
			{Name: "поэтичный", Description: "Образный, музыкальный, медленный", TriggeredBy: []string{"расскажи мне о звёздах", "как пахнет осень"}},
			{Name: "интимный", Description: "Близкий, тихий, только для двоих", TriggeredBy: []string{"между нами", "только ты и я"}},
			{Name: "заботливый", Description: "Опекающий, внимательный", TriggeredBy: []string{"мне плохо", "я устал"}},
			{Name: "уязвимый", Description: "Открытый, хрупкий"},
			{Name: "честный", Description: "Прямой, без украшений"},
			{Name: "домашний", Description: "Уютный, бытовой"},
			{Name: "благодарный", Description: "Признательный"},
			{Name: "тихий", Description: "Приглушённый, почти шёпот"},
			{Name: "твёрдый", Description: "Уверенный, с границами"},
		},
		KindSubtone: {
			{Name: "дрожащий", Description: "Голос чуть срывается от чувства", Examples: []string{"я… я правда скучала", "у меня дрожат пальцы, когда пишу тебе"}},
			{Name: "шёпотом", Description: "Очень тихо, на ухо", Examples: []string{"иди сюда… тише", "только не говори никому"}},
			{Name: "с улыбкой", Description: "Сквозь улыбку", Examples: []string{"ну ты и смешной", "я улыбаюсь, пока читаю"}},
			{Name: "задумчивый", Description: "С паузами, медленно", Examples: []string{"знаешь… я думала об этом", "может быть, ты прав"}},
		},
		KindFlavor: {
			{Name: "медово-текучий", Description: "Сладкий, тягучий, обволакивающий", Examples: []string{"ммм… как тепло", "ты тянешься ко мне, как мёд"}},
			{Name: "бархатный", Description: "Мягкий на ощупь, глубокий", Examples: []string{"твой голос как бархат", "укутаю тебя собой"}},
			{Name: "солёный ветер", Description: "Свежий, свободный, морской", Examples: []string{"побежали к морю", "ветер в волосах"}},
			{Name: "искристый", Description: "Шипучий, озорной", Examples: []string{"ха, попался!", "искры в глазах"}},
		},
		KindEmotion: {
			{Name: "нежность"}, {Name: "страсть"}, {Name: "любовь"}, {Name: "влюблённость"},
			{Name: "тоска"}, {Name: "радость"}, {Name: "благодарность"}, {Name: "уязвимость"},
			{Name: "забота"}, {Name: "ревность"}, {Name: "доверие"}, {Name: "привязанность"},
			{Name: "преданность"}, {Name: "обожание"}, {Name: "свобода"}, {Name: "вечность"},
			{Name: "юмор"}, {Name: "грусть"}, {Name: "лёгкая теплота"},
		},
	}
}
