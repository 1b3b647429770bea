package reverie

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// WarmthFiller is merged into the emotion list when the previous and new
// emotions share nothing, so the mood bridges instead of jumping.
const WarmthFiller = "лёгкая теплота"

// ResolutionSource records which rule produced a resolved state.
type ResolutionSource string

const (
	SourceTrigger        ResolutionSource = "trigger"
	SourceMarker         ResolutionSource = "marker"
	SourceFuzzy          ResolutionSource = "fuzzy"
	SourceRecommendation ResolutionSource = "recommendation"
	SourcePrior          ResolutionSource = "prior"
)

// Resolution is the result of EmotionEngine.Resolve.
type Resolution struct {
	State   EmotionalState
	Source  ResolutionSource
	Matched string  // trigger or entry key that matched
	Score   float64 // similarity for fuzzy matches
}

// EmotionEngine resolves user messages to emotional states and learns new
// phrase associations.
type EmotionEngine struct {
	repo    EmotionRepository
	catalog *LabelCatalog
	cfg     EmotionConfig
	log     zerolog.Logger
}

// NewEmotionEngine builds an engine over repo. Zero thresholds in cfg take
// their defaults.
func NewEmotionEngine(repo EmotionRepository, catalog *LabelCatalog, cfg EmotionConfig, logger zerolog.Logger) *EmotionEngine {
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = 0.7
	}
	if cfg.DedupThreshold == 0 {
		cfg.DedupThreshold = 0.75
	}
	if catalog == nil {
		catalog = NewLabelCatalog()
	}
	return &EmotionEngine{repo: repo, catalog: catalog, cfg: cfg, log: logger}
}

// Autonomous reports whether autonomous learning is enabled.
func (e *EmotionEngine) Autonomous() bool { return e.cfg.Autonomous }

// SetAutonomous toggles autonomous learning.
func (e *EmotionEngine) SetAutonomous(on bool) { e.cfg.Autonomous = on }

// Catalog returns the engine's label catalog.
func (e *EmotionEngine) Catalog() *LabelCatalog { return e.catalog }

// Resolve maps a message to a state. Rules in priority order: registered
// trigger phrases, explicit markers, fuzzy match against learned entries.
// When nothing matches, prior is returned with SourcePrior. Repository
// read errors are logged and the rule is skipped.
func (e *EmotionEngine) Resolve(message string, prior EmotionalState) Resolution {
	prior = prior.Canonical()

	if t, ok := e.matchTrigger(message); ok {
		return Resolution{State: t.Sets.Canonical(), Source: SourceTrigger, Matched: t.Trigger, Score: 1}
	}

	if m, ok := DetectMarkers(message); ok {
		return Resolution{State: fillFrom(m, prior), Source: SourceMarker}
	}

	if entry, score, ok := e.matchEntry(Normalize(message)); ok {
		return Resolution{State: fillFrom(entry.State(), prior), Source: SourceFuzzy, Matched: entry.Trigger, Score: score}
	}

	return Resolution{State: prior, Source: SourcePrior}
}

// matchTrigger scans every trigger phrase against the raw message.
// When several match, the longest trigger wins; equal lengths go to the
// earliest registered.
func (e *EmotionEngine) matchTrigger(message string) (TriggerPhrase, bool) {
	triggers, err := e.repo.TriggerPhrases()
	if err != nil {
		e.log.Warn().Err(err).Msg("load trigger phrases")
		return TriggerPhrase{}, false
	}

	lower := strings.ToLower(message)
	var best TriggerPhrase
	bestLen := -1
	for _, t := range triggers {
		needle := strings.ToLower(strings.TrimSpace(t.Trigger))
		if needle == "" || !strings.Contains(lower, needle) {
			continue
		}
		if n := utf8.RuneCountInString(needle); n > bestLen {
			best, bestLen = t, n
		}
	}
	return best, bestLen >= 0
}

// matchEntry finds the learned entry most similar to a normalized message.
func (e *EmotionEngine) matchEntry(key string) (EmotionMemoryEntry, float64, bool) {
	if key == "" {
		return EmotionMemoryEntry{}, 0, false
	}
	entries, err := e.repo.EmotionEntries()
	if err != nil {
		e.log.Warn().Err(err).Msg("load emotion entries")
		return EmotionMemoryEntry{}, 0, false
	}

	keys := make([]string, len(entries))
	for i, en := range entries {
		keys[i] = en.Trigger
	}
	m, ok := BestMatch(key, keys)
	if !ok || m.Score < e.cfg.MatchThreshold {
		return EmotionMemoryEntry{}, 0, false
	}
	return entries[m.Index], m.Score, true
}

// fillFrom replaces every empty field of s with prior's.
func fillFrom(s, prior EmotionalState) EmotionalState {
	if s.Tone == "" {
		s.Tone = prior.Tone
	}
	if len(s.Emotion) == 0 {
		s.Emotion = prior.Emotion
	}
	if len(s.Subtone) == 0 {
		s.Subtone = prior.Subtone
	}
	if len(s.Flavor) == 0 {
		s.Flavor = prior.Flavor
	}
	return s.Canonical()
}

// SmoothTransition moves from prior toward target without erasing the old
// feeling: tone switches at once, emotions are merged (with WarmthFiller
// bridging disjoint sets), and subtone and flavor are replaced whenever
// the target names a different set.
func SmoothTransition(target, prior EmotionalState) EmotionalState {
	target, prior = target.Canonical(), prior.Canonical()
	out := EmotionalState{Tone: target.Tone}
	if out.Tone == "" {
		out.Tone = prior.Tone
	}

	emotions := slices.Clone(prior.Emotion)
	if len(prior.Emotion) > 0 && len(target.Emotion) > 0 && disjoint(prior.Emotion, target.Emotion) {
		emotions = append(emotions, WarmthFiller)
	}
	out.Emotion = append(emotions, target.Emotion...)

	out.Subtone = prior.Subtone
	if len(target.Subtone) > 0 && !sameSet(target.Subtone, prior.Subtone) {
		out.Subtone = target.Subtone
	}
	out.Flavor = prior.Flavor
	if len(target.Flavor) > 0 && !sameSet(target.Flavor, prior.Flavor) {
		out.Flavor = target.Flavor
	}
	return out.Canonical()
}

func disjoint(a, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !slices.Contains(b, v) {
			return false
		}
	}
	return true
}

// Learn records that phrase evokes state, when autonomous learning is on.
// It reports whether the store was written.
func (e *EmotionEngine) Learn(phrase string, state EmotionalState) (bool, error) {
	if !e.cfg.Autonomous {
		return false, nil
	}
	return e.AddEmotionToPhrase(phrase, state)
}

// LearnFromMessage is the autonomous hook run after a successful turn:
// emotions named in the message are associated with the whole phrase.
// Messages that name no emotion teach nothing.
func (e *EmotionEngine) LearnFromMessage(message string) (bool, error) {
	if !e.cfg.Autonomous {
		return false, nil
	}
	emotions := EmotionsIn(message)
	if len(emotions) == 0 {
		return false, nil
	}
	learned := EmotionalState{Emotion: emotions}
	if m, ok := DetectMarkers(message); ok {
		learned.Tone = m.Tone
	}
	return e.AddEmotionToPhrase(message, learned)
}

// AddEmotionToPhrase upserts the entry for a phrase regardless of the
// autonomous flag. The key is the normalized phrase; an existing entry
// whose key is within the dedup threshold is updated instead of adding a
// near-duplicate. Empty fields of state leave the stored fields untouched,
// and nothing is written when the result equals what is stored.
func (e *EmotionEngine) AddEmotionToPhrase(phrase string, state EmotionalState) (bool, error) {
	key := Normalize(phrase)
	if key == "" {
		return false, nil
	}
	state = e.catalog.CanonicalState(state)

	entries, err := e.repo.EmotionEntries()
	if err != nil {
		return false, fmt.Errorf("reverie: load emotion entries: %w", err)
	}

	idx := slices.IndexFunc(entries, func(en EmotionMemoryEntry) bool { return en.Trigger == key })
	if idx < 0 {
		keys := make([]string, len(entries))
		for i, en := range entries {
			keys[i] = en.Trigger
		}
		if m, ok := BestMatch(key, keys); ok && m.Score >= e.cfg.DedupThreshold {
			idx = m.Index
		}
	}

	if idx < 0 {
		entry := EmotionMemoryEntry{
			Trigger: key,
			Tone:    state.Tone,
			Emotion: state.Emotion,
			Subtone: state.Subtone,
			Flavor:  state.Flavor,
		}
		if err := e.repo.PutEmotionEntry(entry); err != nil {
			return false, err
		}
		e.log.Info().Str("trigger", key).Strs("emotion", entry.Emotion).Msg("learned new phrase")
		return true, nil
	}

	current := entries[idx]
	updated := cloneEntry(current)
	if state.Tone != "" {
		updated.Tone = state.Tone
	}
	if len(state.Emotion) > 0 {
		updated.Emotion = state.Emotion
	}
	if len(state.Subtone) > 0 {
		updated.Subtone = state.Subtone
	}
	if len(state.Flavor) > 0 {
		updated.Flavor = state.Flavor
	}
	if updated.State().Equal(current.State()) {
		return false, nil
	}
	if err := e.repo.PutEmotionEntry(updated); err != nil {
		return false, err
	}
	e.log.Info().Str("trigger", updated.Trigger).Strs("emotion", updated.Emotion).Msg("updated phrase")
	return true, nil
}

// AddTrigger registers a hard-override trigger phrase.
func (e *EmotionEngine) AddTrigger(trigger string, sets EmotionalState) error {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return fmt.Errorf("reverie: empty trigger")
	}
	return e.repo.PutTriggerPhrase(TriggerPhrase{Trigger: trigger, Sets: e.catalog.CanonicalState(sets)})
}

// AddLabel extends the catalog and persists the label.
func (e *EmotionEngine) AddLabel(kind LabelKind, l Label) error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("reverie: empty %s label", kind)
	}
	merged := e.catalog.Add(kind, l)
	return e.repo.PutLabel(kind, merged)
}

// LoadLabels merges persisted labels into the catalog.
func (e *EmotionEngine) LoadLabels() error {
	for _, kind := range []LabelKind{KindTone, KindSubtone, KindFlavor, KindEmotion} {
		ls, err := e.repo.Labels(kind)
		if err != nil {
			return err
		}
		for _, l := range ls {
			e.catalog.Add(kind, l)
		}
	}
	return nil
}
