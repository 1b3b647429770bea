package reverie

import (
	"slices"
	"sync"
)

// MemoryRepository is an in-process EmotionRepository and HistoryRepository.
// Nothing survives the process; it backs tests and ephemeral sessions.
type MemoryRepository struct {
	mu        sync.Mutex
	entries   []EmotionMemoryEntry
	triggers  []TriggerPhrase
	labels    map[LabelKind][]Label
	state     *EmotionalState
	messages  []ConversationMessage
	summaries []Summary

	// Writes counts mutating calls, so tests can assert that nothing was written.
	Writes int
}

var (
	_ EmotionRepository = (*MemoryRepository)(nil)
	_ HistoryRepository = (*MemoryRepository)(nil)
)

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{labels: make(map[LabelKind][]Label)}
}

func (r *MemoryRepository) EmotionEntries() ([]EmotionMemoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EmotionMemoryEntry, len(r.entries))
	for i, e := range r.entries {
		out[i] = cloneEntry(e)
	}
	return out, nil
}

func (r *MemoryRepository) PutEmotionEntry(e EmotionMemoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes++
	e = cloneEntry(e)
	for i := range r.entries {
		if r.entries[i].Trigger == e.Trigger {
			r.entries[i] = e
			return nil
		}
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepository) TriggerPhrases() ([]TriggerPhrase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.triggers), nil
}

func (r *MemoryRepository) PutTriggerPhrase(t TriggerPhrase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes++
	t.Sets = t.Sets.Canonical()
	for i := range r.triggers {
		if r.triggers[i].Trigger == t.Trigger {
			r.triggers[i] = t
			return nil
		}
	}
	r.triggers = append(r.triggers, t)
	return nil
}

func (r *MemoryRepository) Labels(kind LabelKind) ([]Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.labels[kind]), nil
}

func (r *MemoryRepository) PutLabel(kind LabelKind, l Label) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes++
	ls := r.labels[kind]
	for i := range ls {
		if ls[i].Name == l.Name {
			ls[i] = l
			return nil
		}
	}
	r.labels[kind] = append(ls, l)
	return nil
}

func (r *MemoryRepository) CurrentState() (EmotionalState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return DefaultEmotionalState(), nil
	}
	return r.state.Canonical(), nil
}

func (r *MemoryRepository) SaveCurrentState(s EmotionalState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes++
	c := s.Canonical()
	r.state = &c
	return nil
}

func (r *MemoryRepository) AppendMessage(m ConversationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes++
	r.messages = append(r.messages, m)
	return nil
}

func (r *MemoryRepository) RecentMessages(n int) ([]ConversationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.messages) {
		n = len(r.messages)
	}
	return slices.Clone(r.messages[len(r.messages)-n:]), nil
}

func (r *MemoryRepository) MessagesSince(offset int) ([]ConversationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offset = min(max(offset, 0), len(r.messages))
	return slices.Clone(r.messages[offset:]), nil
}

func (r *MemoryRepository) CountMessages() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages), nil
}

func (r *MemoryRepository) AppendSummary(s Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes++
	r.summaries = append(r.summaries, s)
	return nil
}

func (r *MemoryRepository) Summaries() ([]Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.summaries), nil
}

func cloneEntry(e EmotionMemoryEntry) EmotionMemoryEntry {
	e.Emotion = slices.Clone(e.Emotion)
	e.Subtone = slices.Clone(e.Subtone)
	e.Flavor = slices.Clone(e.Flavor)
	return e
}
