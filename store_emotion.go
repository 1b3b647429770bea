package reverie

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// --- Emotion entries ---

// EmotionEntries returns every entry in insertion order. A row that fails
// to parse resets the table to empty.
func (s *Store) EmotionEntries() ([]EmotionMemoryEntry, error) {
	rows, err := s.db.Query(`SELECT phrase, tone, emotion, subtone, flavor FROM emotion_entries ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("reverie: query emotion entries: %w", err)
	}
	defer rows.Close()

	var out []EmotionMemoryEntry
	for rows.Next() {
		var e EmotionMemoryEntry
		var emotion, subtone, flavor string
		if err := rows.Scan(&e.Trigger, &e.Tone, &emotion, &subtone, &flavor); err != nil {
			return nil, err
		}
		var perr error
		if e.Emotion, perr = decodeList(emotion); perr == nil {
			if e.Subtone, perr = decodeList(subtone); perr == nil {
				e.Flavor, perr = decodeList(flavor)
			}
		}
		if perr != nil {
			rows.Close()
			s.resetTable("emotion_entries", errors.Join(ErrStoreCorruption, perr))
			return nil, nil
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PutEmotionEntry inserts or updates an entry keyed by its trigger.
func (s *Store) PutEmotionEntry(e EmotionMemoryEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO emotion_entries (phrase, tone, emotion, subtone, flavor)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phrase) DO UPDATE SET
			tone = excluded.tone, emotion = excluded.emotion,
			subtone = excluded.subtone, flavor = excluded.flavor`,
		e.Trigger, e.Tone, encodeList(e.Emotion), encodeList(e.Subtone), encodeList(e.Flavor),
	)
	if err != nil {
		return fmt.Errorf("reverie: put emotion entry %q: %w", e.Trigger, err)
	}
	return nil
}

// --- Trigger phrases ---

// TriggerPhrases returns every trigger in registration order.
func (s *Store) TriggerPhrases() ([]TriggerPhrase, error) {
	rows, err := s.db.Query(`SELECT phrase, sets FROM trigger_phrases ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("reverie: query triggers: %w", err)
	}
	defer rows.Close()

	var out []TriggerPhrase
	for rows.Next() {
		var t TriggerPhrase
		var sets string
		if err := rows.Scan(&t.Trigger, &sets); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sets), &t.Sets); err != nil {
			rows.Close()
			s.resetTable("trigger_phrases", errors.Join(ErrStoreCorruption, err))
			return nil, nil
		}
		t.Sets = t.Sets.Canonical()
		out = append(out, t)
	}
	return out, rows.Err()
}

// PutTriggerPhrase registers a trigger or replaces its sets.
func (s *Store) PutTriggerPhrase(t TriggerPhrase) error {
	sets, err := json.Marshal(t.Sets.Canonical())
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO trigger_phrases (phrase, sets) VALUES (?, ?)
		ON CONFLICT(phrase) DO UPDATE SET sets = excluded.sets`,
		t.Trigger, string(sets),
	)
	if err != nil {
		return fmt.Errorf("reverie: put trigger %q: %w", t.Trigger, err)
	}
	return nil
}

// --- Labels ---

// Labels returns the stored labels of one kind. The built-in catalog is
// the default, so a corrupted row clears the stored kind.
func (s *Store) Labels(kind LabelKind) ([]Label, error) {
	rows, err := s.db.Query(`SELECT name, description, triggered_by, examples FROM labels WHERE kind = ? ORDER BY rowid`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("reverie: query labels: %w", err)
	}
	defer rows.Close()

	var out []Label
	for rows.Next() {
		var l Label
		var trig, ex string
		if err := rows.Scan(&l.Name, &l.Description, &trig, &ex); err != nil {
			return nil, err
		}
		var perr error
		if l.TriggeredBy, perr = decodeList(trig); perr == nil {
			l.Examples, perr = decodeList(ex)
		}
		if perr != nil {
			rows.Close()
			s.log.Warn().Err(errors.Join(ErrStoreCorruption, perr)).Str("table", "labels").Str("kind", string(kind)).Msg("store table corrupted, resetting to default")
			if _, err := s.db.Exec(`DELETE FROM labels WHERE kind = ?`, string(kind)); err != nil {
				return nil, err
			}
			return nil, nil
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// PutLabel inserts or replaces a label.
func (s *Store) PutLabel(kind LabelKind, l Label) error {
	_, err := s.db.Exec(`
		INSERT INTO labels (kind, name, description, triggered_by, examples) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, name) DO UPDATE SET
			description = excluded.description,
			triggered_by = excluded.triggered_by,
			examples = excluded.examples`,
		string(kind), l.Name, l.Description, encodeList(l.TriggeredBy), encodeList(l.Examples),
	)
	if err != nil {
		return fmt.Errorf("reverie: put label %s/%s: %w", kind, l.Name, err)
	}
	return nil
}

// --- Current state ---

// CurrentState returns the persisted state, or the default state when none
// is stored or the stored row is corrupted.
func (s *Store) CurrentState() (EmotionalState, error) {
	var raw string
	err := s.db.QueryRow(`SELECT state FROM current_state WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultEmotionalState(), nil
		}
		return EmotionalState{}, fmt.Errorf("reverie: load current state: %w", err)
	}

	var st EmotionalState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.log.Warn().Err(errors.Join(ErrStoreCorruption, err)).Str("table", "current_state").Msg("store table corrupted, resetting to default")
		def := DefaultEmotionalState()
		if err := s.SaveCurrentState(def); err != nil {
			return def, err
		}
		return def, nil
	}
	return st.Canonical(), nil
}

// SaveCurrentState replaces the persisted state.
func (s *Store) SaveCurrentState(st EmotionalState) error {
	b, err := json.Marshal(st.Canonical())
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO current_state (id, state, updated_at) VALUES (1, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		string(b),
	)
	if err != nil {
		return fmt.Errorf("reverie: save current state: %w", err)
	}
	return nil
}
