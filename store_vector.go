package reverie

import (
	"fmt"
	"time"
)

// Fragment is a stored piece of long-form memory text.
type Fragment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

type fragmentWithVector struct {
	Fragment
	Vector []float32
}

// InsertFragment stores a fragment and, when vec is non-nil, its vector.
func (s *Store) InsertFragment(f Fragment, vec []float32, model string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO fragments (id, text, source, tags, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Text, f.Source, encodeList(f.Tags), formatTime(f.CreatedAt)); err != nil {
		return fmt.Errorf("reverie: insert fragment: %w", err)
	}
	if vec != nil {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO vectors (fragment_id, vector, embedding_model) VALUES (?, ?, ?)`,
			f.ID, EncodeVector(vec), model); err != nil {
			return fmt.Errorf("reverie: insert vector: %w", err)
		}
	}
	return tx.Commit()
}

// FragmentsWithVectors loads every fragment that has a vector.
func (s *Store) FragmentsWithVectors() ([]fragmentWithVector, error) {
	rows, err := s.db.Query(`
		SELECT f.id, f.text, f.source, f.tags, f.created_at, v.vector
		FROM fragments f
		JOIN vectors v ON v.fragment_id = f.id
		ORDER BY f.seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fragmentWithVector
	for rows.Next() {
		var fv fragmentWithVector
		var tags, created string
		var blob []byte
		if err := rows.Scan(&fv.ID, &fv.Text, &fv.Source, &tags, &created, &blob); err != nil {
			return nil, err
		}
		if fv.Tags, err = decodeList(tags); err != nil {
			fv.Tags = []string{}
		}
		fv.CreatedAt = parseTime(created)
		fv.Vector = DecodeVector(blob)
		out = append(out, fv)
	}
	return out, rows.Err()
}

// FragmentsMissingVectors loads the fragments from source that were
// stored without a vector, oldest first.
func (s *Store) FragmentsMissingVectors(source string) ([]Fragment, error) {
	rows, err := s.db.Query(`
		SELECT f.id, f.text, f.source, f.tags, f.created_at
		FROM fragments f
		LEFT JOIN vectors v ON v.fragment_id = f.id
		WHERE f.source = ? AND v.fragment_id IS NULL
		ORDER BY f.seq`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Fragment
	for rows.Next() {
		var f Fragment
		var tags, created string
		if err := rows.Scan(&f.ID, &f.Text, &f.Source, &tags, &created); err != nil {
			return nil, err
		}
		if f.Tags, err = decodeList(tags); err != nil {
			f.Tags = []string{}
		}
		f.CreatedAt = parseTime(created)
		out = append(out, f)
	}
	return out, rows.Err()
}

// PutVector attaches or replaces the vector of an existing fragment.
func (s *Store) PutVector(id string, vec []float32, model string) error {
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO vectors (fragment_id, vector, embedding_model) VALUES (?, ?, ?)`,
		id, EncodeVector(vec), model); err != nil {
		return fmt.Errorf("reverie: put vector: %w", err)
	}
	return nil
}

// GetFragment loads one fragment by id.
func (s *Store) GetFragment(id string) (Fragment, error) {
	var f Fragment
	var tags, created string
	err := s.db.QueryRow(`SELECT id, text, source, tags, created_at FROM fragments WHERE id = ?`, id).
		Scan(&f.ID, &f.Text, &f.Source, &tags, &created)
	if err != nil {
		return Fragment{}, err
	}
	if f.Tags, err = decodeList(tags); err != nil {
		f.Tags = []string{}
	}
	f.CreatedAt = parseTime(created)
	return f, nil
}

// HasFragmentSource reports whether any fragment came from source.
func (s *Store) HasFragmentSource(source string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM fragments WHERE source = ?`, source).Scan(&n)
	return n > 0, err
}

// EnforceFragmentLimit deletes the oldest fragments beyond maxCount.
func (s *Store) EnforceFragmentLimit(maxCount int) error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM fragments`).Scan(&count); err != nil {
		return err
	}
	if maxCount <= 0 || count <= maxCount {
		return nil
	}

	excess := count - maxCount
	if _, err := s.db.Exec(`
		DELETE FROM vectors WHERE fragment_id IN (
			SELECT id FROM fragments ORDER BY seq ASC LIMIT ?
		)`, excess); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		DELETE FROM fragments WHERE seq IN (
			SELECT seq FROM fragments ORDER BY seq ASC LIMIT ?
		)`, excess)
	return err
}

// FragmentStats counts stored fragments and how many carry a vector.
func (s *Store) FragmentStats() (fragments, vectors int, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM fragments`).Scan(&fragments); err != nil {
		return
	}
	err = s.db.QueryRow(`SELECT COUNT(*) FROM vectors`).Scan(&vectors)
	return
}
