package reverie

import (
	"fmt"
	"slices"
)

// AppendMessage adds a message to the durable log.
func (s *Store) AppendMessage(m ConversationMessage) error {
	_, err := s.db.Exec(`INSERT INTO messages (role, content, created_at) VALUES (?, ?, ?)`,
		string(m.Role), m.Content, formatTime(m.Timestamp))
	if err != nil {
		return fmt.Errorf("reverie: append message: %w", err)
	}
	return nil
}

// RecentMessages returns the last n messages, oldest first. n <= 0 returns
// the whole log.
func (s *Store) RecentMessages(n int) ([]ConversationMessage, error) {
	q := `SELECT role, content, created_at FROM messages ORDER BY id DESC`
	args := []any{}
	if n > 0 {
		q += ` LIMIT ?`
		args = append(args, n)
	}
	out, err := s.queryMessages(q, args...)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// MessagesSince returns every message after the first offset, oldest first.
func (s *Store) MessagesSince(offset int) ([]ConversationMessage, error) {
	return s.queryMessages(`SELECT role, content, created_at FROM messages ORDER BY id LIMIT -1 OFFSET ?`, max(offset, 0))
}

func (s *Store) queryMessages(q string, args ...any) ([]ConversationMessage, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("reverie: query messages: %w", err)
	}
	defer rows.Close()

	var out []ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		var role, created string
		if err := rows.Scan(&role, &m.Content, &created); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		m.Timestamp = parseTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessages returns the size of the durable log.
func (s *Store) CountMessages() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// AppendSummary stores a summary. Summaries are never rewritten.
func (s *Store) AppendSummary(sum Summary) error {
	_, err := s.db.Exec(`INSERT INTO summaries (id, text, created_at, upto) VALUES (?, ?, ?, ?)`,
		sum.ID, sum.Text, formatTime(sum.Timestamp), sum.UpTo)
	if err != nil {
		return fmt.Errorf("reverie: append summary: %w", err)
	}
	return nil
}

// Summaries returns every summary, oldest first.
func (s *Store) Summaries() ([]Summary, error) {
	rows, err := s.db.Query(`SELECT id, text, created_at, upto FROM summaries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("reverie: query summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var created string
		if err := rows.Scan(&sum.ID, &sum.Text, &created, &sum.UpTo); err != nil {
			return nil, err
		}
		sum.Timestamp = parseTime(created)
		out = append(out, sum)
	}
	return out, rows.Err()
}
