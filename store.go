package reverie

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection holding the emotion tables, the current
// state, conversation history and the vector index. It assumes a single
// writer.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

var (
	_ EmotionRepository = (*Store)(nil)
	_ HistoryRepository = (*Store)(nil)
)

// NewStore opens (or creates) the SQLite database and runs migrations.
func NewStore(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("reverie: mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("reverie: open db: %w", err)
	}

	// One connection: the pipeline is single-writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("reverie: migrate: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return err
	}

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS emotion_entries (
				phrase  TEXT PRIMARY KEY,
				tone    TEXT NOT NULL DEFAULT '',
				emotion TEXT NOT NULL DEFAULT '[]',
				subtone TEXT NOT NULL DEFAULT '[]',
				flavor  TEXT NOT NULL DEFAULT '[]'
			);

			CREATE TABLE IF NOT EXISTS trigger_phrases (
				phrase     TEXT PRIMARY KEY,
				sets       TEXT NOT NULL,
				created_at TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE IF NOT EXISTS labels (
				kind         TEXT NOT NULL,
				name         TEXT NOT NULL,
				description  TEXT NOT NULL DEFAULT '',
				triggered_by TEXT NOT NULL DEFAULT '[]',
				examples     TEXT NOT NULL DEFAULT '[]',
				PRIMARY KEY (kind, name)
			);

			CREATE TABLE IF NOT EXISTS current_state (
				id         INTEGER PRIMARY KEY CHECK (id = 1),
				state      TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE IF NOT EXISTS messages (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				created_at TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS summaries (
				seq        INTEGER PRIMARY KEY AUTOINCREMENT,
				id         TEXT NOT NULL UNIQUE,
				text       TEXT NOT NULL,
				created_at TEXT NOT NULL
			);
		`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`); err != nil {
			return err
		}
	}

	if version < 2 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS fragments (
				seq        INTEGER PRIMARY KEY AUTOINCREMENT,
				id         TEXT NOT NULL UNIQUE,
				text       TEXT NOT NULL,
				source     TEXT NOT NULL DEFAULT '',
				tags       TEXT NOT NULL DEFAULT '[]',
				created_at TEXT NOT NULL DEFAULT (datetime('now'))
			);
			CREATE INDEX IF NOT EXISTS idx_fragments_source ON fragments(source);

			CREATE TABLE IF NOT EXISTS vectors (
				fragment_id     TEXT PRIMARY KEY REFERENCES fragments(id) ON DELETE CASCADE,
				vector          BLOB NOT NULL,
				embedding_model TEXT NOT NULL DEFAULT ''
			);
		`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (2)`); err != nil {
			return err
		}
	}

	if version < 3 {
		if _, err := s.db.Exec(`ALTER TABLE summaries ADD COLUMN upto INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (3)`); err != nil {
			return err
		}
	}

	return nil
}

// --- Encoding helpers ---

// EncodeVector converts a float32 slice to a little-endian byte blob.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector converts a little-endian byte blob back to a float32 slice.
func DecodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s string) ([]string, error) {
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	if v == nil {
		v = []string{}
	}
	return v, nil
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

// resetTable clears a corrupted table and records it.
func (s *Store) resetTable(table string, cause error) {
	s.log.Warn().Err(cause).Str("table", table).Msg("store table corrupted, resetting to default")
	if _, err := s.db.Exec(`DELETE FROM ` + table); err != nil {
		s.log.Error().Err(err).Str("table", table).Msg("reset failed")
	}
}
