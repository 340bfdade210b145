// Package store provides SQLite-backed storage for all memory tiers:
// short-term and long-term records, association edges, working-memory
// state, and consolidation jobs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// ErrNotFound signals a missing record. Callers doing batch work skip and
// continue on it.
var ErrNotFound = errors.New("memory not found")

// SQLiteStore implements durable storage using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
	// ltCache is a read-through cache for long-term records; one-hop graph
	// expansion hits the same ids repeatedly.
	ltCache *ristretto.Cache
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		ltCache: cache,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS short_term_memories (
		id                 TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL,
		enterprise_id      TEXT,
		session_id         TEXT NOT NULL,
		memory_type        TEXT NOT NULL,
		content            TEXT NOT NULL,
		payload            TEXT,
		context            TEXT,
		importance         TEXT NOT NULL DEFAULT 'medium',
		confidence         REAL NOT NULL DEFAULT 0.5,
		access_count       INTEGER NOT NULL DEFAULT 0,
		last_accessed_at   TEXT,
		created_at         TEXT NOT NULL,
		expires_at         TEXT,
		consolidated_at    TEXT,
		is_processed       INTEGER NOT NULL DEFAULT 0,
		should_consolidate INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_stm_user_session ON short_term_memories(user_id, session_id);
	CREATE INDEX IF NOT EXISTS idx_stm_type_importance ON short_term_memories(user_id, memory_type, importance);
	CREATE INDEX IF NOT EXISTS idx_stm_expires ON short_term_memories(expires_at);
	CREATE INDEX IF NOT EXISTS idx_stm_eligible ON short_term_memories(should_consolidate, consolidated_at);

	CREATE TABLE IF NOT EXISTS long_term_memories (
		id                  TEXT PRIMARY KEY,
		user_id             TEXT NOT NULL,
		enterprise_id       TEXT,
		memory_type         TEXT NOT NULL,
		content             TEXT NOT NULL,
		summary             TEXT NOT NULL,
		keywords            TEXT,
		embedding           TEXT,
		importance          TEXT NOT NULL DEFAULT 'medium',
		confidence          REAL NOT NULL DEFAULT 0.5,
		strength            REAL NOT NULL,
		decay_rate          REAL NOT NULL DEFAULT 0,
		reinforcement_count INTEGER NOT NULL DEFAULT 1,
		access_count        INTEGER NOT NULL DEFAULT 0,
		last_accessed_at    TEXT,
		last_reinforced_at  TEXT NOT NULL,
		is_verified         INTEGER NOT NULL DEFAULT 0,
		contradicted_by     TEXT,
		consolidated_from   TEXT,
		created_at          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ltm_user ON long_term_memories(user_id);
	CREATE INDEX IF NOT EXISTS idx_ltm_user_type ON long_term_memories(user_id, memory_type);
	CREATE INDEX IF NOT EXISTS idx_ltm_reinforced ON long_term_memories(last_reinforced_at);

	CREATE TABLE IF NOT EXISTS memory_associations (
		from_id            TEXT NOT NULL REFERENCES long_term_memories(id),
		to_id              TEXT NOT NULL REFERENCES long_term_memories(id),
		assoc_type         TEXT NOT NULL,
		strength           REAL NOT NULL,
		confidence         REAL NOT NULL DEFAULT 0.5,
		created_at         TEXT NOT NULL,
		last_reinforced_at TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, assoc_type),
		CHECK (from_id != to_id)
	);
	CREATE INDEX IF NOT EXISTS idx_assoc_to ON memory_associations(to_id);

	CREATE TABLE IF NOT EXISTS working_memory_states (
		user_id    TEXT NOT NULL,
		session_id TEXT NOT NULL,
		capacity   INTEGER NOT NULL,
		focus_item TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);

	CREATE TABLE IF NOT EXISTS working_memory_items (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		session_id    TEXT NOT NULL,
		content       TEXT NOT NULL,
		item_type     TEXT NOT NULL,
		activation    REAL NOT NULL,
		last_accessed TEXT NOT NULL,
		access_count  INTEGER NOT NULL DEFAULT 0,
		associations  TEXT,
		source        TEXT,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_wmi_session ON working_memory_items(user_id, session_id);

	CREATE TABLE IF NOT EXISTS consolidation_jobs (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		session_id     TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		input_ids      TEXT,
		output_ids     TEXT,
		processed      INTEGER NOT NULL DEFAULT 0,
		consolidated   INTEGER NOT NULL DEFAULT 0,
		reinforced     INTEGER NOT NULL DEFAULT 0,
		patterns_found INTEGER NOT NULL DEFAULT 0,
		error          TEXT,
		created_at     TEXT NOT NULL,
		started_at     TEXT,
		completed_at   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_session ON consolidation_jobs(user_id, session_id, created_at DESC);

	CREATE VIRTUAL TABLE IF NOT EXISTS ltm_fts USING fts5(
		content,
		summary,
		content=long_term_memories,
		content_rowid=rowid
	);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}

	// FTS5 triggers for automatic sync
	s.db.Exec(`CREATE TRIGGER IF NOT EXISTS ltm_ai AFTER INSERT ON long_term_memories BEGIN
		INSERT INTO ltm_fts(rowid, content, summary) VALUES (new.rowid, new.content, new.summary);
	END`)
	s.db.Exec(`CREATE TRIGGER IF NOT EXISTS ltm_ad AFTER DELETE ON long_term_memories BEGIN
		INSERT INTO ltm_fts(ltm_fts, rowid, content, summary) VALUES('delete', old.rowid, old.content, old.summary);
	END`)
	s.db.Exec(`CREATE TRIGGER IF NOT EXISTS ltm_au AFTER UPDATE OF content, summary ON long_term_memories BEGIN
		INSERT INTO ltm_fts(ltm_fts, rowid, content, summary) VALUES('delete', old.rowid, old.content, old.summary);
		INSERT INTO ltm_fts(rowid, content, summary) VALUES (new.rowid, new.content, new.summary);
	END`)

	return nil
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	s.ltCache.Close()
	return s.db.Close()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := fmtTime(*t)
	return &v
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
