// Package state persists run state and pending feedback in sqlite so
// the agent survives restarts: a paused agent stays paused, queued
// feedback is not lost.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/wingmanhq/wingman/internal/prefs"
)

// Agent lifecycle statuses persisted under the "agent_status" key.
const (
	StatusRunning = "running"
	StatusPaused  = "paused"
	StatusStopped = "stopped"
	StatusCrashed = "crashed"
)

const statusKey = "agent_status"

// Store is the sqlite-backed run state.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agent_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS pending_feedback (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get reads a state value, returning "" when the key is absent.
func (s *Store) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM agent_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read state %q: %w", key, err)
	}
	return value, nil
}

// Set upserts a state value.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO agent_state (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`,
		key, value)
	if err != nil {
		return fmt.Errorf("write state %q: %w", key, err)
	}
	return nil
}

// Status returns the persisted agent status, defaulting to stopped.
func (s *Store) Status() (string, error) {
	v, err := s.Get(statusKey)
	if err != nil {
		return "", err
	}
	if v == "" {
		return StatusStopped, nil
	}
	return v, nil
}

// SetStatus persists the agent status. Read back at startup so a
// paused agent stays paused across restarts.
func (s *Store) SetStatus(status string) error {
	return s.Set(statusKey, status)
}

// EnqueueFeedback stores a feedback signal until the loop polls it.
func (s *Store) EnqueueFeedback(fb prefs.Feedback) error {
	payload, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`INSERT INTO pending_feedback (payload) VALUES (?)`, string(payload)); err != nil {
		return fmt.Errorf("enqueue feedback: %w", err)
	}
	return nil
}

// DrainFeedback returns all pending feedback in insertion order and
// removes it from the queue.
func (s *Store) DrainFeedback() ([]prefs.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, payload FROM pending_feedback ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read feedback queue: %w", err)
	}
	defer rows.Close()

	var out []prefs.Feedback
	var ids []int64
	for rows.Next() {
		var id int64
		var payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		var fb prefs.Feedback
		if err := json.Unmarshal([]byte(payload), &fb); err != nil {
			// Skip rows that no longer parse rather than wedging
			// the queue.
			ids = append(ids, id)
			continue
		}
		out = append(out, fb)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback rows: %w", err)
	}

	for _, id := range ids {
		if _, err := s.db.Exec(`DELETE FROM pending_feedback WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("dequeue feedback %d: %w", id, err)
		}
	}
	return out, nil
}

// PendingFeedbackCount reports the queue depth for status output.
func (s *Store) PendingFeedbackCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_feedback`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return n, nil
}
