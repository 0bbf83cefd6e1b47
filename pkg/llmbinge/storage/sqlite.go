package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

// sortableTime is fixed width so updated_at orders lexically.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore persists the content tree to a SQLite database.
// It is suitable for single-process use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		updated_at TEXT NOT NULL,
		data BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		data BLOB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_session_id ON nodes(session_id)`,
	`CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`,
}

// NewSQLiteStore opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection, and SQLite serializes
	// writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Sessions implements Store. Results are ordered newest update first.
func (s *SQLiteStore) Sessions(ctx context.Context) ([]tree.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, wrap("list sessions", "", err)
	}
	defer rows.Close()

	out := []tree.Session{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, wrap("scan session", "", err)
		}
		sess, err := decodeSession(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate sessions", "", err)
	}
	return out, nil
}

// Session implements Store.
func (s *SQLiteStore) Session(ctx context.Context, id string) (tree.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return tree.Session{}, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return tree.Session{}, ErrNotFound
	}
	if err != nil {
		return tree.Session{}, wrap("load session", id, err)
	}
	return decodeSession(id, data)
}

// SaveSession implements Store.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess tree.Session) error {
	data, err := encode("save session", sess.ID, sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, updated_at, data) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			data = excluded.data
	`, sess.ID, sess.UpdatedAt.UTC().Format(sortableTime), data)
	return wrap("save session", sess.ID, err)
}

// DeleteSession implements Store.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return wrap("delete session", id, err)
}

// Node implements Store.
func (s *SQLiteStore) Node(ctx context.Context, id string) (tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return tree.Node{}, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM nodes WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return tree.Node{}, ErrNotFound
	}
	if err != nil {
		return tree.Node{}, wrap("load node", id, err)
	}
	return decodeNode(id, data)
}

// NodesForSession implements Store.
func (s *SQLiteStore) NodesForSession(ctx context.Context, sessionID string) ([]tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM nodes WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, wrap("list nodes", sessionID, err)
	}
	defer rows.Close()

	out := []tree.Node{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, wrap("scan node", sessionID, err)
		}
		n, err := decodeNode(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate nodes", sessionID, err)
	}
	return out, nil
}

// SaveNode implements Store.
func (s *SQLiteStore) SaveNode(ctx context.Context, n tree.Node) error {
	return s.SaveNodes(ctx, []tree.Node{n})
}

// SaveNodes implements Store.
func (s *SQLiteStore) SaveNodes(ctx context.Context, nodes []tree.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	var errs []error
	for _, n := range nodes {
		data, err := encode("save node", n.ID, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO nodes (id, session_id, data) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				session_id = excluded.session_id,
				data = excluded.data
		`, n.ID, n.SessionID, data)
		if err != nil {
			errs = append(errs, wrap("save node", n.ID, err))
		}
	}
	return errors.Join(errs...)
}

// DeleteNode implements Store.
func (s *SQLiteStore) DeleteNode(ctx context.Context, id string) error {
	return s.DeleteNodes(ctx, []string{id})
}

// DeleteNodes implements Store.
func (s *SQLiteStore) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	var errs []error
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
			errs = append(errs, wrap("delete node", id, err))
		}
	}
	return errors.Join(errs...)
}

// ConfigOverrides implements Store.
func (s *SQLiteStore) ConfigOverrides(ctx context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM config WHERE key = ?`, configKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("load config", configKey, err)
	}
	return decodeOverrides(data)
}

// SaveConfigOverrides implements Store.
func (s *SQLiteStore) SaveConfigOverrides(ctx context.Context, overrides map[string]any) error {
	data, err := encode("save config", configKey, overrides)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data
	`, configKey, data)
	return wrap("save config", configKey, err)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)
