package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/docai-go/internal/rag"
)

// SQLiteStore keeps conversations and documents in a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// opts holds registry limits.
	opts Options
}

// Open opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string, opts Options) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, opts: opts}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS messages (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT    NOT NULL,
    role            TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content         TEXT    NOT NULL,
    created_at      INTEGER NOT NULL  -- Unix nanoseconds
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages (conversation_id, id);

CREATE TABLE IF NOT EXISTS documents (
    id         TEXT    PRIMARY KEY,
    name       TEXT    NOT NULL,
    body       TEXT    NOT NULL,
    created_at INTEGER NOT NULL  -- Unix nanoseconds
);
CREATE INDEX IF NOT EXISTS idx_documents_created
    ON documents (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single message.
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, role Role, content string) error {
	const q = `INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, conversationID, string(role), content, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// History returns the last n messages oldest-first. The inner query selects
// the tail, the outer one restores insertion order.
func (s *SQLiteStore) History(ctx context.Context, conversationID string, n int) ([]Message, error) {
	limit := n
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   messages
    WHERE  conversation_id = ?
    ORDER  BY id DESC
    LIMIT  ?
) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: history scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(0, ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: history rows: %w", err)
	}
	return msgs, nil
}

// Clear deletes every message of conversationID.
func (s *SQLiteStore) Clear(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

// Put upserts doc and applies the MaxDocuments bound in one transaction.
func (s *SQLiteStore) Put(ctx context.Context, doc rag.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: put: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const upsert = `
INSERT INTO documents (id, name, body, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, body = excluded.body, created_at = excluded.created_at`
	if _, err := tx.ExecContext(ctx, upsert, doc.ID, doc.Name, doc.Text, doc.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("store: put: %w", err)
	}

	if limit := s.opts.MaxDocuments; limit > 0 {
		const evict = `
DELETE FROM documents WHERE id NOT IN (
    SELECT id FROM documents ORDER BY created_at DESC, rowid DESC LIMIT ?
)`
		if _, err := tx.ExecContext(ctx, evict, limit); err != nil {
			return fmt.Errorf("store: put evict: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: put commit: %w", err)
	}
	return nil
}

// Get returns the document registered under id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (rag.Document, bool, error) {
	const q = `SELECT id, name, body, created_at FROM documents WHERE id = ?`
	var doc rag.Document
	var ts int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(&doc.ID, &doc.Name, &doc.Text, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return rag.Document{}, false, nil
	}
	if err != nil {
		return rag.Document{}, false, fmt.Errorf("store: get document: %w", err)
	}
	doc.CreatedAt = time.Unix(0, ts)
	return doc, true, nil
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
