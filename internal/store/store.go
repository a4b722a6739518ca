// Package store persists the assistant's mutable state: conversation
// histories keyed by conversation ID and the document registry used as
// fallback retrieval context. Two implementations are provided: MemoryStore
// (process lifetime) and SQLiteStore (survives restarts). Both are safe for
// concurrent use.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/54b3r/docai-go/internal/rag"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the person chatting.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the completion model.
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// CreatedAt is when the message was stored.
	CreatedAt time.Time
}

// ConversationStore keeps ordered, role-tagged message histories.
type ConversationStore interface {
	// Append adds a message to the end of the conversation, creating it on
	// first use.
	Append(ctx context.Context, conversationID string, role Role, content string) error
	// History returns up to the last n messages oldest-first. n <= 0 returns all.
	History(ctx context.Context, conversationID string, n int) ([]Message, error)
	// Clear deletes the conversation. Clearing an unknown ID is not an error.
	Clear(ctx context.Context, conversationID string) error
	// Close releases any resources held by the store.
	Close() error
}

// State bundles both stores behind one handle, as returned by [OpenFromEnv].
type State interface {
	ConversationStore
	rag.DocumentRegistry
}

// Options tunes a store.
type Options struct {
	// MaxDocuments caps the registry. When a Put exceeds it, the oldest
	// documents are evicted. Zero means unbounded.
	MaxDocuments int
}

// DefaultDBPath returns ~/.docai/docai.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docai")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "docai.db"), nil
}

// OpenFromEnv selects the backing store from DOCAI_HISTORY_DB:
//
//	unset, memory, disabled  → MemoryStore (lost on restart)
//	sqlite                   → SQLite at DefaultDBPath
//	any other value          → SQLite at that path
//
// The returned kind is "sqlite" or "memory" for logging.
func OpenFromEnv(opts Options) (s State, kind string, err error) {
	path := os.Getenv("DOCAI_HISTORY_DB")
	switch path {
	case "", "memory", "disabled":
		return NewMemoryStore(opts), "memory", nil
	case "sqlite":
		if path, err = DefaultDBPath(); err != nil {
			return nil, "", err
		}
	}
	sq, err := Open(path, opts)
	if err != nil {
		return nil, "", err
	}
	return sq, "sqlite", nil
}
