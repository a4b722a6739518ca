package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/54b3r/docai-go/internal/rag"
)

// MemoryStore holds conversations and documents in mutex-guarded maps.
// Everything is lost when the process exits.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]Message
	documents     map[string]rag.Document
	// order lists document IDs oldest-first for capacity eviction.
	order []string
	opts  Options
	now   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string][]Message),
		documents:     make(map[string]rag.Document),
		opts:          opts,
		now:           time.Now,
	}
}

// Append adds a message to conversationID.
func (m *MemoryStore) Append(_ context.Context, conversationID string, role Role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversationID] = append(m.conversations[conversationID], Message{
		Role:      role,
		Content:   content,
		CreatedAt: m.now(),
	})
	return nil
}

// History returns a copy of the last n messages.
func (m *MemoryStore) History(_ context.Context, conversationID string, n int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.conversations[conversationID]
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return slices.Clone(msgs), nil
}

// Clear removes conversationID.
func (m *MemoryStore) Clear(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, conversationID)
	return nil
}

// Put registers doc and evicts the oldest documents beyond MaxDocuments.
func (m *MemoryStore) Put(_ context.Context, doc rag.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.documents[doc.ID]; exists {
		m.order = slices.DeleteFunc(m.order, func(id string) bool { return id == doc.ID })
	}
	m.documents[doc.ID] = doc
	m.order = append(m.order, doc.ID)

	if limit := m.opts.MaxDocuments; limit > 0 {
		for len(m.order) > limit {
			delete(m.documents, m.order[0])
			m.order = m.order[1:]
		}
	}
	return nil
}

// Get returns the document registered under id.
func (m *MemoryStore) Get(_ context.Context, id string) (rag.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	return doc, ok, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
