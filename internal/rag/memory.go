package rag

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process VectorIndex ranked by cosine similarity.
// It backs `VECTOR_BACKEND=memory` for single-node use and tests; contents
// are lost on restart.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
}

// NewMemoryIndex returns an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{chunks: make(map[string]Chunk)}
}

// Add stores a copy of chunk, replacing any chunk with the same ID.
func (m *MemoryIndex) Add(_ context.Context, chunk Chunk) error {
	vec := make([]float32, len(chunk.Vector))
	copy(vec, chunk.Vector)
	chunk.Vector = vec

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[chunk.ID] = chunk
	return nil
}

// Query ranks every chunk that matches filter against vector.
func (m *MemoryIndex) Query(_ context.Context, vector []float32, filter Filter, topK int) ([]Match, error) {
	if topK < 1 {
		return []Match{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.chunks))
	for _, c := range m.chunks {
		if filter.DocumentID != "" && c.Meta.DocumentID != filter.DocumentID {
			continue
		}
		matches = append(matches, Match{
			Text:  c.Text,
			Meta:  c.Meta,
			Score: float32(cosineSimilarity(vector, c.Vector)),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Meta.ChunkIndex < matches[j].Meta.ChunkIndex
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of stored chunks.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Close is a no-op.
func (m *MemoryIndex) Close() error { return nil }

// cosineSimilarity returns 0 for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
