// Package rag defines the retrieval-augmented generation contracts used by
// the ingestion and retrieval pipelines: embedding, vector indexing and the
// document registry. Concrete backends (Qdrant, pgvector, in-memory) satisfy
// these interfaces so pipeline code never depends on a specific store.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrServiceUnavailable marks a failure of an external collaborator: the
// embedding service, the vector index or the completion service. Callers
// classify with errors.Is; the underlying cause stays wrapped.
var ErrServiceUnavailable = errors.New("service unavailable")

// Unavailable wraps err as an ErrServiceUnavailable failure of op.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrServiceUnavailable, err)
}

// Metadata keys stored alongside every indexed chunk.
const (
	MetaDocumentID  = "documentId"
	MetaFileName    = "fileName"
	MetaChunkIndex  = "chunkIndex"
	MetaTotalChunks = "totalChunks"
)

// ChunkMeta is the metadata attached to an indexed chunk.
type ChunkMeta struct {
	// DocumentID identifies the owning document; it is the exact-match filter key.
	DocumentID string

	// FileName is the display name of the owning document.
	FileName string

	// ChunkIndex is the 0-based position of the chunk within its document.
	ChunkIndex int

	// TotalChunks is the number of chunks the document was split into.
	TotalChunks int
}

// Chunk is a unit of indexed text with its embedding.
type Chunk struct {
	// ID is the index-wide unique key, see [ChunkID].
	ID string

	// Text is the chunk content.
	Text string

	// Vector is the embedding of Text.
	Vector []float32

	// Meta is stored with the chunk and returned by queries.
	Meta ChunkMeta
}

// ChunkID returns the composite key "{documentID}-chunk-{index}".
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, index)
}

// Match is one query result.
type Match struct {
	// Text is the chunk content.
	Text string

	// Meta is the metadata stored with the chunk.
	Meta ChunkMeta

	// Score is the backend similarity score; higher is more relevant.
	Score float32
}

// Filter restricts a query. Every non-empty field must match exactly.
type Filter struct {
	// DocumentID restricts results to chunks of one document.
	DocumentID string
}

// Embedder converts text into a fixed-length vector.
// Implementations must be safe to call from multiple goroutines and must
// wrap transport and non-success responses with [ErrServiceUnavailable].
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores chunk embeddings and answers filtered similarity queries.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// Add stores chunk. Re-adding an existing ID overwrites it (last write wins).
	Add(ctx context.Context, chunk Chunk) error

	// Query returns up to topK chunks matching filter, most relevant first.
	// No matches is an empty slice and a nil error.
	Query(ctx context.Context, vector []float32, filter Filter, topK int) ([]Match, error)

	// Close releases any resources held by the index.
	Close() error
}

// Document is an uploaded document as held by the registry.
type Document struct {
	// ID is the unique document identifier assigned at upload.
	ID string

	// Name is the display name (the original file name).
	Name string

	// Text is the full extracted text. Immutable once registered.
	Text string

	// CreatedAt is the upload time.
	CreatedAt time.Time
}

// DocumentRegistry maps document identifiers to their raw text and name,
// serving as the fallback context source for retrieval.
// Implementations must be safe to call from multiple goroutines.
type DocumentRegistry interface {
	// Put registers doc, replacing any entry with the same ID.
	Put(ctx context.Context, doc Document) error

	// Get returns the document and true, or false when id is unknown.
	Get(ctx context.Context, id string) (Document, bool, error)
}
