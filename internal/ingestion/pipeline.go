// Package ingestion implements the document ingestion pipeline. It registers
// an uploaded document, chunks its text, embeds each chunk and adds it to the
// vector index. It is invoked by the /upload handler and the `docai ingest`
// CLI command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/docai-go/internal/chunker"
	"github.com/54b3r/docai-go/internal/logging"
	"github.com/54b3r/docai-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// Chunking controls chunk size and overlap. The zero value uses
	// chunker.Defaults (1000 characters, 100 overlap).
	Chunking chunker.Options

	// CallTimeout bounds each embedding and index call. Zero leaves the
	// caller's context deadline in charge.
	CallTimeout time.Duration
}

// Status is the outcome of one chunk.
type Status string

const (
	// StatusIndexed means the chunk was embedded and added to the index.
	StatusIndexed Status = "indexed"
	// StatusSkipped means embedding or indexing failed and the chunk was dropped.
	StatusSkipped Status = "skipped"
)

// errIndexDisabled is the skip reason when no embedder/index is configured.
var errIndexDisabled = errors.New("vector index disabled")

// ChunkOutcome records what happened to one chunk.
type ChunkOutcome struct {
	// Index is the chunk's 0-based position in the document.
	Index int

	// Status is StatusIndexed or StatusSkipped.
	Status Status

	// Reason is the failure message for skipped chunks.
	Reason string
}

// Result summarises one document ingestion.
type Result struct {
	// DocumentID is the identifier the document was registered under.
	DocumentID string

	// Attempted is the number of chunks the text was split into. This is what
	// callers report as "chunks processed", including skipped ones.
	Attempted int

	// Outcomes holds one entry per chunk, in index order.
	Outcomes []ChunkOutcome
}

// Indexed returns the number of chunks that reached the index.
func (r Result) Indexed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusIndexed {
			n++
		}
	}
	return n
}

// Skipped returns the number of chunks dropped after a failure.
func (r Result) Skipped() int {
	return len(r.Outcomes) - r.Indexed()
}

// Pipeline orchestrates the register → chunk → embed → add flow for one
// document at a time. A Pipeline is safe for concurrent use.
type Pipeline struct {
	// embedder converts chunk text into vectors. Nil disables indexing.
	embedder rag.Embedder

	// index stores embedded chunks. Nil disables indexing.
	index rag.VectorIndex

	// registry holds the full text for retrieval fallback.
	registry rag.DocumentRegistry

	// cfg holds the resolved pipeline configuration.
	cfg Config
}

// NewPipeline constructs a Pipeline. embedder and index may both be nil, in
// which case documents are only registered and every chunk is skipped.
func NewPipeline(embedder rag.Embedder, index rag.VectorIndex, registry rag.DocumentRegistry, cfg Config) (*Pipeline, error) {
	if registry == nil {
		return nil, fmt.Errorf("ingestion: registry must not be nil")
	}
	if (embedder == nil) != (index == nil) {
		return nil, fmt.Errorf("ingestion: embedder and index must be configured together")
	}
	if cfg.Chunking == (chunker.Options{}) {
		cfg.Chunking = chunker.Defaults()
	}
	if err := cfg.Chunking.Validate(); err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}
	return &Pipeline{embedder: embedder, index: index, registry: registry, cfg: cfg}, nil
}

// Ingest registers doc and indexes its chunks sequentially in index order.
//
// A failure embedding or adding a single chunk is logged and recorded as a
// skipped outcome; ingestion continues with the next chunk. The only error
// returned is a registry failure, since chunks must never reference a
// document the registry does not hold.
func (p *Pipeline) Ingest(ctx context.Context, doc rag.Document) (Result, error) {
	log := logging.FromContext(ctx).With(slog.String("document_id", doc.ID))

	if doc.ID == "" {
		return Result{}, fmt.Errorf("ingestion: document id must not be empty")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if err := p.registry.Put(ctx, doc); err != nil {
		return Result{}, fmt.Errorf("ingestion: register %s: %w", doc.ID, err)
	}

	texts, err := chunker.Split(doc.Text, p.cfg.Chunking)
	if err != nil {
		return Result{}, fmt.Errorf("ingestion: chunk %s: %w", doc.ID, err)
	}

	res := Result{
		DocumentID: doc.ID,
		Attempted:  len(texts),
		Outcomes:   make([]ChunkOutcome, 0, len(texts)),
	}
	log.Info("ingestion: document registered", slog.String("file_name", doc.Name), slog.Int("chunks", len(texts)))

	for i, text := range texts {
		chunk := rag.Chunk{
			ID:   rag.ChunkID(doc.ID, i),
			Text: text,
			Meta: rag.ChunkMeta{
				DocumentID:  doc.ID,
				FileName:    doc.Name,
				ChunkIndex:  i,
				TotalChunks: len(texts),
			},
		}
		if err := p.indexChunk(ctx, chunk); err != nil {
			log.Warn("ingestion: chunk skipped",
				slog.Int("chunk_index", i),
				slog.String("error", err.Error()),
			)
			res.Outcomes = append(res.Outcomes, ChunkOutcome{Index: i, Status: StatusSkipped, Reason: err.Error()})
			continue
		}
		res.Outcomes = append(res.Outcomes, ChunkOutcome{Index: i, Status: StatusIndexed})
	}

	log.Info("ingestion: document indexed",
		slog.Int("attempted", res.Attempted),
		slog.Int("indexed", res.Indexed()),
		slog.Int("skipped", res.Skipped()),
	)
	return res, nil
}

// indexChunk embeds chunk.Text and adds the chunk to the index.
func (p *Pipeline) indexChunk(ctx context.Context, chunk rag.Chunk) error {
	if p.embedder == nil {
		return errIndexDisabled
	}

	vec, err := p.call(ctx, func(ctx context.Context) ([]float32, error) {
		return p.embedder.Embed(ctx, chunk.Text)
	})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("embed: %w", rag.Unavailable("ingestion", errors.New("empty embedding")))
	}
	chunk.Vector = vec

	if _, err := p.call(ctx, func(ctx context.Context) ([]float32, error) {
		return nil, p.index.Add(ctx, chunk)
	}); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

// call runs fn under the configured per-call timeout.
func (p *Pipeline) call(ctx context.Context, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	if p.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
	}
	return fn(ctx)
}
