package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/54b3r/docai-go/internal/chunker"
	"github.com/54b3r/docai-go/internal/embedder"
	"github.com/54b3r/docai-go/internal/ingestion"
	"github.com/54b3r/docai-go/internal/rag"
	"github.com/54b3r/docai-go/internal/server"
	"github.com/54b3r/docai-go/internal/store"
)

// pinger is implemented by dependencies that can check their own reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// openState opens the conversation store and document registry selected by
// DOCAI_HISTORY_DB.
func openState(log *slog.Logger) (store.State, error) {
	state, kind, err := store.OpenFromEnv(store.Options{
		MaxDocuments: getEnvInt("REGISTRY_MAX_DOCUMENTS", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	log.Info("state store opened", slog.String("kind", kind))
	return state, nil
}

// ragBackend is the embedder and vector index pair. Both are nil when the
// index is disabled, in which case retrieval always uses the full document.
type ragBackend struct {
	embedder rag.Embedder
	index    rag.VectorIndex
	name     string
}

// Close releases the vector index, if any.
func (b ragBackend) Close() {
	if b.index != nil {
		_ = b.index.Close()
	}
}

// pinger returns the readiness check for the index, or nil.
func (b ragBackend) pinger() server.Pinger {
	if p, ok := b.index.(pinger); ok {
		return server.NewDependencyPinger(b.name, p.Ping)
	}
	return nil
}

// vectorBackends lists the accepted VECTOR_BACKEND values.
var vectorBackends = []string{"qdrant", "pgvector", "memory", "disabled"}

// buildRAG constructs the embedder and vector index from the environment.
// Only an unreachable index is reported as rag.ErrServiceUnavailable; every
// other error is a configuration mistake.
//
//	VECTOR_BACKEND   qdrant | pgvector | memory | disabled (default: qdrant)
func buildRAG(ctx context.Context, log *slog.Logger) (ragBackend, error) {
	backend := getEnvOrDefault("VECTOR_BACKEND", "qdrant")
	if !slices.Contains(vectorBackends, backend) {
		return ragBackend{}, fmt.Errorf("unknown VECTOR_BACKEND %q (valid: qdrant, pgvector, memory, disabled)", backend)
	}
	if backend == "disabled" {
		log.Info("rag: vector index disabled, full-document context only")
		return ragBackend{name: backend}, nil
	}

	if err := embedder.Validate(log); err != nil {
		return ragBackend{}, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return ragBackend{}, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	dims := embedder.DefaultDimensions(embedder.Backend())

	var index rag.VectorIndex
	switch backend {
	case "qdrant":
		host := getEnvOrDefault("QDRANT_HOST", "localhost")
		port := getEnvInt("QDRANT_PORT", 6334)
		q, qErr := rag.NewQdrantIndex(ctx, rag.QdrantConfig{
			Host:       host,
			Port:       port,
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "document_chunks"),
			VectorSize: uint64(dims), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if qErr != nil {
			return ragBackend{}, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, qErr)
		}
		index = q
	case "pgvector":
		p, pErr := rag.NewPgVectorIndex(ctx, rag.PgVectorConfig{
			DSN:        os.Getenv("PGVECTOR_DSN"),
			Table:      os.Getenv("PGVECTOR_TABLE"),
			Dimensions: dims,
		})
		if pErr != nil {
			return ragBackend{}, fmt.Errorf("failed to open pgvector index: %w", pErr)
		}
		index = p
	case "memory":
		index = rag.NewMemoryIndex()
	default:
		return ragBackend{}, fmt.Errorf("unknown VECTOR_BACKEND %q (valid: qdrant, pgvector, memory, disabled)", backend)
	}

	log.Info("rag: vector index ready",
		slog.String("backend", backend),
		slog.String("embedder", embedder.Backend()),
		slog.Int("dimensions", dims),
	)
	return ragBackend{embedder: emb, index: index, name: backend}, nil
}

// degradeRAG falls back to a disabled index when the configured one cannot
// be reached, so documents are still answered from their full text. Any other
// buildRAG error is returned unchanged and must stop the command.
func degradeRAG(log *slog.Logger, backend ragBackend, err error) (ragBackend, error) {
	switch {
	case err == nil:
		return backend, nil
	case errors.Is(err, rag.ErrServiceUnavailable):
		log.Warn("rag: vector index unavailable, using full-document context", slog.Any("error", err))
		return ragBackend{name: "disabled"}, nil
	default:
		return ragBackend{}, err
	}
}

// newPipeline builds the ingestion pipeline over b and registry.
func newPipeline(b ragBackend, registry rag.DocumentRegistry) (*ingestion.Pipeline, error) {
	opts, err := chunker.OptionsFromEnv()
	if err != nil {
		return nil, err
	}
	p, err := ingestion.NewPipeline(b.embedder, b.index, registry, ingestion.Config{
		Chunking:    opts,
		CallTimeout: embedder.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	return p, nil
}

// newRetriever builds the retrieval pipeline over b and registry.
func newRetriever(b ragBackend, registry rag.DocumentRegistry) (*rag.Retriever, error) {
	r, err := rag.NewRetriever(b.embedder, b.index, registry, rag.RetrieverConfig{
		TopK:        getEnvInt("RAG_TOP_K", rag.DefaultTopK),
		CallTimeout: embedder.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}
	return r, nil
}

// getEnvOrDefault returns the env var value or fallback.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
