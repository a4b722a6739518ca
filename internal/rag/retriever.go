package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/docai-go/internal/logging"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 5

// chunkSeparator joins retrieved chunks into one context string.
const chunkSeparator = "\n\n"

// Source records where retrieved context came from.
type Source string

const (
	// SourceNone means no context could be produced.
	SourceNone Source = "none"
	// SourceChunks means context was assembled from retrieved chunks.
	SourceChunks Source = "chunks"
	// SourceFullText means the full registered document text was used.
	SourceFullText Source = "full_text"
)

// Outcome explains the path a single retrieval took. Empty results and
// service failures both fall back, but they are reported separately.
type Outcome string

const (
	// OutcomeChunks means the index returned at least one chunk of the document.
	OutcomeChunks Outcome = "chunks"

	// OutcomeNoResults means the query succeeded but matched no chunks.
	OutcomeNoResults Outcome = "no_results"

	// OutcomeEmbedUnavailable means embedding the prompt failed or timed out.
	OutcomeEmbedUnavailable Outcome = "embed_unavailable"

	// OutcomeIndexUnavailable means the vector index query failed or timed out.
	OutcomeIndexUnavailable Outcome = "index_unavailable"

	// OutcomeIndexDisabled means no embedder or index is configured.
	OutcomeIndexDisabled Outcome = "index_disabled"

	// OutcomeNoDocumentRequest means the request named no document, so
	// retrieval was skipped.
	OutcomeNoDocumentRequest Outcome = "no_document_requested"
)

// Retrieved is the result of one retrieval attempt.
type Retrieved struct {
	// Text is the assembled context; empty when Source is SourceNone.
	Text string

	// Source says which path produced Text.
	Source Source

	// Outcome is the diagnostic for the chunk retrieval step.
	Outcome Outcome

	// DocumentName is the registered display name, if the document is known.
	DocumentName string

	// Matches holds the chunks Text was assembled from, when Source is SourceChunks.
	Matches []Match
}

// RetrieverConfig tunes a Retriever.
type RetrieverConfig struct {
	// TopK is the number of chunks to request (default: 5).
	TopK int

	// CallTimeout bounds each embedding and index call. Zero leaves the
	// caller's context deadline in charge.
	CallTimeout time.Duration
}

// Retriever produces the document context for a chat turn: it embeds the
// prompt, queries the index for the document's chunks and falls back to the
// document's full text when retrieval yields nothing. It never fails a turn.
type Retriever struct {
	// embedder converts the prompt to a vector. Nil disables chunk retrieval.
	embedder Embedder

	// index answers the filtered similarity query. Nil disables chunk retrieval.
	index VectorIndex

	// registry supplies fallback text and display names.
	registry DocumentRegistry

	// cfg holds the resolved configuration.
	cfg RetrieverConfig
}

// NewRetriever constructs a Retriever. embedder and index may both be nil,
// in which case every retrieval uses the registry fallback.
func NewRetriever(embedder Embedder, index VectorIndex, registry DocumentRegistry, cfg RetrieverConfig) (*Retriever, error) {
	if registry == nil {
		return nil, fmt.Errorf("rag: registry must not be nil")
	}
	if (embedder == nil) != (index == nil) {
		return nil, fmt.Errorf("rag: embedder and index must be configured together")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Retriever{embedder: embedder, index: index, registry: registry, cfg: cfg}, nil
}

// Retrieve returns the context for prompt against documentID.
//
// The path is: embed the prompt, query with an exact documentID filter,
// join the returned chunks with a blank line. An empty result, or a failure
// at either step, falls back to the registered full text. An unknown
// document yields empty context.
func (r *Retriever) Retrieve(ctx context.Context, prompt, documentID string) Retrieved {
	log := logging.FromContext(ctx).With(slog.String("document_id", documentID))

	if documentID == "" {
		return Retrieved{Source: SourceNone, Outcome: OutcomeNoDocumentRequest}
	}

	doc, found, regErr := r.registry.Get(ctx, documentID)
	if regErr != nil {
		log.Warn("rag: registry lookup failed", slog.String("error", regErr.Error()))
	}

	outcome, matches := r.retrieveChunks(ctx, log, prompt, documentID)
	if outcome == OutcomeChunks {
		texts := make([]string, len(matches))
		for i, m := range matches {
			texts[i] = m.Text
		}
		name := doc.Name
		if name == "" {
			name = matches[0].Meta.FileName
		}
		return Retrieved{
			Text:         strings.Join(texts, chunkSeparator),
			Source:       SourceChunks,
			Outcome:      outcome,
			DocumentName: name,
			Matches:      matches,
		}
	}

	switch {
	case regErr != nil:
		log.Warn("rag: no context available", slog.String("outcome", string(outcome)), slog.String("fallback", "registry_failed"))
		return Retrieved{Source: SourceNone, Outcome: outcome}
	case !found || doc.Text == "":
		log.Info("rag: no context available", slog.String("outcome", string(outcome)), slog.String("fallback", "not_registered"))
		return Retrieved{Source: SourceNone, Outcome: outcome}
	}

	log.Info("rag: falling back to full document", slog.String("outcome", string(outcome)))
	return Retrieved{
		Text:         doc.Text,
		Source:       SourceFullText,
		Outcome:      outcome,
		DocumentName: doc.Name,
	}
}

// retrieveChunks runs embed then query. It returns OutcomeChunks with a
// non-empty match list, or the reason retrieval produced nothing.
func (r *Retriever) retrieveChunks(ctx context.Context, log *slog.Logger, prompt, documentID string) (Outcome, []Match) {
	if r.embedder == nil {
		return OutcomeIndexDisabled, nil
	}

	vec, err := r.embed(ctx, prompt)
	if err != nil {
		log.Warn("rag: prompt embedding failed", slog.String("outcome", string(OutcomeEmbedUnavailable)), slog.String("error", err.Error()))
		return OutcomeEmbedUnavailable, nil
	}

	matches, err := r.query(ctx, vec, documentID)
	if err != nil {
		log.Warn("rag: index query failed", slog.String("outcome", string(OutcomeIndexUnavailable)), slog.String("error", err.Error()))
		return OutcomeIndexUnavailable, nil
	}

	// The filter is exact-match; anything else the backend returns is dropped.
	kept := matches[:0]
	for _, m := range matches {
		if m.Meta.DocumentID == documentID {
			kept = append(kept, m)
		}
	}
	if dropped := len(matches) - len(kept); dropped > 0 {
		log.Warn("rag: index returned chunks from other documents", slog.Int("dropped", dropped))
	}

	if len(kept) == 0 {
		log.Info("rag: no relevant chunks found", slog.String("outcome", string(OutcomeNoResults)))
		return OutcomeNoResults, nil
	}
	log.Debug("rag: retrieved chunks", slog.Int("count", len(kept)))
	return OutcomeChunks, kept
}

func (r *Retriever) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, asUnavailable("rag: embed", err)
	}
	if len(vec) == 0 {
		return nil, Unavailable("rag: embed", errors.New("empty embedding"))
	}
	return vec, nil
}

func (r *Retriever) query(ctx context.Context, vec []float32, documentID string) ([]Match, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	matches, err := r.index.Query(ctx, vec, Filter{DocumentID: documentID}, r.cfg.TopK)
	if err != nil {
		return nil, asUnavailable("rag: query", err)
	}
	return matches, nil
}

// callContext applies CallTimeout, if set.
func (r *Retriever) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, r.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// asUnavailable ensures err is classified as ErrServiceUnavailable. Deadline
// expiry and backend errors that were not already wrapped are both external
// failures from the pipeline's point of view.
func asUnavailable(op string, err error) error {
	if errors.Is(err, ErrServiceUnavailable) {
		return err
	}
	return Unavailable(op, err)
}
