package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeIndex struct {
	matches    []Match
	err        error
	gotFilter  Filter
	gotTopK    int
	blockUntil <-chan struct{}
}

func (f *fakeIndex) Add(context.Context, Chunk) error { return nil }

func (f *fakeIndex) Query(ctx context.Context, _ []float32, filter Filter, topK int) ([]Match, error) {
	f.gotFilter, f.gotTopK = filter, topK
	if f.blockUntil != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.blockUntil:
		}
	}
	return f.matches, f.err
}

func (f *fakeIndex) Close() error { return nil }

type fakeRegistry struct {
	docs map[string]Document
	err  error
}

func (f *fakeRegistry) Put(_ context.Context, d Document) error {
	f.docs[d.ID] = d
	return nil
}

func (f *fakeRegistry) Get(_ context.Context, id string) (Document, bool, error) {
	if f.err != nil {
		return Document{}, false, f.err
	}
	d, ok := f.docs[id]
	return d, ok, nil
}

func newRegistry(docs ...Document) *fakeRegistry {
	r := &fakeRegistry{docs: map[string]Document{}}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

var doc1 = Document{ID: "doc1", Name: "report.pdf", Text: "the full text of doc1"}

func chunk(doc string, i int, text string) Match {
	return Match{Text: text, Meta: ChunkMeta{DocumentID: doc, FileName: "report.pdf", ChunkIndex: i, TotalChunks: 3}}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewRetriever_Validation(t *testing.T) {
	t.Parallel()
	if _, err := NewRetriever(nil, nil, nil, RetrieverConfig{}); err == nil {
		t.Error("expected error for nil registry")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, newRegistry(), RetrieverConfig{}); err == nil {
		t.Error("expected error for embedder without index")
	}
	r, err := NewRetriever(nil, nil, newRegistry(), RetrieverConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.cfg.TopK != DefaultTopK {
		t.Errorf("TopK default: got %d, want %d", r.cfg.TopK, DefaultTopK)
	}
}

func TestRetrieve_ChunksJoinedInOrder(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{matches: []Match{chunk("doc1", 2, "second"), chunk("doc1", 0, "first")}}
	r, _ := NewRetriever(&fakeEmbedder{vec: []float32{1, 0}}, idx, newRegistry(doc1), RetrieverConfig{})

	got := r.Retrieve(context.Background(), "what?", "doc1")

	if got.Source != SourceChunks || got.Outcome != OutcomeChunks {
		t.Fatalf("source/outcome: got %s/%s", got.Source, got.Outcome)
	}
	if got.Text != "second\n\nfirst" {
		t.Errorf("Text: got %q", got.Text)
	}
	if got.DocumentName != "report.pdf" {
		t.Errorf("DocumentName: got %q", got.DocumentName)
	}
	if idx.gotFilter.DocumentID != "doc1" || idx.gotTopK != 5 {
		t.Errorf("query: filter %+v topK %d", idx.gotFilter, idx.gotTopK)
	}
	for _, m := range got.Matches {
		if m.Meta.DocumentID != "doc1" {
			t.Errorf("match from wrong document: %+v", m.Meta)
		}
	}
}

func TestRetrieve_DropsForeignChunks(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{matches: []Match{chunk("doc2", 0, "foreign"), chunk("doc1", 1, "mine")}}
	r, _ := NewRetriever(&fakeEmbedder{vec: []float32{1}}, idx, newRegistry(doc1), RetrieverConfig{})

	got := r.Retrieve(context.Background(), "q", "doc1")
	if got.Text != "mine" || len(got.Matches) != 1 {
		t.Errorf("want only doc1 chunk, got %q (%d matches)", got.Text, len(got.Matches))
	}
}

func TestRetrieve_Fallbacks(t *testing.T) {
	t.Parallel()

	unavailable := Unavailable("test", errors.New("connection refused"))

	tests := []struct {
		name        string
		embedder    *fakeEmbedder
		index       *fakeIndex
		registry    *fakeRegistry
		wantSource  Source
		wantOutcome Outcome
		wantText    string
	}{
		{
			name:        "no results falls back to full text",
			embedder:    &fakeEmbedder{vec: []float32{1}},
			index:       &fakeIndex{},
			registry:    newRegistry(doc1),
			wantSource:  SourceFullText,
			wantOutcome: OutcomeNoResults,
			wantText:    doc1.Text,
		},
		{
			name:        "index failure falls back to full text",
			embedder:    &fakeEmbedder{vec: []float32{1}},
			index:       &fakeIndex{err: unavailable},
			registry:    newRegistry(doc1),
			wantSource:  SourceFullText,
			wantOutcome: OutcomeIndexUnavailable,
			wantText:    doc1.Text,
		},
		{
			name:        "embed failure falls back to full text",
			embedder:    &fakeEmbedder{err: unavailable},
			index:       &fakeIndex{},
			registry:    newRegistry(doc1),
			wantSource:  SourceFullText,
			wantOutcome: OutcomeEmbedUnavailable,
			wantText:    doc1.Text,
		},
		{
			name:        "empty embedding treated as failure",
			embedder:    &fakeEmbedder{vec: []float32{}},
			index:       &fakeIndex{matches: []Match{chunk("doc1", 0, "x")}},
			registry:    newRegistry(doc1),
			wantSource:  SourceFullText,
			wantOutcome: OutcomeEmbedUnavailable,
			wantText:    doc1.Text,
		},
		{
			name:        "index failure and unknown document gives no context",
			embedder:    &fakeEmbedder{vec: []float32{1}},
			index:       &fakeIndex{err: unavailable},
			registry:    newRegistry(),
			wantSource:  SourceNone,
			wantOutcome: OutcomeIndexUnavailable,
		},
		{
			name:        "registry failure gives no context",
			embedder:    &fakeEmbedder{vec: []float32{1}},
			index:       &fakeIndex{},
			registry:    &fakeRegistry{err: errors.New("disk full")},
			wantSource:  SourceNone,
			wantOutcome: OutcomeNoResults,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r, err := NewRetriever(tc.embedder, tc.index, tc.registry, RetrieverConfig{})
			if err != nil {
				t.Fatalf("NewRetriever: %v", err)
			}
			got := r.Retrieve(context.Background(), "prompt", "doc1")
			if got.Source != tc.wantSource {
				t.Errorf("Source: got %s, want %s", got.Source, tc.wantSource)
			}
			if got.Outcome != tc.wantOutcome {
				t.Errorf("Outcome: got %s, want %s", got.Outcome, tc.wantOutcome)
			}
			if got.Text != tc.wantText {
				t.Errorf("Text: got %q, want %q", got.Text, tc.wantText)
			}
		})
	}
}

func TestRetrieve_IndexDisabledUsesRegistry(t *testing.T) {
	t.Parallel()
	r, _ := NewRetriever(nil, nil, newRegistry(doc1), RetrieverConfig{})
	got := r.Retrieve(context.Background(), "q", "doc1")
	if got.Source != SourceFullText || got.Outcome != OutcomeIndexDisabled || got.Text != doc1.Text {
		t.Errorf("got %+v", got)
	}
}

func TestRetrieve_NoDocumentRequested(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vec: []float32{1}}
	r, _ := NewRetriever(emb, &fakeIndex{}, newRegistry(doc1), RetrieverConfig{})
	got := r.Retrieve(context.Background(), "q", "")
	if got.Source != SourceNone || got.Text != "" {
		t.Errorf("got %+v", got)
	}
	if emb.calls != 0 {
		t.Errorf("embedder should not be called without a document, got %d calls", emb.calls)
	}
}

func TestRetrieve_CallTimeoutFallsBack(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	defer close(block)

	idx := &fakeIndex{blockUntil: block}
	r, _ := NewRetriever(&fakeEmbedder{vec: []float32{1}}, idx, newRegistry(doc1), RetrieverConfig{CallTimeout: 20 * time.Millisecond})

	start := time.Now()
	got := r.Retrieve(context.Background(), "q", "doc1")
	if time.Since(start) > 2*time.Second {
		t.Fatal("retrieval did not honour the call timeout")
	}
	if got.Outcome != OutcomeIndexUnavailable || got.Source != SourceFullText {
		t.Errorf("got %s/%s", got.Outcome, got.Source)
	}
}

func TestAsUnavailable(t *testing.T) {
	t.Parallel()
	err := asUnavailable("op", context.DeadlineExceeded)
	if !errors.Is(err, ErrServiceUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected both sentinels in chain: %v", err)
	}
	already := Unavailable("x", errors.New("boom"))
	if got := asUnavailable("op", already); got != already {
		t.Error("already-classified errors should pass through unchanged")
	}
	if !strings.Contains(already.Error(), "service unavailable") {
		t.Errorf("message: %q", already.Error())
	}
}
