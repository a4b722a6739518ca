package rag

import (
	"context"
	"math"
	"testing"
)

func TestMemoryIndex_QueryFiltersAndRanks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex()

	add := func(id, doc string, i int, vec ...float32) {
		t.Helper()
		if err := idx.Add(ctx, Chunk{ID: id, Text: id, Vector: vec, Meta: ChunkMeta{DocumentID: doc, ChunkIndex: i}}); err != nil {
			t.Fatal(err)
		}
	}
	add("a-0", "a", 0, 1, 0)
	add("a-1", "a", 1, 0, 1)
	add("a-2", "a", 2, 0.9, 0.1)
	add("b-0", "b", 0, 1, 0)

	got, err := idx.Query(ctx, []float32{1, 0}, Filter{DocumentID: "a"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 matches, got %d", len(got))
	}
	if got[0].Text != "a-0" || got[1].Text != "a-2" {
		t.Errorf("ranking: got %q, %q", got[0].Text, got[1].Text)
	}
	for _, m := range got {
		if m.Meta.DocumentID != "a" {
			t.Errorf("filter leaked %q", m.Meta.DocumentID)
		}
	}
}

func TestMemoryIndex_AddOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex()

	_ = idx.Add(ctx, Chunk{ID: "x", Text: "old", Vector: []float32{1}, Meta: ChunkMeta{DocumentID: "d"}})
	_ = idx.Add(ctx, Chunk{ID: "x", Text: "new", Vector: []float32{1}, Meta: ChunkMeta{DocumentID: "d"}})

	if idx.Len() != 1 {
		t.Fatalf("want 1 chunk, got %d", idx.Len())
	}
	got, _ := idx.Query(ctx, []float32{1}, Filter{DocumentID: "d"}, 5)
	if got[0].Text != "new" {
		t.Errorf("want last write to win, got %q", got[0].Text)
	}
}

func TestMemoryIndex_NoMatchesIsEmptyNotError(t *testing.T) {
	t.Parallel()
	got, err := NewMemoryIndex().Query(context.Background(), []float32{1}, Filter{DocumentID: "missing"}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("want empty non-nil slice, got %v", got)
	}
}

func TestMemoryIndex_CopiesVector(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex()
	vec := []float32{1, 0}
	_ = idx.Add(ctx, Chunk{ID: "x", Vector: vec, Meta: ChunkMeta{DocumentID: "d"}})
	vec[0], vec[1] = 0, 1

	got, _ := idx.Query(ctx, []float32{1, 0}, Filter{}, 1)
	if got[0].Score < 0.99 {
		t.Errorf("stored vector was mutated through caller slice, score %v", got[0].Score)
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{1}, []float32{1, 0}, 0},
		{[]float32{0, 0}, []float32{1, 0}, 0},
		{nil, nil, 0},
	}
	for _, tc := range tests {
		if got := cosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("cosine(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestChunkIDAndPointID(t *testing.T) {
	t.Parallel()
	if got := ChunkID("1700000000000-report.pdf", 3); got != "1700000000000-report.pdf-chunk-3" {
		t.Errorf("ChunkID: got %q", got)
	}
	a, b := PointID("doc-chunk-0"), PointID("doc-chunk-0")
	if a != b {
		t.Error("PointID must be deterministic")
	}
	if a == PointID("doc-chunk-1") {
		t.Error("PointID must differ per chunk")
	}
}

func TestValidIdentifier(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]bool{
		"document_chunks": true,
		"chunks2":         true,
		"":                false,
		"2chunks":         false,
		"Chunks":          false,
		"chunks; drop":    false,
	} {
		if got := validIdentifier(in); got != want {
			t.Errorf("validIdentifier(%q) = %v, want %v", in, got, want)
		}
	}
}
