package rag

import (
	"context"
	"testing"
)

// contractDims is the vector size used by checkIndexContract.
const contractDims = 4

// checkIndexContract exercises the VectorIndex behaviour every backend must
// share: metadata survives the round trip, the documentId filter is exact,
// results are ordered by relevance, topK below 1 yields nothing and
// re-adding an ID overwrites it.
// Backends call it from their own tests against a fresh, empty index.
func checkIndexContract(t *testing.T, idx VectorIndex) {
	t.Helper()
	ctx := context.Background()

	add := func(docID, name string, i, total int, text string, vec []float32) {
		t.Helper()
		err := idx.Add(ctx, Chunk{
			ID:     ChunkID(docID, i),
			Text:   text,
			Vector: vec,
			Meta:   ChunkMeta{DocumentID: docID, FileName: name, ChunkIndex: i, TotalChunks: total},
		})
		if err != nil {
			t.Fatalf("Add %s/%d: %v", docID, i, err)
		}
	}

	add("doc-a", "a.pdf", 0, 3, "alpha zero", []float32{1, 0, 0, 0})
	add("doc-a", "a.pdf", 1, 3, "alpha one", []float32{0.9, 0.1, 0, 0})
	add("doc-a", "a.pdf", 2, 3, "alpha two", []float32{0, 1, 0, 0})
	add("doc-ab", "ab.txt", 0, 1, "prefix neighbour", []float32{1, 0, 0, 0})
	add("doc-b", "b.docx", 0, 1, "bravo", []float32{1, 0, 0, 0})

	matches, err := idx.Query(ctx, []float32{1, 0, 0, 0}, Filter{DocumentID: "doc-a"}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2: %+v", len(matches), matches)
	}
	for _, m := range matches {
		if m.Meta.DocumentID != "doc-a" {
			t.Errorf("filter leaked chunk of %q", m.Meta.DocumentID)
		}
	}
	top := matches[0]
	want := ChunkMeta{DocumentID: "doc-a", FileName: "a.pdf", ChunkIndex: 0, TotalChunks: 3}
	if top.Text != "alpha zero" || top.Meta != want {
		t.Errorf("top match = %+v, want text %q meta %+v", top, "alpha zero", want)
	}
	if matches[1].Text != "alpha one" {
		t.Errorf("second match = %q, want %q", matches[1].Text, "alpha one")
	}
	if top.Score < matches[1].Score {
		t.Errorf("scores not descending: %v then %v", top.Score, matches[1].Score)
	}

	none, err := idx.Query(ctx, []float32{1, 0, 0, 0}, Filter{DocumentID: "doc-missing"}, 5)
	if err != nil {
		t.Fatalf("Query unknown document: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown document returned %d matches", len(none))
	}

	empty, err := idx.Query(ctx, []float32{1, 0, 0, 0}, Filter{}, 0)
	if err != nil {
		t.Fatalf("Query topK 0: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("topK 0 returned %d matches", len(empty))
	}

	add("doc-b", "b.docx", 0, 1, "bravo rewritten", []float32{1, 0, 0, 0})
	rewritten, err := idx.Query(ctx, []float32{1, 0, 0, 0}, Filter{DocumentID: "doc-b"}, 5)
	if err != nil {
		t.Fatalf("Query after overwrite: %v", err)
	}
	if len(rewritten) != 1 || rewritten[0].Text != "bravo rewritten" {
		t.Errorf("after overwrite = %+v, want one chunk %q", rewritten, "bravo rewritten")
	}
}

func TestMemoryIndex_Contract(t *testing.T) {
	t.Parallel()
	checkIndexContract(t, NewMemoryIndex())
}
