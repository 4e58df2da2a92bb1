package vectordb

import (
	"context"
	"testing"
	"time"
)

// mapEmbedder returns fixed vectors per text so similarity ordering is
// controlled by the test.
type mapEmbedder struct {
	vectors map[string][]float32
}

func (m *mapEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := m.vectors[t]
		if !ok {
			v = []float32{0.1, 0.1, 0.1}
		}
		out[i] = v
	}
	return out, nil
}

func (m *mapEmbedder) Dimensions() int {
	return 3
}

func (m *mapEmbedder) Name() string {
	return "map-embedder"
}

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	emb := &mapEmbedder{vectors: map[string][]float32{
		"stand A12 has a wide apron":        {1, 0, 0},
		"stand B3 is under maintenance":     {0, 1, 0},
		"terminal 2 pier layout":            {0, 0, 1},
		"wide apron stands":                 {0.95, 0.05, 0},
		"maintenance work":                  {0.05, 0.95, 0},
	}}
	store, err := NewChromemStore(emb)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	return store
}

func seedDocs(t *testing.T, store *ChromemStore) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	docs := []Document{
		{
			ID:      "doc-a12",
			Content: "stand A12 has a wide apron",
			Metadata: DocumentMetadata{
				Source:    SourceStandNotes,
				EntityID:  "A12",
				Terminal:  "T1",
				UpdatedAt: now,
			},
		},
		{
			ID:      "doc-b3",
			Content: "stand B3 is under maintenance",
			Metadata: DocumentMetadata{
				Source:    SourceMaintenanceLog,
				EntityID:  "B3",
				Terminal:  "T1",
				UpdatedAt: now,
			},
		},
		{
			ID:      "doc-t2",
			Content: "terminal 2 pier layout",
			Metadata: DocumentMetadata{
				Source:    SourceOperationalDocs,
				EntityID:  "T2",
				Terminal:  "T2",
				UpdatedAt: now,
			},
		},
	}
	if err := store.AddDocuments(context.Background(), docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
}

func TestSearchRanksBySimilarity(t *testing.T) {
	store := newTestStore(t)
	seedDocs(t, store)

	results, err := store.Search(context.Background(), "wide apron stands", 3, 0, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}
	if results[0].Document.ID != "doc-a12" {
		t.Fatalf("top result = %s, want doc-a12", results[0].Document.ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Fatal("results not sorted by similarity")
		}
	}
}

func TestSearchSimilarityFloor(t *testing.T) {
	store := newTestStore(t)
	seedDocs(t, store)

	results, err := store.Search(context.Background(), "wide apron stands", 3, 0.9, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Similarity < 0.9 {
			t.Fatalf("result %s below floor: %v", r.Document.ID, r.Similarity)
		}
	}
	if len(results) != 1 || results[0].Document.ID != "doc-a12" {
		t.Fatalf("floor kept wrong results: %+v", results)
	}
}

func TestSearchWithSourceFilter(t *testing.T) {
	store := newTestStore(t)
	seedDocs(t, store)

	src := SourceMaintenanceLog
	results, err := store.Search(context.Background(), "maintenance work", 3, 0, &SearchFilter{Source: &src})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Document.ID != "doc-b3" {
		t.Fatalf("filter returned %+v", results)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), "anything", 5, 0, nil)
	if err != nil {
		t.Fatalf("Search on empty store: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("empty store returned %d results", len(results))
	}
}

func TestGetAndDeleteByEntity(t *testing.T) {
	store := newTestStore(t)
	seedDocs(t, store)

	docs, err := store.GetByEntity(context.Background(), "B3")
	if err != nil {
		t.Fatalf("GetByEntity: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-b3" {
		t.Fatalf("GetByEntity returned %+v", docs)
	}

	if err := store.DeleteByEntity(context.Background(), "B3"); err != nil {
		t.Fatalf("DeleteByEntity: %v", err)
	}
	if store.Count() != 2 {
		t.Fatalf("count after delete = %d, want 2", store.Count())
	}
}

func TestPersistAndLoad(t *testing.T) {
	store := newTestStore(t)
	seedDocs(t, store)

	dir := t.TempDir()
	if err := store.Persist(context.Background(), dir); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	restored := newTestStore(t)
	if err := restored.Load(context.Background(), dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if restored.Count() != 3 {
		t.Fatalf("restored count = %d, want 3", restored.Count())
	}

	docs, err := restored.GetByEntity(context.Background(), "A12")
	if err != nil {
		t.Fatalf("GetByEntity after load: %v", err)
	}
	if len(docs) != 1 || docs[0].Metadata.Terminal != "T1" {
		t.Fatalf("metadata lost on round trip: %+v", docs)
	}
}

func TestToContextual(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	results := []SearchResult{{
		Document: Document{
			ID:      "doc-1",
			Content: "stand notes",
			Metadata: DocumentMetadata{
				Source:    SourceStandNotes,
				UpdatedAt: ts,
			},
		},
		Similarity: 0.87,
	}}

	items := ToContextual(results)
	if len(items) != 1 {
		t.Fatalf("got %d items", len(items))
	}
	item := items[0]
	if item.ID != "doc-1" || item.Source != string(SourceStandNotes) {
		t.Fatalf("identity fields wrong: %+v", item)
	}
	if item.Similarity != 0.87 || !item.Timestamp.Equal(ts) {
		t.Fatalf("score or timestamp wrong: %+v", item)
	}
}
