package vectordb

import (
	"context"
	"fmt"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/apronworks/apron-agent/internal/embeddings"
	"github.com/apronworks/apron-agent/internal/knowledge"
)

const collectionName = "airport-knowledge"

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadataToMap(doc.Metadata),
		}
	}

	return s.collection.AddDocuments(ctx, chromDocs, 1)
}

func (s *ChromemStore) Search(ctx context.Context, query string, limit int, minSimilarity float32, filter *SearchFilter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= collection size.
	if count := s.collection.Count(); count == 0 {
		return nil, nil
	} else if limit > count {
		limit = count
	}

	where := buildWhereClause(filter)

	results, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity < minSimilarity {
			continue
		}
		out = append(out, SearchResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		})
	}

	return out, nil
}

func (s *ChromemStore) GetByEntity(ctx context.Context, entityID string) ([]Document, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	where := map[string]string{"entity_id": entityID}

	// Use the entity id as the query text with count as limit so every
	// matching document comes back.
	results, err := s.collection.Query(ctx, entityID, count, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query by entity: %w", err)
	}

	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = Document{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: mapToMetadata(r.Metadata),
		}
	}

	return docs, nil
}

func (s *ChromemStore) DeleteByEntity(ctx context.Context, entityID string) error {
	where := map[string]string{"entity_id": entityID}
	return s.collection.Delete(ctx, where, nil)
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/chromem.gob.gz", true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	err := s.db.ImportFromFile(dir+"/chromem.gob.gz", "")
	if err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// ToContextual converts search results into retrieval items.
func ToContextual(results []SearchResult) []knowledge.Contextual {
	items := make([]knowledge.Contextual, len(results))
	for i, r := range results {
		items[i] = knowledge.Contextual{
			ID:         r.Document.ID,
			Source:     string(r.Document.Metadata.Source),
			Content:    r.Document.Content,
			Similarity: r.Similarity,
			Timestamp:  r.Document.Metadata.UpdatedAt,
		}
	}
	return items
}

func metadataToMap(m DocumentMetadata) map[string]string {
	return map[string]string{
		"source":     string(m.Source),
		"entity_id":  m.EntityID,
		"terminal":   m.Terminal,
		"updated_at": m.UpdatedAt.Format(time.RFC3339),
	}
}

func mapToMetadata(m map[string]string) DocumentMetadata {
	updatedAt, _ := time.Parse(time.RFC3339, m["updated_at"])
	return DocumentMetadata{
		Source:    Source(m["source"]),
		EntityID:  m["entity_id"],
		Terminal:  m["terminal"],
		UpdatedAt: updatedAt,
	}
}

func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.Source != nil {
		where["source"] = string(*filter.Source)
	}
	if filter.EntityID != nil {
		where["entity_id"] = *filter.EntityID
	}
	if filter.Terminal != nil {
		where["terminal"] = *filter.Terminal
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
