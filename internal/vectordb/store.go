package vectordb

import "context"

// VectorStore stores and searches knowledge documents by embedding
// similarity.
type VectorStore interface {
	// AddDocuments adds or updates documents in the store.
	AddDocuments(ctx context.Context, docs []Document) error

	// Search performs a semantic search using the query text. Results
	// below minSimilarity are dropped.
	Search(ctx context.Context, query string, limit int, minSimilarity float32, filter *SearchFilter) ([]SearchResult, error)

	// GetByEntity retrieves all documents tagged with the given entity id.
	GetByEntity(ctx context.Context, entityID string) ([]Document, error)

	// DeleteByEntity removes all documents tagged with the given entity id.
	DeleteByEntity(ctx context.Context, entityID string) error

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of documents in the store.
	Count() int
}
