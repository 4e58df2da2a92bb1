package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/apronworks/apron-agent/internal/embeddings"
	"github.com/apronworks/apron-agent/internal/knowledge"
)

// SourceLongTerm tags contextual items originating from long-term memory.
const SourceLongTerm = "long-term-memory"

// LongTerm is the user-scoped long-term memory collaborator, backed by a
// chromem-go collection per user.
type LongTerm struct {
	mu        sync.Mutex
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc
	logger    *zap.Logger
}

// NewLongTerm creates a long-term memory store over the given embedder.
func NewLongTerm(embedder embeddings.Embedder, logger *zap.Logger) *LongTerm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LongTerm{
		db:        chromem.NewDB(),
		embedFunc: embeddings.ToChromemFunc(embedder),
		logger:    logger,
	}
}

func (l *LongTerm) collection(userID string) (*chromem.Collection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.GetOrCreateCollection("memory-"+userID, nil, l.embedFunc)
}

// Record stores a memory for the user.
func (l *LongTerm) Record(ctx context.Context, userID, content, source string) error {
	if content == "" {
		return nil
	}
	if source == "" {
		source = SourceLongTerm
	}
	col, err := l.collection(userID)
	if err != nil {
		return fmt.Errorf("long-term collection: %w", err)
	}

	doc := chromem.Document{
		ID:      uuid.New().String(),
		Content: content,
		Metadata: map[string]string{
			"source":      source,
			"recorded_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	return col.AddDocuments(ctx, []chromem.Document{doc}, 1)
}

// Retrieve returns the user's memories most similar to the text.
func (l *LongTerm) Retrieve(ctx context.Context, text, userID string, limit int) ([]knowledge.Contextual, error) {
	if limit <= 0 {
		limit = 5
	}
	col, err := l.collection(userID)
	if err != nil {
		return nil, fmt.Errorf("long-term collection: %w", err)
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.Query(ctx, text, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("long-term query: %w", err)
	}

	items := make([]knowledge.Contextual, 0, len(results))
	for _, r := range results {
		ts, _ := time.Parse(time.RFC3339, r.Metadata["recorded_at"])
		source := r.Metadata["source"]
		if source == "" {
			source = SourceLongTerm
		}
		items = append(items, knowledge.Contextual{
			ID:         r.ID,
			Source:     source,
			Content:    r.Content,
			Similarity: r.Similarity,
			Timestamp:  ts,
		})
	}
	return items, nil
}
