// Package knowledge defines the item types exchanged between retrieval,
// working memory and the agent pipeline.
package knowledge

import (
	"sort"
	"strings"
	"time"
)

// Strategy identifies the retrieval path chosen for a query.
type Strategy string

const (
	StrategyStructured Strategy = "structured"
	StrategyVector     Strategy = "vector"
	StrategyCombined   Strategy = "combined"
)

// Fact is a structured record contributed by a domain data service.
type Fact struct {
	Source string         `json:"source"`
	Kind   string         `json:"kind"`
	Data   map[string]any `json:"data"`
}

// Contextual is an unstructured excerpt from vector search or long-term
// memory, optionally carrying a similarity score.
type Contextual struct {
	ID         string    `json:"id,omitempty"`
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	Similarity float32   `json:"similarity,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// DedupeKey identifies a contextual item for de-duplication: source, id and
// the first 50 characters of content.
func (c Contextual) DedupeKey() string {
	content := c.Content
	if len(content) > 50 {
		content = content[:50]
	}
	return c.Source + "\x00" + c.ID + "\x00" + content
}

// Metadata describes how a result set was produced.
type Metadata struct {
	Strategy        Strategy  `json:"strategy"`
	Timestamp       time.Time `json:"timestamp"`
	FactCount       int       `json:"fact_count"`
	ContextualCount int       `json:"contextual_count"`
	Sources         []string  `json:"sources,omitempty"`
	QueryText       string    `json:"query_text,omitempty"`
	// Degraded lists backends that failed and were skipped.
	Degraded []string `json:"degraded,omitempty"`
	// FromCache marks a result served from working memory.
	FromCache bool `json:"from_cache,omitempty"`
}

// ResultSet is the retrieval output envelope.
type ResultSet struct {
	Facts      []Fact       `json:"facts"`
	Contextual []Contextual `json:"contextual"`
	Metadata   Metadata     `json:"metadata"`
}

// Empty reports whether the result set carries no items.
func (r *ResultSet) Empty() bool {
	return len(r.Facts) == 0 && len(r.Contextual) == 0
}

// CacheKey canonicalizes an intent and entity map into a stable lookup key.
func CacheKey(intent string, entities map[string]string) string {
	if len(entities) == 0 {
		return intent
	}
	pairs := make([]string, 0, len(entities))
	for k, v := range entities {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return intent + "|" + strings.Join(pairs, ",")
}
