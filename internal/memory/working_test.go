package memory

import (
	"fmt"
	"testing"

	"github.com/apronworks/apron-agent/internal/knowledge"
	"github.com/apronworks/apron-agent/internal/llm"
)

func TestEntityMentionsKeyedBySessionAndQuery(t *testing.T) {
	w := NewWorking(Options{}, nil)

	mentions := []llm.EntityMention{{Kind: "stand", Value: "A1", Confidence: 0.95}}
	w.StoreEntityMentions("s1", "q1", mentions)

	got := w.EntityMentions("s1", "q1")
	if len(got) != 1 || got[0].Value != "A1" {
		t.Fatalf("unexpected mentions: %v", got)
	}
	if w.EntityMentions("s1", "q2") != nil {
		t.Error("different query must not share mentions")
	}
	if w.EntityMentions("s2", "q1") != nil {
		t.Error("different session must not share mentions")
	}
}

func TestEmptyMentionsNotStored(t *testing.T) {
	w := NewWorking(Options{}, nil)
	w.StoreEntityMentions("s1", "q1", nil)
	if w.EntityMentions("s1", "q1") != nil {
		t.Error("empty mention lists must not create entries")
	}
}

func TestGetRetrievalContextWindow(t *testing.T) {
	w := NewWorking(Options{}, nil)

	for i := 1; i <= 4; i++ {
		qid := fmt.Sprintf("q%d", i)
		w.StoreEntityMentions("s1", qid, []llm.EntityMention{
			{Kind: "stand", Value: fmt.Sprintf("A%d", i), Confidence: 0.9},
		})
		w.StoreRetrievalContext("s1", qid, RetrievalContext{
			Strategy:  knowledge.StrategyStructured,
			Intent:    llm.IntentStandStatus,
			QueryText: fmt.Sprintf("query %d", i),
		})
	}

	win := w.GetRetrievalContext("s1", "q5", WindowOptions{EntityLimit: 2, HistoryLimit: 3})
	if len(win.RecentEntities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(win.RecentEntities))
	}
	// Newest first.
	if win.RecentEntities[0].Value != "A4" || win.RecentEntities[1].Value != "A3" {
		t.Errorf("unexpected entity order: %v", win.RecentEntities)
	}
	if len(win.RetrievalHistory) != 3 {
		t.Errorf("expected 3 history entries, got %d", len(win.RetrievalHistory))
	}
	if win.RetrievalHistory[0].QueryText != "query 4" {
		t.Errorf("history not newest-first: %v", win.RetrievalHistory[0])
	}
}

func TestGetRetrievalContextExcludesCurrentQuery(t *testing.T) {
	w := NewWorking(Options{}, nil)
	w.StoreEntityMentions("s1", "q1", []llm.EntityMention{{Kind: "stand", Value: "A1"}})

	win := w.GetRetrievalContext("s1", "q1", WindowOptions{})
	if len(win.RecentEntities) != 0 {
		t.Errorf("current query must be excluded, got %v", win.RecentEntities)
	}
}

func TestKnowledgeCacheHit(t *testing.T) {
	w := NewWorking(Options{}, nil)
	entities := map[string]string{"stand": "A1"}
	rs := knowledge.ResultSet{
		Facts: []knowledge.Fact{{Source: "stand-data-service", Kind: "stand"}},
	}

	w.StoreRetrievedKnowledge("s1", "q1", llm.IntentStandStatus, entities, rs)

	cached, ok := w.CachedKnowledge("s1", llm.IntentStandStatus, map[string]string{"stand": "A1"})
	if !ok {
		t.Fatal("expected cache hit for identical intent and entities")
	}
	if len(cached.Facts) != 1 {
		t.Errorf("unexpected cached items: %+v", cached)
	}

	if _, ok := w.CachedKnowledge("s1", llm.IntentStandStatus, map[string]string{"stand": "B2"}); ok {
		t.Error("different entities must miss")
	}
	if _, ok := w.CachedKnowledge("s2", llm.IntentStandStatus, entities); ok {
		t.Error("different session must miss")
	}
}

func TestEmptyResultsNotCached(t *testing.T) {
	w := NewWorking(Options{}, nil)
	w.StoreRetrievedKnowledge("s1", "q1", llm.IntentStandStatus, nil, knowledge.ResultSet{})
	if _, ok := w.CachedKnowledge("s1", llm.IntentStandStatus, nil); ok {
		t.Error("empty result sets must not be cache hits")
	}
}

func TestPerSessionEntryEviction(t *testing.T) {
	w := NewWorking(Options{MaxEntriesPerSession: 2}, nil)

	for i := 1; i <= 3; i++ {
		w.StoreEntityMentions("s1", fmt.Sprintf("q%d", i), []llm.EntityMention{
			{Kind: "stand", Value: fmt.Sprintf("A%d", i)},
		})
	}

	if got := w.EntityMentions("s1", "q1"); got != nil {
		t.Errorf("oldest entry should be evicted, got %v", got)
	}
	if got := w.EntityMentions("s1", "q3"); len(got) != 1 {
		t.Errorf("newest entry must survive, got %v", got)
	}
}

func TestSessionFIFOEviction(t *testing.T) {
	w := NewWorking(Options{MaxSessions: 2}, nil)

	w.StoreEntityMentions("s1", "q", []llm.EntityMention{{Kind: "stand", Value: "A1"}})
	w.StoreEntityMentions("s2", "q", []llm.EntityMention{{Kind: "stand", Value: "A2"}})
	w.StoreEntityMentions("s3", "q", []llm.EntityMention{{Kind: "stand", Value: "A3"}})

	if w.SessionCount() != 2 {
		t.Fatalf("expected 2 sessions, got %d", w.SessionCount())
	}
	if got := w.EntityMentions("s1", "q"); got != nil {
		t.Error("oldest session should be evicted")
	}
	if got := w.EntityMentions("s3", "q"); len(got) != 1 {
		t.Error("newest session must survive")
	}
}

func TestCacheKeyCanonicalization(t *testing.T) {
	a := knowledge.CacheKey("stand.status", map[string]string{"b": "2", "a": "1"})
	b := knowledge.CacheKey("stand.status", map[string]string{"a": "1", "b": "2"})
	if a != b {
		t.Errorf("cache key must be order independent: %q vs %q", a, b)
	}
}
