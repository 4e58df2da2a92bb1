// Package memory holds the per-session working memory bridging sequential
// queries, and the chromem-backed long-term memory collaborator.
package memory

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apronworks/apron-agent/internal/knowledge"
	"github.com/apronworks/apron-agent/internal/llm"
)

const (
	defaultMaxSessions          = 200
	defaultMaxEntriesPerSession = 50
)

// RetrievalContext is the per-query snapshot of what retrieval was asked.
type RetrievalContext struct {
	Strategy  knowledge.Strategy
	Intent    llm.Intent
	Entities  map[string]string
	QueryText string
}

// RetrievedKnowledge pairs a result set with the query it answered.
type RetrievedKnowledge struct {
	Items    knowledge.ResultSet
	StoredAt time.Time
}

// ContextWindow is what GetRetrievalContext returns: the session's recent
// entities and retrieval history, newest first.
type ContextWindow struct {
	RecentEntities   []llm.EntityMention
	RetrievalHistory []RetrievalContext
}

// WindowOptions bound the context window.
type WindowOptions struct {
	EntityLimit  int
	HistoryLimit int
}

type queryEntry struct {
	queryID   string
	mentions  []llm.EntityMention
	retrieval *RetrievalContext
	knowledge *RetrievedKnowledge
	cacheKey  string
	storedAt  time.Time
}

type session struct {
	mu      sync.Mutex
	order   []string // query ids, oldest first
	entries map[string]*queryEntry
	cache   map[string]*queryEntry // cache key -> entry with knowledge
	created time.Time
}

// Working is the bounded per-session scratchpad. Sessions are evicted FIFO
// by age; each session keeps at most maxEntries query entries.
type Working struct {
	mu         sync.Mutex
	sessions   map[string]*session
	sessionAge []string // session ids, oldest first

	maxSessions int
	maxEntries  int
	logger      *zap.Logger
}

// Options configure the working memory bounds.
type Options struct {
	MaxSessions          int
	MaxEntriesPerSession int
}

// NewWorking creates a working memory store.
func NewWorking(opts Options, logger *zap.Logger) *Working {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = defaultMaxSessions
	}
	if opts.MaxEntriesPerSession <= 0 {
		opts.MaxEntriesPerSession = defaultMaxEntriesPerSession
	}
	return &Working{
		sessions:    make(map[string]*session),
		maxSessions: opts.MaxSessions,
		maxEntries:  opts.MaxEntriesPerSession,
		logger:      logger,
	}
}

// session returns (creating if needed) the session state, evicting the
// oldest session when the bound is exceeded.
func (w *Working) session(sessionID string) *session {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.sessions[sessionID]
	if ok {
		return s
	}

	if len(w.sessionAge) >= w.maxSessions {
		oldest := w.sessionAge[0]
		w.sessionAge = w.sessionAge[1:]
		delete(w.sessions, oldest)
		w.logger.Debug("evicted working-memory session", zap.String("session", oldest))
	}

	s = &session{
		entries: make(map[string]*queryEntry),
		cache:   make(map[string]*queryEntry),
		created: time.Now(),
	}
	w.sessions[sessionID] = s
	w.sessionAge = append(w.sessionAge, sessionID)
	return s
}

// entry returns (creating if needed) the per-query entry, evicting the
// session's oldest query when the per-session bound is exceeded.
// Caller must hold s.mu.
func (w *Working) entry(s *session, queryID string) *queryEntry {
	e, ok := s.entries[queryID]
	if ok {
		return e
	}

	if len(s.order) >= w.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		if old := s.entries[oldest]; old != nil && old.cacheKey != "" {
			delete(s.cache, old.cacheKey)
		}
		delete(s.entries, oldest)
	}

	e = &queryEntry{queryID: queryID, storedAt: time.Now()}
	s.entries[queryID] = e
	s.order = append(s.order, queryID)
	return e
}

// StoreEntityMentions records the entities mentioned in a query.
func (w *Working) StoreEntityMentions(sessionID, queryID string, mentions []llm.EntityMention) {
	if len(mentions) == 0 {
		return
	}
	s := w.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e := w.entry(s, queryID)
	e.mentions = append([]llm.EntityMention(nil), mentions...)
}

// StoreRetrievalContext records what retrieval was asked for a query.
func (w *Working) StoreRetrievalContext(sessionID, queryID string, rc RetrievalContext) {
	s := w.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e := w.entry(s, queryID)
	copied := rc
	copied.Entities = copyMap(rc.Entities)
	e.retrieval = &copied
}

// StoreRetrievedKnowledge records a query's retrieval results and indexes
// them under (intent, entity-map) for cache lookups.
func (w *Working) StoreRetrievedKnowledge(sessionID, queryID string, intent llm.Intent, entities map[string]string, items knowledge.ResultSet) {
	s := w.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e := w.entry(s, queryID)
	e.knowledge = &RetrievedKnowledge{Items: items, StoredAt: time.Now()}

	if !items.Empty() {
		key := knowledge.CacheKey(string(intent), entities)
		e.cacheKey = key
		s.cache[key] = e
	}
}

// CachedKnowledge returns a previously retrieved result set for the same
// (intent, entity-map) within the session, if one with items exists.
func (w *Working) CachedKnowledge(sessionID string, intent llm.Intent, entities map[string]string) (*knowledge.ResultSet, bool) {
	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	w.mu.Unlock()
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[knowledge.CacheKey(string(intent), entities)]
	if !ok || e.knowledge == nil || e.knowledge.Items.Empty() {
		return nil, false
	}
	copied := e.knowledge.Items
	return &copied, true
}

// EntityMentions returns the mentions stored for one query.
func (w *Working) EntityMentions(sessionID, queryID string) []llm.EntityMention {
	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	w.mu.Unlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[queryID]
	if !ok {
		return nil
	}
	return append([]llm.EntityMention(nil), e.mentions...)
}

// GetRetrievalContext assembles the session's recent entities and retrieval
// history, newest first, bounded by the window options.
func (w *Working) GetRetrievalContext(sessionID, queryID string, opts WindowOptions) ContextWindow {
	if opts.EntityLimit <= 0 {
		opts.EntityLimit = 10
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 5
	}

	var win ContextWindow

	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	w.mu.Unlock()
	if !ok {
		return win
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		qid := s.order[i]
		if qid == queryID {
			continue
		}
		e := s.entries[qid]
		if e == nil {
			continue
		}
		if len(win.RecentEntities) < opts.EntityLimit {
			for _, m := range e.mentions {
				if len(win.RecentEntities) >= opts.EntityLimit {
					break
				}
				win.RecentEntities = append(win.RecentEntities, m)
			}
		}
		if e.retrieval != nil && len(win.RetrievalHistory) < opts.HistoryLimit {
			win.RetrievalHistory = append(win.RetrievalHistory, *e.retrieval)
		}
		if len(win.RecentEntities) >= opts.EntityLimit && len(win.RetrievalHistory) >= opts.HistoryLimit {
			break
		}
	}
	return win
}

// SessionCount reports how many sessions are held (test hook).
func (w *Working) SessionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
