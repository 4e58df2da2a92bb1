// Package retrieval selects and runs the knowledge-retrieval strategy for a
// query: structured facts from the domain data services, contextual items
// from vector search and long-term memory, or both combined.
package retrieval

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/apronworks/apron-agent/internal/airportdata"
	"github.com/apronworks/apron-agent/internal/knowledge"
	"github.com/apronworks/apron-agent/internal/llm"
	"github.com/apronworks/apron-agent/internal/memory"
	"github.com/apronworks/apron-agent/internal/parallel"
	"github.com/apronworks/apron-agent/internal/vectordb"
)

// DataService is the slice of the structured data store that retrieval
// dispatches to.
type DataService interface {
	StandByName(ctx context.Context, name string) (*airportdata.Stand, error)
	StandsByTerminal(ctx context.Context, terminal string) ([]airportdata.Stand, error)
	StandsByPier(ctx context.Context, pier string) ([]airportdata.Stand, error)
	AirportByCode(ctx context.Context, iata string) (*airportdata.Airport, error)
	AirlineByCode(ctx context.Context, iata string) (*airportdata.Airline, error)
	AircraftTypeByCode(ctx context.Context, icao string) (*airportdata.AircraftType, error)
	MaintenanceByStand(ctx context.Context, standName string) ([]airportdata.MaintenanceRequest, error)
	MaintenanceInWindow(ctx context.Context, from, to time.Time) ([]airportdata.MaintenanceRequest, error)
	Settings(ctx context.Context) ([]airportdata.OperationalSetting, error)
}

// VectorSearcher is the semantic-search collaborator.
type VectorSearcher interface {
	Search(ctx context.Context, query string, limit int, minSimilarity float32, filter *vectordb.SearchFilter) ([]vectordb.SearchResult, error)
}

// LongTermMemory recalls user-scoped memories by similarity.
type LongTermMemory interface {
	Retrieve(ctx context.Context, text, userID string, limit int) ([]knowledge.Contextual, error)
}

const (
	defaultVectorTopK    = 5
	defaultSimilarityMin = 0.3
	defaultLongTermLimit = 3
)

// RetrieverOptions tune the vector path.
type RetrieverOptions struct {
	VectorTopK    int
	SimilarityMin float32
	LongTermLimit int
}

// Retriever runs knowledge retrieval for the pipeline.
type Retriever struct {
	data     DataService
	vector   VectorSearcher
	longterm LongTermMemory
	workmem  *memory.Working
	exec     *parallel.Executor
	logger   *zap.Logger
	opts     RetrieverOptions

	// onUpstreamFailure is notified whenever a backend fails and the
	// retrieval degrades around it.
	onUpstreamFailure func(source string)
}

// NewRetriever wires a Retriever. Any collaborator except working memory
// may be nil; absent backends narrow the capability set.
func NewRetriever(data DataService, vector VectorSearcher, longterm LongTermMemory, workmem *memory.Working, opts RetrieverOptions, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.VectorTopK <= 0 {
		opts.VectorTopK = defaultVectorTopK
	}
	if opts.SimilarityMin <= 0 {
		opts.SimilarityMin = defaultSimilarityMin
	}
	if opts.LongTermLimit <= 0 {
		opts.LongTermLimit = defaultLongTermLimit
	}
	return &Retriever{
		data:     data,
		vector:   vector,
		longterm: longterm,
		workmem:  workmem,
		exec:     parallel.NewExecutor(2, logger),
		logger:   logger,
		opts:     opts,
	}
}

// Destroy stops the retriever's fan-out executor.
func (r *Retriever) Destroy() {
	r.exec.Destroy()
}

// OnUpstreamFailure registers a callback invoked once per failed backend
// during a retrieval.
func (r *Retriever) OnUpstreamFailure(fn func(source string)) {
	r.onUpstreamFailure = fn
}

// Capabilities reports which backends are wired.
func (r *Retriever) Capabilities() Capabilities {
	return Capabilities{
		Structured: r.data != nil,
		Vector:     r.vector != nil || r.longterm != nil,
	}
}

// Request carries everything retrieval needs for one query.
type Request struct {
	SessionID  string
	UserID     string
	QueryText  string
	Extraction *llm.Extraction
}

// Retrieve serves the query from the working-memory cache when possible,
// otherwise runs the selected strategy. A single failing backend degrades
// the result instead of failing it.
func (r *Retriever) Retrieve(ctx context.Context, req Request) knowledge.ResultSet {
	x := req.Extraction
	if x == nil {
		x = &llm.Extraction{Intent: llm.IntentUnknown}
	}

	if r.workmem != nil && x.Intent != llm.IntentUnknown {
		if cached, ok := r.workmem.CachedKnowledge(req.SessionID, x.Intent, x.Entities); ok {
			r.logger.Debug("retrieval cache hit",
				zap.String("session", req.SessionID),
				zap.String("intent", string(x.Intent)))
			result := *cached
			result.Metadata.FromCache = true
			return result
		}
	}

	strategy := SelectStrategy(x, req.QueryText, r.Capabilities())
	result := r.run(ctx, strategy, req, x)

	result.Metadata.Strategy = strategy
	result.Metadata.Timestamp = time.Now().UTC()
	result.Metadata.QueryText = req.QueryText
	result.Metadata.FactCount = len(result.Facts)
	result.Metadata.ContextualCount = len(result.Contextual)
	result.Metadata.Sources = collectSources(result)

	return result
}

func (r *Retriever) run(ctx context.Context, strategy knowledge.Strategy, req Request, x *llm.Extraction) knowledge.ResultSet {
	switch strategy {
	case knowledge.StrategyStructured:
		facts, degraded := r.structured(ctx, x)
		return knowledge.ResultSet{Facts: facts, Metadata: knowledge.Metadata{Degraded: degraded}}

	case knowledge.StrategyVector:
		items, degraded := r.vectorSearch(ctx, req)
		return knowledge.ResultSet{Contextual: items, Metadata: knowledge.Metadata{Degraded: degraded}}

	default: // combined
		var facts []knowledge.Fact
		var items []knowledge.Contextual
		var factsDegraded, vectorDegraded []string

		// Both backends run concurrently; neither can fail the other.
		tasks := []parallel.Task{
			func(ctx context.Context) (any, error) {
				facts, factsDegraded = r.structured(ctx, x)
				return nil, nil
			},
			func(ctx context.Context) (any, error) {
				items, vectorDegraded = r.vectorSearch(ctx, req)
				return nil, nil
			},
		}
		_, _ = r.exec.Execute(ctx, tasks, parallel.Options{MaxConcurrent: len(tasks)})

		return knowledge.ResultSet{
			Facts:      facts,
			Contextual: dedupe(items),
			Metadata:   knowledge.Metadata{Degraded: append(factsDegraded, vectorDegraded...)},
		}
	}
}

// vectorSearch merges vector-store hits with long-term memories, deduped and
// sorted by similarity.
func (r *Retriever) vectorSearch(ctx context.Context, req Request) ([]knowledge.Contextual, []string) {
	var items []knowledge.Contextual
	var degraded []string

	if r.vector != nil {
		results, err := r.vector.Search(ctx, req.QueryText, r.opts.VectorTopK, r.opts.SimilarityMin, nil)
		if err != nil {
			r.logger.Warn("vector search failed", zap.Error(err))
			if r.onUpstreamFailure != nil {
				r.onUpstreamFailure("vector-search")
			}
			degraded = append(degraded, "vector-search")
		} else {
			items = append(items, vectordb.ToContextual(results)...)
		}
	}

	if r.longterm != nil && req.UserID != "" {
		memories, err := r.longterm.Retrieve(ctx, req.QueryText, req.UserID, r.opts.LongTermLimit)
		if err != nil {
			r.logger.Warn("long-term memory recall failed", zap.Error(err))
			if r.onUpstreamFailure != nil {
				r.onUpstreamFailure("long-term-memory")
			}
			degraded = append(degraded, "long-term-memory")
		} else {
			items = append(items, memories...)
		}
	}

	items = dedupe(items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Similarity > items[j].Similarity
	})
	return items, degraded
}

// dedupe drops contextual items sharing a dedupe key, keeping the first.
func dedupe(items []knowledge.Contextual) []knowledge.Contextual {
	if len(items) < 2 {
		return items
	}
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		key := item.DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func collectSources(rs knowledge.ResultSet) []string {
	seen := make(map[string]bool)
	var sources []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			sources = append(sources, s)
		}
	}
	for _, f := range rs.Facts {
		add(f.Source)
	}
	for _, c := range rs.Contextual {
		add(c.Source)
	}
	sort.Strings(sources)
	return sources
}
