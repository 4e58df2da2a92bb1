// Package metrics tracks request counters, latency distribution, cache
// efficiency and time-series samples for the agent core. Recording is cheap
// and never fails a caller; disabled collectors drop everything.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultBuckets are the histogram boundaries in milliseconds. Samples above
// the last boundary land in the overflow bucket.
var DefaultBuckets = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

const (
	percentileBufferSize = 1000
	percentileMaxAge     = 10 * time.Second
)

// Handle marks one in-flight request.
type Handle struct {
	kind    string
	service string
	start   time.Time
	valid   bool
}

// Outcome reports how a request finished.
type Outcome struct {
	Success   bool
	FromCache bool
}

// counts groups the three request counters.
type counts struct {
	total   atomic.Int64
	success atomic.Int64
	failed  atomic.Int64
}

func (c *counts) record(success bool) {
	c.total.Add(1)
	if success {
		c.success.Add(1)
	} else {
		c.failed.Add(1)
	}
}

func (c *counts) snapshot() map[string]int64 {
	return map[string]int64{
		"total":     c.total.Load(),
		"succeeded": c.success.Load(),
		"failed":    c.failed.Load(),
	}
}

// aggregate keeps min/max/sum/count of response times in milliseconds.
type aggregate struct {
	min   float64
	max   float64
	sum   float64
	count int64
}

func (a *aggregate) observe(ms float64) {
	if a.count == 0 || ms < a.min {
		a.min = ms
	}
	if ms > a.max {
		a.max = ms
	}
	a.sum += ms
	a.count++
}

func (a *aggregate) snapshot() map[string]float64 {
	avg := 0.0
	if a.count > 0 {
		avg = a.sum / float64(a.count)
	}
	return map[string]float64{
		"min":     a.min,
		"max":     a.max,
		"sum":     a.sum,
		"count":   float64(a.count),
		"average": avg,
	}
}

// Percentiles are computed over the rolling response-time buffer.
type Percentiles struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// Options configure a Collector.
type Options struct {
	// HistogramBuckets overrides DefaultBuckets (milliseconds, ascending).
	HistogramBuckets []float64
	// SamplingInterval is the time-series sampling period. Zero disables
	// the background sampler.
	SamplingInterval time.Duration
	// Retention caps the age of retained time-series points.
	Retention time.Duration
}

// Collector is the performance-metrics component.
type Collector struct {
	enabled atomic.Bool
	logger  *zap.Logger

	overall   counts
	byKind    sync.Map // string -> *counts
	byService sync.Map // string -> *counts

	buckets      []float64
	bucketCounts []atomic.Int64 // len(buckets)+1, last is overflow

	aggMu      sync.Mutex
	overallAgg aggregate
	serviceAgg map[string]*aggregate

	bufMu       sync.Mutex
	buffer      []float64 // rolling response times, newest appended
	bufferNext  int
	bufferFull  bool
	cachedPct   Percentiles
	pctComputed time.Time

	cacheMu     sync.Mutex
	cacheHits   int64
	cacheMisses int64
	cacheByType map[string]*[2]int64 // hits, misses

	seriesMu sync.Mutex
	series   *seriesStore

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// New creates a Collector and, when a sampling interval is set, starts its
// time-series sampler.
func New(opts Options, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	buckets := opts.HistogramBuckets
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}

	c := &Collector{
		logger:       logger,
		buckets:      buckets,
		bucketCounts: make([]atomic.Int64, len(buckets)+1),
		serviceAgg:   make(map[string]*aggregate),
		cacheByType:  make(map[string]*[2]int64),
		buffer:       make([]float64, 0, percentileBufferSize),
		series:       newSeriesStore(opts.Retention),
		done:         make(chan struct{}),
	}
	c.enabled.Store(true)

	if opts.SamplingInterval > 0 {
		c.wg.Add(1)
		go c.sampleLoop(opts.SamplingInterval)
	}
	return c
}

// SetEnabled toggles recording. Reads keep working while disabled.
func (c *Collector) SetEnabled(on bool) { c.enabled.Store(on) }

// StartRequest opens a request handle.
func (c *Collector) StartRequest(kind, service string) Handle {
	return Handle{kind: kind, service: service, start: time.Now(), valid: true}
}

// EndRequest closes a handle, recording counters, latency and cache state.
func (c *Collector) EndRequest(h Handle, out Outcome) {
	if !h.valid || !c.enabled.Load() {
		return
	}
	elapsed := float64(time.Since(h.start).Microseconds()) / 1000.0
	c.record(h.kind, h.service, elapsed, out.Success)
	if out.FromCache {
		c.RecordCache(true, h.kind)
	}
}

// Observe records a response time directly (used by tests and by callers
// that measure latency themselves). Milliseconds.
func (c *Collector) Observe(kind, service string, ms float64, success bool) {
	if !c.enabled.Load() {
		return
	}
	c.record(kind, service, ms, success)
}

func (c *Collector) record(kind, service string, ms float64, success bool) {
	c.overall.record(success)
	if kind != "" {
		c.forKey(&c.byKind, kind).record(success)
	}
	if service != "" {
		c.forKey(&c.byService, service).record(success)
	}

	// Histogram: first bucket whose boundary contains the sample.
	idx := len(c.buckets) // overflow
	for i, bound := range c.buckets {
		if ms <= bound {
			idx = i
			break
		}
	}
	c.bucketCounts[idx].Add(1)

	c.aggMu.Lock()
	c.overallAgg.observe(ms)
	if service != "" {
		agg := c.serviceAgg[service]
		if agg == nil {
			agg = &aggregate{}
			c.serviceAgg[service] = agg
		}
		agg.observe(ms)
	}
	c.aggMu.Unlock()

	c.bufMu.Lock()
	if len(c.buffer) < percentileBufferSize {
		c.buffer = append(c.buffer, ms)
	} else {
		c.buffer[c.bufferNext] = ms
		c.bufferFull = true
	}
	c.bufferNext = (c.bufferNext + 1) % percentileBufferSize
	c.bufMu.Unlock()
}

func (c *Collector) forKey(m *sync.Map, key string) *counts {
	if v, ok := m.Load(key); ok {
		return v.(*counts)
	}
	v, _ := m.LoadOrStore(key, &counts{})
	return v.(*counts)
}

// RecordCache records a cache hit or miss, overall and per type.
func (c *Collector) RecordCache(hit bool, cacheType string) {
	if !c.enabled.Load() {
		return
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if hit {
		c.cacheHits++
	} else {
		c.cacheMisses++
	}
	if cacheType != "" {
		pair := c.cacheByType[cacheType]
		if pair == nil {
			pair = &[2]int64{}
			c.cacheByType[cacheType] = pair
		}
		if hit {
			pair[0]++
		} else {
			pair[1]++
		}
	}
}

// CacheHitRatio returns hits/(hits+misses), or 0 with no samples.
func (c *Collector) CacheHitRatio() float64 {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	total := c.cacheHits + c.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(c.cacheHits) / float64(total)
}

// GetPercentiles computes (or returns the cached) percentile values over the
// rolling buffer. Recomputation happens at most every 10 seconds.
func (c *Collector) GetPercentiles() Percentiles {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	if time.Since(c.pctComputed) < percentileMaxAge && c.pctComputed != (time.Time{}) {
		return c.cachedPct
	}
	c.cachedPct = computePercentiles(c.buffer)
	c.pctComputed = time.Now()
	return c.cachedPct
}

func computePercentiles(samples []float64) Percentiles {
	if len(samples) == 0 {
		return Percentiles{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	at := func(q float64) float64 {
		idx := int(q * float64(len(sorted)-1))
		return sorted[idx]
	}
	return Percentiles{
		P50: at(0.50),
		P90: at(0.90),
		P95: at(0.95),
		P99: at(0.99),
		Max: sorted[len(sorted)-1],
	}
}

// Histogram returns the bucket boundaries and counts, overflow last. The
// counts always sum to the number of recorded response times.
func (c *Collector) Histogram() ([]float64, []int64) {
	counts := make([]int64, len(c.bucketCounts))
	for i := range c.bucketCounts {
		counts[i] = c.bucketCounts[i].Load()
	}
	return append([]float64(nil), c.buckets...), counts
}

// Snapshot assembles the metrics for the requested category. An empty
// category returns everything.
func (c *Collector) Snapshot(category string) map[string]any {
	out := make(map[string]any)

	if category == "" || category == "requests" {
		req := map[string]any{"overall": c.overall.snapshot()}
		req["by_kind"] = dumpCounts(&c.byKind)
		req["by_service"] = dumpCounts(&c.byService)
		out["requests"] = req
	}

	if category == "" || category == "timing" {
		c.aggMu.Lock()
		timing := map[string]any{"overall": c.overallAgg.snapshot()}
		services := make(map[string]any, len(c.serviceAgg))
		for name, agg := range c.serviceAgg {
			services[name] = agg.snapshot()
		}
		timing["by_service"] = services
		c.aggMu.Unlock()

		bounds, counts := c.Histogram()
		timing["histogram"] = map[string]any{"bounds": bounds, "counts": counts}
		timing["percentiles"] = c.GetPercentiles()
		out["timing"] = timing
	}

	if category == "" || category == "cache" {
		c.cacheMu.Lock()
		byType := make(map[string]any, len(c.cacheByType))
		for name, pair := range c.cacheByType {
			byType[name] = map[string]int64{"hits": pair[0], "misses": pair[1]}
		}
		cache := map[string]any{
			"hits":    c.cacheHits,
			"misses":  c.cacheMisses,
			"by_type": byType,
		}
		c.cacheMu.Unlock()
		cache["hit_ratio"] = c.CacheHitRatio()
		out["cache"] = cache
	}

	return out
}

func clearMap(m *sync.Map) {
	m.Range(func(k, _ any) bool {
		m.Delete(k)
		return true
	})
}

func dumpCounts(m *sync.Map) map[string]any {
	out := make(map[string]any)
	m.Range(func(k, v any) bool {
		out[k.(string)] = v.(*counts).snapshot()
		return true
	})
	return out
}

// Reset clears the requested category, or everything with an empty category.
func (c *Collector) Reset(category string) {
	if category == "" || category == "requests" {
		c.overall.total.Store(0)
		c.overall.success.Store(0)
		c.overall.failed.Store(0)
		clearMap(&c.byKind)
		clearMap(&c.byService)
	}
	if category == "" || category == "timing" {
		for i := range c.bucketCounts {
			c.bucketCounts[i].Store(0)
		}
		c.aggMu.Lock()
		c.overallAgg = aggregate{}
		c.serviceAgg = make(map[string]*aggregate)
		c.aggMu.Unlock()

		c.bufMu.Lock()
		c.buffer = c.buffer[:0]
		c.bufferNext = 0
		c.bufferFull = false
		c.pctComputed = time.Time{}
		c.cachedPct = Percentiles{}
		c.bufMu.Unlock()
	}
	if category == "" || category == "cache" {
		c.cacheMu.Lock()
		c.cacheHits = 0
		c.cacheMisses = 0
		c.cacheByType = make(map[string]*[2]int64)
		c.cacheMu.Unlock()
	}
	if category == "" || category == "timeseries" {
		c.seriesMu.Lock()
		c.series.reset()
		c.seriesMu.Unlock()
	}
}

// Destroy stops the background sampler.
func (c *Collector) Destroy() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}
