package metrics

import (
	"time"
)

// Time-series names exposed via GetTimeSeries.
const (
	SeriesThroughput   = "throughput"
	SeriesResponseTime = "response_time"
	SeriesCacheRatio   = "cache_hit_ratio"
	SeriesErrorRate    = "error_rate"
)

// DefaultRetention caps how long time-series points are kept.
const DefaultRetention = 24 * time.Hour

// Point is one sampled value.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// SeriesQuery narrows a GetTimeSeries read.
type SeriesQuery struct {
	Since time.Time
	Limit int // newest N points, 0 means all
}

type seriesStore struct {
	retention time.Duration
	series    map[string][]Point
}

func newSeriesStore(retention time.Duration) *seriesStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &seriesStore{
		retention: retention,
		series:    make(map[string][]Point),
	}
}

// append and get are serialized by the Collector's seriesMu.
func (s *seriesStore) append(name string, now time.Time, value float64) {
	pts := append(s.series[name], Point{Timestamp: now, Value: value})
	cutoff := now.Add(-s.retention)
	start := 0
	for start < len(pts) && pts[start].Timestamp.Before(cutoff) {
		start++
	}
	s.series[name] = pts[start:]
}

func (s *seriesStore) get(name string, q SeriesQuery) []Point {
	pts := s.series[name]
	if !q.Since.IsZero() {
		start := 0
		for start < len(pts) && pts[start].Timestamp.Before(q.Since) {
			start++
		}
		pts = pts[start:]
	}
	if q.Limit > 0 && len(pts) > q.Limit {
		pts = pts[len(pts)-q.Limit:]
	}
	return append([]Point(nil), pts...)
}

func (s *seriesStore) reset() {
	s.series = make(map[string][]Point)
}

// sampleLoop periodically derives throughput, average response time, cache
// hit ratio and error rate from counter deltas since the previous sample.
func (c *Collector) sampleLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prevTotal, prevFailed int64
	var prevSum float64
	var prevCount int64

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			if !c.enabled.Load() {
				continue
			}
			total := c.overall.total.Load()
			failed := c.overall.failed.Load()

			c.aggMu.Lock()
			sum, count := c.overallAgg.sum, c.overallAgg.count
			c.aggMu.Unlock()

			dTotal := total - prevTotal
			dFailed := failed - prevFailed
			dSum := sum - prevSum
			dCount := count - prevCount
			prevTotal, prevFailed, prevSum, prevCount = total, failed, sum, count

			throughput := float64(dTotal) / interval.Seconds()
			avgResp := 0.0
			if dCount > 0 {
				avgResp = dSum / float64(dCount)
			}
			errRate := 0.0
			if dTotal > 0 {
				errRate = float64(dFailed) / float64(dTotal)
			}

			c.seriesMu.Lock()
			c.series.append(SeriesThroughput, now, throughput)
			c.series.append(SeriesResponseTime, now, avgResp)
			c.series.append(SeriesCacheRatio, now, c.CacheHitRatio())
			c.series.append(SeriesErrorRate, now, errRate)
			c.seriesMu.Unlock()
		}
	}
}

// GetTimeSeries returns the retained points for one series, oldest first.
func (c *Collector) GetTimeSeries(name string, q SeriesQuery) []Point {
	c.seriesMu.Lock()
	defer c.seriesMu.Unlock()
	return c.series.get(name, q)
}
