// Package monitor samples host and process resource usage on a fixed
// interval, keeps rolling windows with hourly and daily rollups, and raises
// threshold alerts to registered callbacks.
package monitor

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the sampling period.
	DefaultInterval = 60 * time.Second
	// DefaultMaxSamples bounds the raw sample window.
	DefaultMaxSamples = 1440
	// maxAlerts bounds the retained alert list. Older alerts are dropped
	// first.
	maxAlerts = 1000

	hourlyRetention = 48 * time.Hour
	dailyRetention  = 30 * 24 * time.Hour
)

// Sample is one point-in-time resource snapshot.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`

	SystemCPUPercent  float64 `json:"system_cpu_percent"`
	SystemMemPercent  float64 `json:"system_mem_percent"`
	ProcessCPUPercent float64 `json:"process_cpu_percent"`
	ProcessMemBytes   uint64  `json:"process_mem_bytes"`

	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	HeapObjects    uint64 `json:"heap_objects"`
	Goroutines     int    `json:"goroutines"`
	OpenFDs        int32  `json:"open_fds"`

	// SchedulerLag is how late the sampling timer fired, a proxy for
	// runtime scheduling pressure.
	SchedulerLag time.Duration `json:"scheduler_lag"`

	// RequestLatencyMS is the request-latency reading supplied by the
	// configured LatencySource at sampling time. Zero when no source is
	// wired or no requests have completed yet.
	RequestLatencyMS float64 `json:"request_latency_ms"`
}

// Thresholds trigger alerts when a sample exceeds them. Zero values disable
// the corresponding check.
type Thresholds struct {
	SystemCPUPercent  float64
	SystemMemPercent  float64
	ProcessCPUPercent float64
	HeapAllocBytes    uint64
	Goroutines        int
	SchedulerLag      time.Duration
	RequestLatency    time.Duration
}

// Alert records one threshold violation.
type Alert struct {
	Timestamp time.Time `json:"timestamp"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
}

// AlertFunc receives alerts synchronously from the sampling goroutine.
// Panics are absorbed so a broken callback cannot stop sampling.
type AlertFunc func(Alert)

// Options configure a Monitor.
type Options struct {
	Interval   time.Duration
	MaxSamples int
	Thresholds Thresholds

	// LatencySource, when set, is polled on every sampling tick for the
	// current request latency in milliseconds. It feeds the
	// RequestLatency threshold.
	LatencySource func() float64
}

// Monitor is the resource-monitor component.
type Monitor struct {
	opts   Options
	logger *zap.Logger
	proc   *process.Process

	mu        sync.Mutex
	samples   []Sample
	alerts    []Alert
	hourly    map[int64]*rollup // unix hour
	daily     map[int64]*rollup // unix day
	callbacks []AlertFunc

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// rollup aggregates process CPU, memory and goroutine counts over a bucket.
type rollup struct {
	Start      time.Time `json:"start"`
	Count      int64     `json:"count"`
	CPUMin     float64   `json:"cpu_min"`
	CPUMax     float64   `json:"cpu_max"`
	CPUSum     float64   `json:"cpu_sum"`
	MemMin     uint64    `json:"mem_min"`
	MemMax     uint64    `json:"mem_max"`
	MemSum     uint64    `json:"mem_sum"`
	Goroutines int       `json:"goroutines_max"`
}

func (r *rollup) observe(s Sample) {
	if r.Count == 0 || s.ProcessCPUPercent < r.CPUMin {
		r.CPUMin = s.ProcessCPUPercent
	}
	if s.ProcessCPUPercent > r.CPUMax {
		r.CPUMax = s.ProcessCPUPercent
	}
	r.CPUSum += s.ProcessCPUPercent
	if r.Count == 0 || s.ProcessMemBytes < r.MemMin {
		r.MemMin = s.ProcessMemBytes
	}
	if s.ProcessMemBytes > r.MemMax {
		r.MemMax = s.ProcessMemBytes
	}
	r.MemSum += s.ProcessMemBytes
	if s.Goroutines > r.Goroutines {
		r.Goroutines = s.Goroutines
	}
	r.Count++
}

// New creates a Monitor and starts its sampling loop.
func New(opts Options, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = DefaultMaxSamples
	}

	m := &Monitor{
		opts:   opts,
		logger: logger,
		hourly: make(map[int64]*rollup),
		daily:  make(map[int64]*rollup),
		done:   make(chan struct{}),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = proc
	} else {
		logger.Warn("process inspection unavailable", zap.Error(err))
	}

	m.wg.Add(1)
	go m.sampleLoop()
	return m
}

// OnAlert registers a callback invoked synchronously for every alert.
func (m *Monitor) OnAlert(fn AlertFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

func (m *Monitor) sampleLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	expected := time.Now().Add(m.opts.Interval)
	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			lag := now.Sub(expected)
			if lag < 0 {
				lag = 0
			}
			expected = now.Add(m.opts.Interval)
			m.ingest(m.collect(now, lag))
		}
	}
}

func (m *Monitor) collect(now time.Time, lag time.Duration) Sample {
	s := Sample{Timestamp: now, SchedulerLag: lag, Goroutines: runtime.NumGoroutine()}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapAllocBytes = ms.HeapAlloc
	s.HeapObjects = ms.HeapObjects

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		s.SystemCPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.SystemMemPercent = vm.UsedPercent
	}
	if m.proc != nil {
		if pct, err := m.proc.CPUPercent(); err == nil {
			s.ProcessCPUPercent = pct
		}
		if mi, err := m.proc.MemoryInfo(); err == nil && mi != nil {
			s.ProcessMemBytes = mi.RSS
		}
		if fds, err := m.proc.NumFDs(); err == nil {
			s.OpenFDs = fds
		}
	}
	if m.opts.LatencySource != nil {
		s.RequestLatencyMS = m.opts.LatencySource()
	}
	return s
}

// ingest stores a sample, updates rollups and evaluates thresholds.
func (m *Monitor) ingest(s Sample) {
	var alerts []Alert
	var fns []AlertFunc

	m.mu.Lock()
	m.samples = append(m.samples, s)
	if len(m.samples) > m.opts.MaxSamples {
		m.samples = m.samples[len(m.samples)-m.opts.MaxSamples:]
	}

	hourKey := s.Timestamp.Truncate(time.Hour).Unix()
	dayKey := s.Timestamp.Truncate(24 * time.Hour).Unix()
	m.bucket(m.hourly, hourKey, s.Timestamp.Truncate(time.Hour)).observe(s)
	m.bucket(m.daily, dayKey, s.Timestamp.Truncate(24*time.Hour)).observe(s)
	m.expire(m.hourly, s.Timestamp, hourlyRetention)
	m.expire(m.daily, s.Timestamp, dailyRetention)

	alerts = m.evaluate(s)
	for _, a := range alerts {
		m.alerts = append(m.alerts, a)
	}
	if len(m.alerts) > maxAlerts {
		m.alerts = m.alerts[len(m.alerts)-maxAlerts:]
	}
	fns = append([]AlertFunc(nil), m.callbacks...)
	m.mu.Unlock()

	for _, a := range alerts {
		m.logger.Warn("resource threshold exceeded",
			zap.String("metric", a.Metric),
			zap.Float64("value", a.Value),
			zap.Float64("threshold", a.Threshold))
		for _, fn := range fns {
			m.dispatch(fn, a)
		}
	}
}

func (m *Monitor) dispatch(fn AlertFunc, a Alert) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("alert callback panicked", zap.Any("panic", r))
		}
	}()
	fn(a)
}

func (m *Monitor) bucket(buckets map[int64]*rollup, key int64, start time.Time) *rollup {
	r := buckets[key]
	if r == nil {
		r = &rollup{Start: start}
		buckets[key] = r
	}
	return r
}

func (m *Monitor) expire(buckets map[int64]*rollup, now time.Time, retention time.Duration) {
	cutoff := now.Add(-retention)
	for key, r := range buckets {
		if r.Start.Before(cutoff) {
			delete(buckets, key)
		}
	}
}

// evaluate is called with mu held.
func (m *Monitor) evaluate(s Sample) []Alert {
	t := m.opts.Thresholds
	var out []Alert
	add := func(metric string, value, threshold float64) {
		out = append(out, Alert{
			Timestamp: s.Timestamp,
			Metric:    metric,
			Value:     value,
			Threshold: threshold,
			Message:   fmt.Sprintf("%s at %.1f exceeds threshold %.1f", metric, value, threshold),
		})
	}

	if t.SystemCPUPercent > 0 && s.SystemCPUPercent > t.SystemCPUPercent {
		add("system_cpu_percent", s.SystemCPUPercent, t.SystemCPUPercent)
	}
	if t.SystemMemPercent > 0 && s.SystemMemPercent > t.SystemMemPercent {
		add("system_mem_percent", s.SystemMemPercent, t.SystemMemPercent)
	}
	if t.ProcessCPUPercent > 0 && s.ProcessCPUPercent > t.ProcessCPUPercent {
		add("process_cpu_percent", s.ProcessCPUPercent, t.ProcessCPUPercent)
	}
	if t.HeapAllocBytes > 0 && s.HeapAllocBytes > t.HeapAllocBytes {
		add("heap_alloc_bytes", float64(s.HeapAllocBytes), float64(t.HeapAllocBytes))
	}
	if t.Goroutines > 0 && s.Goroutines > t.Goroutines {
		add("goroutines", float64(s.Goroutines), float64(t.Goroutines))
	}
	if t.SchedulerLag > 0 && s.SchedulerLag > t.SchedulerLag {
		add("scheduler_lag_ms",
			float64(s.SchedulerLag.Milliseconds()),
			float64(t.SchedulerLag.Milliseconds()))
	}
	if t.RequestLatency > 0 && s.RequestLatencyMS > float64(t.RequestLatency.Milliseconds()) {
		add("request_latency_ms", s.RequestLatencyMS, float64(t.RequestLatency.Milliseconds()))
	}
	return out
}

// Latest returns the most recent sample, if any.
func (m *Monitor) Latest() (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.samples) == 0 {
		return Sample{}, false
	}
	return m.samples[len(m.samples)-1], true
}

// Samples returns the newest n raw samples, oldest first. n <= 0 returns all.
func (m *Monitor) Samples(n int) []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	samples := m.samples
	if n > 0 && len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	return append([]Sample(nil), samples...)
}

// HourlyRollups returns the retained hourly aggregates, oldest first.
func (m *Monitor) HourlyRollups() []Rollup { return m.rollups(true) }

// DailyRollups returns the retained daily aggregates, oldest first.
func (m *Monitor) DailyRollups() []Rollup { return m.rollups(false) }

type Rollup struct {
	Start      time.Time `json:"start"`
	Count      int64     `json:"count"`
	CPUMin     float64   `json:"cpu_min"`
	CPUMax     float64   `json:"cpu_max"`
	CPUAvg     float64   `json:"cpu_avg"`
	MemMin     uint64    `json:"mem_min"`
	MemMax     uint64    `json:"mem_max"`
	MemAvg     uint64    `json:"mem_avg"`
	Goroutines int       `json:"goroutines_max"`
}

func (m *Monitor) rollups(hourly bool) []Rollup {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.daily
	if hourly {
		src = m.hourly
	}

	out := make([]Rollup, 0, len(src))
	for _, r := range src {
		v := Rollup{
			Start:      r.Start,
			Count:      r.Count,
			CPUMin:     r.CPUMin,
			CPUMax:     r.CPUMax,
			MemMin:     r.MemMin,
			MemMax:     r.MemMax,
			Goroutines: r.Goroutines,
		}
		if r.Count > 0 {
			v.CPUAvg = r.CPUSum / float64(r.Count)
			v.MemAvg = r.MemSum / uint64(r.Count)
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Alerts returns the retained alerts, oldest first.
func (m *Monitor) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alert(nil), m.alerts...)
}

// Destroy stops the sampling loop and waits for it to exit.
func (m *Monitor) Destroy() {
	m.once.Do(func() { close(m.done) })
	m.wg.Wait()
}
