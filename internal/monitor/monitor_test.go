package monitor

import (
	"testing"
	"time"
)

// newIdle builds a Monitor whose background sampler effectively never fires,
// so tests drive it through ingest with synthetic samples.
func newIdle(t *testing.T, opts Options) *Monitor {
	t.Helper()
	if opts.Interval == 0 {
		opts.Interval = time.Hour
	}
	m := New(opts, nil)
	t.Cleanup(m.Destroy)
	return m
}

func sampleAt(ts time.Time, cpu float64, memBytes uint64) Sample {
	return Sample{
		Timestamp:         ts,
		ProcessCPUPercent: cpu,
		ProcessMemBytes:   memBytes,
		Goroutines:        10,
	}
}

func TestSampleWindowBounded(t *testing.T) {
	m := newIdle(t, Options{MaxSamples: 5})

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		m.ingest(sampleAt(base.Add(time.Duration(i)*time.Minute), float64(i), 1000))
	}

	got := m.Samples(0)
	if len(got) != 5 {
		t.Fatalf("window holds %d samples, want 5", len(got))
	}
	// Oldest retained sample is the 8th ingested (cpu=7).
	if got[0].ProcessCPUPercent != 7 {
		t.Fatalf("oldest retained cpu = %v, want 7", got[0].ProcessCPUPercent)
	}

	latest, ok := m.Latest()
	if !ok || latest.ProcessCPUPercent != 11 {
		t.Fatalf("latest = %+v ok=%v", latest, ok)
	}
}

func TestHourlyRollupAggregates(t *testing.T) {
	m := newIdle(t, Options{})

	base := time.Date(2026, 3, 1, 8, 10, 0, 0, time.UTC)
	m.ingest(sampleAt(base, 10, 100))
	m.ingest(sampleAt(base.Add(5*time.Minute), 30, 300))
	m.ingest(sampleAt(base.Add(10*time.Minute), 20, 200))
	// Next hour starts a new bucket.
	m.ingest(sampleAt(base.Add(55*time.Minute), 90, 900))

	rollups := m.HourlyRollups()
	if len(rollups) != 2 {
		t.Fatalf("got %d hourly buckets, want 2", len(rollups))
	}

	first := rollups[0]
	if first.Count != 3 {
		t.Fatalf("first bucket count = %d, want 3", first.Count)
	}
	if first.CPUMin != 10 || first.CPUMax != 30 || first.CPUAvg != 20 {
		t.Fatalf("cpu aggregates wrong: min=%v max=%v avg=%v", first.CPUMin, first.CPUMax, first.CPUAvg)
	}
	if first.MemMin != 100 || first.MemMax != 300 || first.MemAvg != 200 {
		t.Fatalf("mem aggregates wrong: min=%v max=%v avg=%v", first.MemMin, first.MemMax, first.MemAvg)
	}

	daily := m.DailyRollups()
	if len(daily) != 1 || daily[0].Count != 4 {
		t.Fatalf("daily rollup wrong: %+v", daily)
	}
}

func TestThresholdAlertAndCallback(t *testing.T) {
	m := newIdle(t, Options{
		Thresholds: Thresholds{ProcessCPUPercent: 80},
	})

	var received []Alert
	m.OnAlert(func(a Alert) { received = append(received, a) })
	// A panicking callback must not stop sampling or other callbacks.
	m.OnAlert(func(Alert) { panic("boom") })

	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	m.ingest(sampleAt(ts, 50, 100)) // below threshold
	m.ingest(sampleAt(ts.Add(time.Minute), 95, 100))

	alerts := m.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	a := alerts[0]
	if a.Metric != "process_cpu_percent" || a.Value != 95 || a.Threshold != 80 {
		t.Fatalf("alert wrong: %+v", a)
	}
	if len(received) != 1 || received[0].Metric != "process_cpu_percent" {
		t.Fatalf("callback received %d alerts, want 1", len(received))
	}

	// Sampling still works after the panicking callback.
	m.ingest(sampleAt(ts.Add(2*time.Minute), 96, 100))
	if len(m.Alerts()) != 2 {
		t.Fatal("ingest stopped working after callback panic")
	}
}

func TestAlertListBounded(t *testing.T) {
	m := newIdle(t, Options{
		Thresholds: Thresholds{Goroutines: 1},
	})

	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < maxAlerts+50; i++ {
		m.ingest(sampleAt(ts.Add(time.Duration(i)*time.Second), 0, 0))
	}

	alerts := m.Alerts()
	if len(alerts) != maxAlerts {
		t.Fatalf("retained %d alerts, want %d", len(alerts), maxAlerts)
	}
	// Oldest alerts were dropped, so the first retained one is from the
	// 51st sample.
	want := ts.Add(50 * time.Second)
	if !alerts[0].Timestamp.Equal(want) {
		t.Fatalf("oldest retained alert at %v, want %v", alerts[0].Timestamp, want)
	}
}

func TestRollupRetention(t *testing.T) {
	m := newIdle(t, Options{})

	old := time.Date(2026, 2, 25, 8, 0, 0, 0, time.UTC)
	m.ingest(sampleAt(old, 10, 100))
	// A sample three days later expires the old hourly bucket.
	m.ingest(sampleAt(old.Add(72*time.Hour), 20, 200))

	rollups := m.HourlyRollups()
	if len(rollups) != 1 {
		t.Fatalf("got %d hourly buckets, want 1 after retention", len(rollups))
	}
	if rollups[0].CPUMax != 20 {
		t.Fatalf("retained wrong bucket: %+v", rollups[0])
	}
}

func TestCollectPopulatesRuntimeFields(t *testing.T) {
	m := newIdle(t, Options{})

	s := m.collect(time.Now(), 3*time.Millisecond)
	if s.Goroutines <= 0 {
		t.Fatalf("goroutines = %d", s.Goroutines)
	}
	if s.HeapAllocBytes == 0 {
		t.Fatal("heap alloc not populated")
	}
	if s.SchedulerLag != 3*time.Millisecond {
		t.Fatalf("scheduler lag = %v", s.SchedulerLag)
	}
}

func TestRequestLatencyAlert(t *testing.T) {
	m := newIdle(t, Options{
		Thresholds: Thresholds{RequestLatency: 500 * time.Millisecond},
	})

	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	slow := sampleAt(ts, 10, 100)
	slow.RequestLatencyMS = 900
	m.ingest(slow)

	fast := sampleAt(ts.Add(time.Minute), 10, 100)
	fast.RequestLatencyMS = 120
	m.ingest(fast)

	alerts := m.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	a := alerts[0]
	if a.Metric != "request_latency_ms" || a.Value != 900 || a.Threshold != 500 {
		t.Fatalf("alert wrong: %+v", a)
	}
}

func TestCollectPollsLatencySource(t *testing.T) {
	m := newIdle(t, Options{
		LatencySource: func() float64 { return 42.5 },
	})

	s := m.collect(time.Now(), 0)
	if s.RequestLatencyMS != 42.5 {
		t.Fatalf("request latency = %v, want 42.5", s.RequestLatencyMS)
	}
}
