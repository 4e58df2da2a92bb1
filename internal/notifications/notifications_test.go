package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/apronworks/apron-agent/internal/monitor"
)

func TestFromAlertSeverity(t *testing.T) {
	warn := FromAlert(monitor.Alert{Metric: "system_cpu", Value: 90, Threshold: 85})
	if warn.Severity != SeverityWarning {
		t.Errorf("severity = %q, want warning", warn.Severity)
	}

	crit := FromAlert(monitor.Alert{Metric: "system_cpu", Value: 180, Threshold: 85})
	if crit.Severity != SeverityCritical {
		t.Errorf("severity = %q, want critical", crit.Severity)
	}

	if warn.ID == "" || warn.Metric != "system_cpu" {
		t.Errorf("notification not populated: %+v", warn)
	}
}

func TestDispatchDeliversToWebhook(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Notification
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		received = append(received, n)
		mu.Unlock()
	}))
	defer srv.Close()

	d := NewDispatcher([]Webhook{{URL: srv.URL, MinSeverity: SeverityWarning}}, nil)

	d.Dispatch(context.Background(), Notification{
		ID: "n1", Severity: SeverityWarning, Metric: "goroutines",
		Message: "goroutine count 1200 over threshold 1000",
		Value:   1200, Threshold: 1000, CreatedAt: time.Now(),
	})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(received))
	}
	if received[0].Metric != "goroutines" {
		t.Errorf("metric = %q", received[0].Metric)
	}
}

func TestDispatchRespectsSeverityFloor(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	d := NewDispatcher([]Webhook{{URL: srv.URL, MinSeverity: SeverityCritical}}, nil)
	d.Dispatch(context.Background(), Notification{ID: "n1", Severity: SeverityWarning})

	if calls != 0 {
		t.Errorf("warning delivered past critical floor, calls = %d", calls)
	}

	hist := d.History()
	if len(hist) != 1 {
		t.Fatalf("history = %d, want 1 (recorded even when undelivered)", len(hist))
	}
}

func TestDispatchSurvivesDeadWebhook(t *testing.T) {
	d := NewDispatcher([]Webhook{{URL: "http://127.0.0.1:1", MinSeverity: SeverityInfo}}, nil)

	// Must not panic or block beyond the client timeout.
	d.Dispatch(context.Background(), Notification{ID: "n1", Severity: SeverityCritical})

	if len(d.History()) != 1 {
		t.Fatal("notification not recorded after delivery failure")
	}
}

func TestHistoryBounded(t *testing.T) {
	d := NewDispatcher(nil, nil)
	for i := 0; i < historyLimit+50; i++ {
		d.Dispatch(context.Background(), Notification{Severity: SeverityInfo})
	}
	if got := len(d.History()); got != historyLimit {
		t.Errorf("history = %d, want %d", got, historyLimit)
	}
}
