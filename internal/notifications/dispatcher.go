package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apronworks/apron-agent/internal/monitor"
)

const historyLimit = 500

// Dispatcher turns resource alerts into notifications and delivers them to
// webhook subscribers. Delivery is best-effort; failures are logged and the
// notification is still recorded.
type Dispatcher struct {
	webhooks []Webhook
	client   *http.Client
	logger   *zap.Logger

	mu      sync.Mutex
	history []Notification
}

// NewDispatcher creates a Dispatcher for the given webhook targets.
func NewDispatcher(webhooks []Webhook, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		webhooks: webhooks,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// FromAlert converts a threshold violation into a notification. Values at
// or past double the threshold are critical, everything else a warning.
func FromAlert(a monitor.Alert) Notification {
	severity := SeverityWarning
	if a.Threshold > 0 && a.Value >= 2*a.Threshold {
		severity = SeverityCritical
	}
	return Notification{
		ID:        uuid.NewString(),
		Severity:  severity,
		Metric:    a.Metric,
		Title:     fmt.Sprintf("Resource alert: %s", a.Metric),
		Message:   a.Message,
		Value:     a.Value,
		Threshold: a.Threshold,
		CreatedAt: a.Timestamp,
	}
}

// Dispatch records a notification and sends it to matching webhooks.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	d.mu.Lock()
	d.history = append(d.history, n)
	if len(d.history) > historyLimit {
		d.history = d.history[len(d.history)-historyLimit:]
	}
	d.mu.Unlock()

	payload, err := json.Marshal(n)
	if err != nil {
		d.logger.Warn("marshalling notification", zap.Error(err))
		return
	}

	for _, hook := range d.webhooks {
		if hook.URL == "" || !severityMatches(n.Severity, hook.MinSeverity) {
			continue
		}
		if err := d.sendWebhook(ctx, hook.URL, payload); err != nil {
			d.logger.Warn("webhook delivery failed",
				zap.String("url", hook.URL), zap.Error(err))
		}
	}
}

// Subscribe wires the dispatcher to a monitor's alert stream.
func (d *Dispatcher) Subscribe(m *monitor.Monitor) {
	m.OnAlert(func(a monitor.Alert) {
		d.Dispatch(context.Background(), FromAlert(a))
	})
}

// History returns the most recent notifications, oldest first.
func (d *Dispatcher) History() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Notification, len(d.history))
	copy(out, d.history)
	return out
}

func (d *Dispatcher) sendWebhook(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
