// Package notifications delivers resource alerts to webhook subscribers.
package notifications

import "time"

// Severity indicates the importance of a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notification is a single alert delivery record.
type Notification struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Metric    string    `json:"metric"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`
}

// Webhook is one delivery target with a severity floor.
type Webhook struct {
	URL         string
	MinSeverity Severity
}

// severityMatches returns true when the notification severity meets or
// exceeds the filter threshold.
func severityMatches(actual, filter Severity) bool {
	levels := map[Severity]int{
		SeverityInfo:     0,
		SeverityWarning:  1,
		SeverityCritical: 2,
	}
	return levels[actual] >= levels[filter]
}
