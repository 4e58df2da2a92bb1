package agent

import (
	"time"

	"github.com/apronworks/apron-agent/internal/format"
	"github.com/apronworks/apron-agent/internal/knowledge"
	"github.com/apronworks/apron-agent/internal/llm"
)

// Query is one user question bound to its conversation context.
type Query struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Timestamp  time.Time         `json:"timestamp"`
	ContextID  string            `json:"context_id"`
	Intent     llm.Intent        `json:"intent,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Entities   map[string]string `json:"entities,omitempty"`
	TokensUsed int               `json:"tokens_used,omitempty"`
	LatencyMS  int64             `json:"latency_ms,omitempty"`
}

// Response is the pipeline's answer envelope.
type Response struct {
	ID                 string              `json:"id"`
	QueryID            string              `json:"query_id"`
	ContextID          string              `json:"context_id"`
	Text               string              `json:"text"`
	Timestamp          time.Time           `json:"timestamp"`
	RawData            knowledge.ResultSet `json:"raw_data,omitempty"`
	Visualizations     []string            `json:"visualizations,omitempty"`
	ConfirmationPrompt string              `json:"confirmation_prompt,omitempty"`
	PendingActionID    string              `json:"pending_action_id,omitempty"`
	// ErrorKind annotates degraded or failed handling; empty on success.
	ErrorKind string `json:"error_kind,omitempty"`

	FeedbackRating  int    `json:"feedback_rating,omitempty"`
	FeedbackComment string `json:"feedback_comment,omitempty"`
}

// QueryOptions are per-call knobs supplied by the transport layer.
type QueryOptions struct {
	// Format selects the response post-processing encoding.
	Format format.Options
}
