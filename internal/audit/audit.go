// Package audit keeps a durable trail of who asked what and which
// side-effecting actions were proposed, confirmed or rejected.
package audit

import "time"

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Action describes what was done.
type Action string

const (
	ActionQueryHandled      Action = "query_handled"
	ActionProposed          Action = "action_proposed"
	ActionConfirmed         Action = "action_confirmed"
	ActionRejected          Action = "action_rejected"
	ActionFeedbackSubmitted Action = "feedback_submitted"
)

// Entry is a single audit trail record.
type Entry struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	ActorType  ActorType         `json:"actor_type"`
	ActorID    string            `json:"actor_id"`
	Action     Action            `json:"action"`
	SessionID  string            `json:"session_id,omitempty"`
	TargetKind string            `json:"target_kind,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	Detail     string            `json:"detail,omitempty"`
	QueryID    string            `json:"query_id,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}
