// Package confirm tracks side-effecting operations awaiting human approval.
// Actions are created in the pending state and must be confirmed or rejected
// by the owning session before their TTL expires; nothing executes here.
package confirm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind enumerates the mutation operations a user may request.
type Kind string

const (
	KindCreateStand       Kind = "create_stand"
	KindUpdateStand       Kind = "update_stand"
	KindDeleteStand       Kind = "delete_stand"
	KindCreateTerminal    Kind = "create_terminal"
	KindUpdateTerminal    Kind = "update_terminal"
	KindDeleteTerminal    Kind = "delete_terminal"
	KindCreateMaintenance Kind = "create_maintenance"
	KindUpdateMaintenance Kind = "update_maintenance"
	KindDeleteMaintenance Kind = "delete_maintenance"
)

// State tracks an action through its lifecycle. Transitions only ever leave
// pending once; confirmed actions may additionally be marked executed.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateRejected  State = "rejected"
	StateExpired   State = "expired"
	StateExecuted  State = "executed"
)

var (
	ErrNotFound     = errors.New("confirm: action not found")
	ErrUnauthorized = errors.New("confirm: session mismatch")
	ErrInvalidState = errors.New("confirm: action is not pending")
	ErrInvalidInput = errors.New("confirm: invalid action")
)

// PendingAction is a proposed side effect awaiting human confirmation.
type PendingAction struct {
	ID              string            `json:"id"`
	SessionID       string            `json:"session_id"`
	ActorID         string            `json:"actor_id"`
	Kind            Kind              `json:"kind"`
	Params          map[string]string `json:"params"`
	Impact          string            `json:"impact,omitempty"`
	Message         string            `json:"message"`
	State           State             `json:"state"`
	CreatedAt       time.Time         `json:"created_at"`
	ExpiresAt       time.Time         `json:"expires_at"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty"`
	RejectedAt      *time.Time        `json:"rejected_at,omitempty"`
	ExecutedAt      *time.Time        `json:"executed_at,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	ExecutionResult string            `json:"execution_result,omitempty"`
}

// Summary is the list_pending projection of an action.
type Summary struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// kindTemplate defines the required parameters and the confirmation message
// for one action kind. Placeholders use {param} syntax.
type kindTemplate struct {
	required []string
	message  string
}

var kindTemplates = map[Kind]kindTemplate{
	KindCreateStand: {
		required: []string{"name", "terminal"},
		message:  "Create stand {name} in terminal {terminal}?",
	},
	KindUpdateStand: {
		required: []string{"stand"},
		message:  "Update stand {stand}?",
	},
	KindDeleteStand: {
		required: []string{"stand"},
		message:  "Delete stand {stand}? This cannot be undone.",
	},
	KindCreateTerminal: {
		required: []string{"name"},
		message:  "Create terminal {name}?",
	},
	KindUpdateTerminal: {
		required: []string{"terminal"},
		message:  "Update terminal {terminal}?",
	},
	KindDeleteTerminal: {
		required: []string{"terminal"},
		message:  "Delete terminal {terminal}? This cannot be undone.",
	},
	KindCreateMaintenance: {
		required: []string{"stand", "startDate", "endDate"},
		message:  "Create a maintenance request for stand {stand} from {startDate} to {endDate}?",
	},
	KindUpdateMaintenance: {
		required: []string{"maintenance"},
		message:  "Update maintenance request {maintenance}?",
	},
	KindDeleteMaintenance: {
		required: []string{"maintenance"},
		message:  "Cancel maintenance request {maintenance}?",
	},
}

// ValidKind reports whether the kind is part of the closed action set.
func ValidKind(k Kind) bool {
	_, ok := kindTemplates[k]
	return ok
}

// buildMessage validates required parameters and renders the confirmation
// message for the kind.
func buildMessage(kind Kind, params map[string]string) (string, error) {
	tmpl, ok := kindTemplates[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, kind)
	}

	var missing []string
	for _, key := range tmpl.required {
		if params[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: kind %q missing parameters: %s",
			ErrInvalidInput, kind, strings.Join(missing, ", "))
	}

	msg := tmpl.message
	for key, value := range params {
		msg = strings.ReplaceAll(msg, "{"+key+"}", value)
	}
	return msg, nil
}
