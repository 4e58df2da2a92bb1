package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apronworks/apron-agent/internal/llm"
)

// ContextMessage is one turn of a conversation.
type ContextMessage struct {
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// IntentAttribution records which intent a past query resolved to.
type IntentAttribution struct {
	QueryID    string     `json:"query_id"`
	Intent     llm.Intent `json:"intent"`
	Confidence float64    `json:"confidence"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ConversationContext is the rolling record of one user/session
// conversation. The pipeline serializes query handling per context, so
// field access during handling needs no extra locking.
type ConversationContext struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	SessionID string              `json:"session_id"`
	StartedAt time.Time           `json:"started_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Messages  []ContextMessage    `json:"messages"`
	Entities  map[string]string   `json:"entities"`
	Intents   []IntentAttribution `json:"intents"`

	// handling serializes queries for this context: one in flight at a
	// time, in submission order.
	handling sync.Mutex
}

func (c *ConversationContext) addMessage(role llm.Role, content string, ts time.Time) {
	c.Messages = append(c.Messages, ContextMessage{Role: role, Content: content, Timestamp: ts})
	c.UpdatedAt = ts
}

// recentMessages returns the last k messages, oldest first.
func (c *ConversationContext) recentMessages(k int) []llm.Message {
	msgs := c.Messages
	if k > 0 && len(msgs) > k {
		msgs = msgs[len(msgs)-k:]
	}
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// Contexts stores conversation contexts keyed by (user, session).
type Contexts struct {
	mu   sync.Mutex
	byID map[string]*ConversationContext
	key  map[string]string // user+session -> context id
}

// NewContexts creates an empty context store.
func NewContexts() *Contexts {
	return &Contexts{
		byID: make(map[string]*ConversationContext),
		key:  make(map[string]string),
	}
}

// GetOrCreate returns the context for a user/session pair, creating it on
// first use.
func (s *Contexts) GetOrCreate(userID, sessionID string) *ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := userID + "\x00" + sessionID
	if id, ok := s.key[k]; ok {
		return s.byID[id]
	}

	now := time.Now().UTC()
	ctx := &ConversationContext{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: sessionID,
		StartedAt: now,
		UpdatedAt: now,
		Entities:  make(map[string]string),
	}
	s.byID[ctx.ID] = ctx
	s.key[k] = ctx.ID
	return ctx
}

// Get returns a context by id.
func (s *Contexts) Get(id string) (*ConversationContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	return c, ok
}

// Count returns the number of live contexts.
func (s *Contexts) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
