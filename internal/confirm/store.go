package confirm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long an action stays confirmable.
	DefaultTTL = 5 * time.Minute
	// DefaultSweepInterval is how often expired entries are removed.
	DefaultSweepInterval = time.Minute
)

// Request describes the action a pipeline wants confirmed.
type Request struct {
	SessionID string
	ActorID   string
	Kind      Kind
	Params    map[string]string
	Impact    string
}

// entry pairs an action with its own lock so confirm/reject for one id are
// serialized without blocking the whole store.
type entry struct {
	mu     sync.Mutex
	action PendingAction
}

// Store tracks pending actions with TTL and session binding. A background
// sweeper removes expired entries; expiry is additionally honored on every
// read so a stale entry is never confirmable.
type Store struct {
	mu      sync.Mutex
	actions map[string]*entry

	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// StoreOptions configure a Store. Zero values take the defaults.
type StoreOptions struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// NewStore creates a confirmation store and starts its sweeper.
func NewStore(opts StoreOptions, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	s := &Store{
		actions:  make(map[string]*entry),
		ttl:      opts.TTL,
		interval: opts.SweepInterval,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// Create registers a new pending action bound to the requesting session.
func (s *Store) Create(req Request) (*PendingAction, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session id required", ErrInvalidInput)
	}
	msg, err := buildMessage(req.Kind, req.Params)
	if err != nil {
		return nil, err
	}

	params := make(map[string]string, len(req.Params))
	for k, v := range req.Params {
		params[k] = v
	}

	now := s.now()
	action := PendingAction{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		ActorID:   req.ActorID,
		Kind:      req.Kind,
		Params:    params,
		Impact:    req.Impact,
		Message:   msg,
		State:     StatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.actions[action.ID] = &entry{action: action}
	s.mu.Unlock()

	s.logger.Info("pending action created",
		zap.String("action_id", action.ID),
		zap.String("kind", string(action.Kind)),
		zap.String("session", action.SessionID))

	copied := action
	return &copied, nil
}

// Confirm transitions a pending action to confirmed. It fails with
// ErrNotFound for unknown or expired ids, ErrUnauthorized when the session
// differs (without touching state), and ErrInvalidState when the action has
// already left pending.
func (s *Store) Confirm(actionID, sessionID string) (*PendingAction, error) {
	return s.transition(actionID, sessionID, StateConfirmed, "")
}

// Reject transitions a pending action to rejected with an optional reason.
func (s *Store) Reject(actionID, sessionID, reason string) (*PendingAction, error) {
	return s.transition(actionID, sessionID, StateRejected, reason)
}

func (s *Store) transition(actionID, sessionID string, target State, reason string) (*PendingAction, error) {
	s.mu.Lock()
	e, ok := s.actions[actionID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	if !e.action.ExpiresAt.After(now) {
		s.remove(actionID)
		return nil, ErrNotFound
	}
	if e.action.SessionID != sessionID {
		return nil, ErrUnauthorized
	}
	if e.action.State != StatePending {
		return nil, fmt.Errorf("%w: state is %s", ErrInvalidState, e.action.State)
	}

	e.action.State = target
	switch target {
	case StateConfirmed:
		e.action.ConfirmedAt = &now
	case StateRejected:
		e.action.RejectedAt = &now
		e.action.RejectionReason = reason
	}

	s.logger.Info("pending action resolved",
		zap.String("action_id", actionID),
		zap.String("state", string(target)))

	copied := e.action
	return &copied, nil
}

// MarkExecuted records the execution result of a confirmed action. Execution
// itself happens outside this store.
func (s *Store) MarkExecuted(actionID, result string) (*PendingAction, error) {
	s.mu.Lock()
	e, ok := s.actions[actionID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.action.State != StateConfirmed {
		return nil, fmt.Errorf("%w: state is %s", ErrInvalidState, e.action.State)
	}
	now := s.now()
	e.action.State = StateExecuted
	e.action.ExecutedAt = &now
	e.action.ExecutionResult = result

	copied := e.action
	return &copied, nil
}

// Get returns a copy of the action regardless of state.
func (s *Store) Get(actionID string) (*PendingAction, error) {
	s.mu.Lock()
	e, ok := s.actions[actionID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	copied := e.action
	return &copied, nil
}

// ListPending returns summaries of the session's unexpired pending actions,
// oldest first.
func (s *Store) ListPending(sessionID string) []Summary {
	now := s.now()

	s.mu.Lock()
	entries := make([]*entry, 0, len(s.actions))
	for _, e := range s.actions {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	var out []Summary
	for _, e := range entries {
		e.mu.Lock()
		a := e.action
		e.mu.Unlock()
		if a.SessionID != sessionID || a.State != StatePending || !a.ExpiresAt.After(now) {
			continue
		}
		out = append(out, Summary{
			ID:        a.ID,
			Kind:      a.Kind,
			Message:   a.Message,
			CreatedAt: a.CreatedAt,
			ExpiresAt: a.ExpiresAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) remove(actionID string) {
	s.mu.Lock()
	delete(s.actions, actionID)
	s.mu.Unlock()
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes expired entries. Each entry's lock is taken so the sweeper
// never races an in-flight confirm or reject on the same id.
func (s *Store) sweep() {
	now := s.now()

	s.mu.Lock()
	candidates := make(map[string]*entry, len(s.actions))
	for id, e := range s.actions {
		candidates[id] = e
	}
	s.mu.Unlock()

	removed := 0
	for id, e := range candidates {
		e.mu.Lock()
		expired := !e.action.ExpiresAt.After(now)
		if expired && e.action.State == StatePending {
			e.action.State = StateExpired
		}
		e.mu.Unlock()
		if expired {
			s.remove(id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("swept expired actions", zap.Int("count", removed))
	}
}

// Destroy stops the sweeper. The store remains readable but no longer prunes
// in the background.
func (s *Store) Destroy() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}
