package confirm

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, opts StoreOptions) *Store {
	t.Helper()
	s := NewStore(opts, nil)
	t.Cleanup(s.Destroy)
	return s
}

func maintenanceRequest(session string) Request {
	return Request{
		SessionID: session,
		ActorID:   "user-1",
		Kind:      KindCreateMaintenance,
		Params: map[string]string{
			"stand":     "A1",
			"startDate": "2024-01-10",
			"endDate":   "2024-01-12",
		},
	}
}

func TestCreateBuildsConfirmationMessage(t *testing.T) {
	s := newTestStore(t, StoreOptions{})

	a, err := s.Create(maintenanceRequest("s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.State != StatePending {
		t.Errorf("expected pending, got %s", a.State)
	}
	want := "Create a maintenance request for stand A1 from 2024-01-10 to 2024-01-12?"
	if a.Message != want {
		t.Errorf("unexpected message: %q", a.Message)
	}
	if got := a.ExpiresAt.Sub(a.CreatedAt); got != DefaultTTL {
		t.Errorf("expected TTL %v, got %v", DefaultTTL, got)
	}
}

func TestCreateRejectsMissingParameters(t *testing.T) {
	s := newTestStore(t, StoreOptions{})

	_, err := s.Create(Request{
		SessionID: "s1",
		Kind:      KindCreateMaintenance,
		Params:    map[string]string{"stand": "A1"},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateRejectsUnknownKind(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	_, err := s.Create(Request{SessionID: "s1", Kind: "drop_tables"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestConfirmFlow(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	a, _ := s.Create(maintenanceRequest("s1"))

	// Wrong session: rejected without touching state.
	if _, err := s.Confirm(a.ID, "s2"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	got, _ := s.Get(a.ID)
	if got.State != StatePending {
		t.Fatalf("session mismatch must not change state, got %s", got.State)
	}

	confirmed, err := s.Confirm(a.ID, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed.State != StateConfirmed || confirmed.ConfirmedAt == nil {
		t.Errorf("expected confirmed with timestamp, got %+v", confirmed)
	}

	// Only the first legal transition succeeds.
	if _, err := s.Confirm(a.ID, "s1"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on second confirm, got %v", err)
	}
	if _, err := s.Reject(a.ID, "s1", "changed my mind"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on reject after confirm, got %v", err)
	}
}

func TestRejectRecordsReason(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	a, _ := s.Create(maintenanceRequest("s1"))

	rejected, err := s.Reject(a.ID, "s1", "wrong stand")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected.State != StateRejected || rejected.RejectionReason != "wrong stand" {
		t.Errorf("unexpected rejection: %+v", rejected)
	}
}

func TestConfirmUnknownID(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	if _, err := s.Confirm("nope", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpiryHonoredOnConfirm(t *testing.T) {
	s := newTestStore(t, StoreOptions{TTL: 10 * time.Millisecond, SweepInterval: time.Hour})
	a, _ := s.Create(maintenanceRequest("s1"))

	time.Sleep(100 * time.Millisecond)

	if _, err := s.Confirm(a.ID, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	if pending := s.ListPending("s1"); len(pending) != 0 {
		t.Errorf("expired action must not be listed, got %v", pending)
	}
}

func TestSweeperRemovesExpired(t *testing.T) {
	s := newTestStore(t, StoreOptions{TTL: 5 * time.Millisecond, SweepInterval: 10 * time.Millisecond})
	a, _ := s.Create(maintenanceRequest("s1"))

	time.Sleep(50 * time.Millisecond)

	if _, err := s.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("sweeper should have removed the action, got %v", err)
	}
}

func TestListPendingScopedToSession(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	first, _ := s.Create(maintenanceRequest("s1"))
	s.Create(maintenanceRequest("s2"))
	second, _ := s.Create(Request{
		SessionID: "s1",
		Kind:      KindDeleteStand,
		Params:    map[string]string{"stand": "B2"},
	})

	pending := s.ListPending("s1")
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending for s1, got %d", len(pending))
	}
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Errorf("pending actions not in creation order: %v", pending)
	}
}

func TestConcurrentConfirmSingleWinner(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	a, _ := s.Create(maintenanceRequest("s1"))

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan State, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(reject bool) {
			defer wg.Done()
			var err error
			if reject {
				_, err = s.Reject(a.ID, "s1", "race")
			} else {
				_, err = s.Confirm(a.ID, "s1")
			}
			if err == nil {
				if reject {
					wins <- StateRejected
				} else {
					wins <- StateConfirmed
				}
			}
		}(i%2 == 0)
	}
	wg.Wait()
	close(wins)

	var winners []State
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one successful transition, got %d", len(winners))
	}

	got, _ := s.Get(a.ID)
	if got.State != winners[0] {
		t.Errorf("final state %s does not match winner %s", got.State, winners[0])
	}
}

func TestMarkExecutedRequiresConfirmed(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	a, _ := s.Create(maintenanceRequest("s1"))

	if _, err := s.MarkExecuted(a.ID, "done"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before confirm, got %v", err)
	}

	s.Confirm(a.ID, "s1")
	executed, err := s.MarkExecuted(a.ID, "maintenance 42 created")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if executed.State != StateExecuted || executed.ExecutionResult != "maintenance 42 created" {
		t.Errorf("unexpected executed action: %+v", executed)
	}
}
