package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"companiond/internal/storage"
	st "companiond/internal/storagetypes"
	"companiond/internal/transport"
	"companiond/internal/trigger"
)

type fakeStore struct {
	mu           sync.Mutex
	humans       []st.Human
	personas     map[string]st.Persona
	answered     map[string]bool
	messages     []st.Message
	checkpoint   time.Time
	personaGate  chan struct{} // when set, GetPersona parks until it closes
	personaCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		personas: make(map[string]st.Persona),
		answered: make(map[string]bool),
	}
}

func (f *fakeStore) ListActiveHumans() ([]st.Human, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.humans, nil
}

func (f *fakeStore) GetPersona(id string) (*st.Persona, error) {
	f.mu.Lock()
	f.personaCalls++
	gate := f.personaGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.personas[id]
	if !ok {
		return nil, &storage.StorageError{Op: "get-persona", Key: id, Err: storage.ErrNotFound}
	}
	return &p, nil
}

func (f *fakeStore) HasPersonaReplyTo(humanID, messageID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answered[messageID], nil
}

func (f *fakeStore) MessagesSince(t time.Time) ([]st.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []st.Message
	for _, m := range f.messages {
		if m.SentAt.After(t) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) PollCheckpoint() (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkpoint, nil
}

func (f *fakeStore) SetPollCheckpoint(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkpoint = t
	return nil
}

func (f *fakeStore) personaLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.personaCalls
}

type fakeEval struct {
	eligible map[trigger.Category]bool
}

func (f *fakeEval) Evaluate(humanID string, category trigger.Category) (bool, error) {
	return f.eligible[category], nil
}

type fakeSelector struct {
	persona *st.Persona
}

func (f *fakeSelector) SelectPersona(humanID string, category trigger.Category) (*st.Persona, error) {
	return f.persona, nil
}

type dispatchCall struct {
	personaID string
	humanID   string
	category  trigger.Category
	replyTo   string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (f *fakeDispatcher) DispatchProactive(ctx context.Context, p st.Persona, humanID string, category trigger.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchCall{personaID: p.ID, humanID: humanID, category: category})
	return nil
}

func (f *fakeDispatcher) DispatchReply(ctx context.Context, p st.Persona, inbound st.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchCall{personaID: p.ID, humanID: inbound.SenderID, replyTo: inbound.ID})
	return nil
}

func (f *fakeDispatcher) callsSnapshot() []dispatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]dispatchCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestScheduler(store *fakeStore, eval Evaluator, sel Selector, disp Dispatcher) *Scheduler {
	return New(store, eval, sel, disp, nil, Options{
		ScanInterval:  time.Hour,
		BatchSize:     2,
		MaxConcurrent: 2,
		PollInterval:  time.Minute,
	})
}

func TestScanFiresEveryEligibleCategoryInOrder(t *testing.T) {
	store := newFakeStore()
	store.humans = []st.Human{{ID: "h1", Active: true}}
	eval := &fakeEval{eligible: map[trigger.Category]bool{
		trigger.CategoryMilestoneCelebration: true,
		trigger.CategoryRandomSocial:         true,
	}}
	sel := &fakeSelector{persona: &st.Persona{ID: "p1", Name: "Riley", Active: true}}
	disp := &fakeDispatcher{}

	s := newTestScheduler(store, eval, sel, disp)
	s.RunProactiveScan(context.Background())

	calls := disp.callsSnapshot()
	if len(calls) != 2 {
		t.Fatalf("both eligible categories fire in one sweep, got %d", len(calls))
	}
	if calls[0].category != trigger.CategoryMilestoneCelebration || calls[1].category != trigger.CategoryRandomSocial {
		t.Fatalf("catalog order decides, got %+v", calls)
	}
}

func TestTriggerForUser(t *testing.T) {
	store := newFakeStore()
	eval := &fakeEval{eligible: map[trigger.Category]bool{trigger.CategoryCheckIn: true}}
	sel := &fakeSelector{persona: &st.Persona{ID: "p1", Active: true}}
	disp := &fakeDispatcher{}
	s := newTestScheduler(store, eval, sel, disp)

	if err := s.TriggerForUser(context.Background(), "h1", trigger.CategoryCheckIn); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	// Not eligible: silently a no-op.
	if err := s.TriggerForUser(context.Background(), "h1", trigger.CategoryRandomSocial); err != nil {
		t.Fatalf("trigger ineligible: %v", err)
	}

	calls := disp.callsSnapshot()
	if len(calls) != 1 || calls[0].category != trigger.CategoryCheckIn {
		t.Fatalf("expected one check_in dispatch, got %+v", calls)
	}
}

func TestScanSkipsWhenNoPersonaAvailable(t *testing.T) {
	store := newFakeStore()
	store.humans = []st.Human{{ID: "h1", Active: true}}
	eval := &fakeEval{eligible: map[trigger.Category]bool{trigger.CategoryCheckIn: true}}
	disp := &fakeDispatcher{}

	s := newTestScheduler(store, eval, &fakeSelector{persona: nil}, disp)
	s.RunProactiveScan(context.Background())

	if len(disp.callsSnapshot()) != 0 {
		t.Fatal("no persona means no dispatch")
	}
}

func TestScanCoversAllHumansAcrossBatches(t *testing.T) {
	store := newFakeStore()
	for _, id := range []string{"h1", "h2", "h3", "h4", "h5"} {
		store.humans = append(store.humans, st.Human{ID: id, Active: true})
	}
	eval := &fakeEval{eligible: map[trigger.Category]bool{trigger.CategoryRandomSocial: true}}
	sel := &fakeSelector{persona: &st.Persona{ID: "p1", Active: true}}
	disp := &fakeDispatcher{}

	s := newTestScheduler(store, eval, sel, disp)
	s.RunProactiveScan(context.Background())

	calls := disp.callsSnapshot()
	if len(calls) != 5 {
		t.Fatalf("every human gets scanned, got %d dispatches", len(calls))
	}
	seen := map[string]bool{}
	for _, c := range calls {
		seen[c.humanID] = true
	}
	if len(seen) != 5 {
		t.Fatalf("duplicate dispatches across batches: %+v", calls)
	}
}

func TestHandleInboundSkips(t *testing.T) {
	store := newFakeStore()
	store.personas["p1"] = st.Persona{ID: "p1", Active: true}
	store.personas["p2"] = st.Persona{ID: "p2", Active: false}
	disp := &fakeDispatcher{}
	s := newTestScheduler(store, &fakeEval{}, &fakeSelector{}, disp)
	ctx := context.Background()

	cases := []struct {
		name string
		msg  st.Message
	}{
		{"persona-authored", st.Message{ID: "m1", SenderID: "p1", ReceiverID: "h1", IsFromPersona: true}},
		{"self-addressed", st.Message{ID: "m2", SenderID: "h1", ReceiverID: "h1"}},
		{"receiver not a persona", st.Message{ID: "m3", SenderID: "h1", ReceiverID: "h2"}},
		{"inactive persona", st.Message{ID: "m4", SenderID: "h1", ReceiverID: "p2"}},
	}
	for _, c := range cases {
		if err := s.HandleInbound(ctx, c.msg); err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
	}
	if len(disp.callsSnapshot()) != 0 {
		t.Fatalf("all cases must be skipped: %+v", disp.calls)
	}
}

func TestHandleInboundRepliesOnceThenDedups(t *testing.T) {
	store := newFakeStore()
	store.personas["p1"] = st.Persona{ID: "p1", Active: true}
	disp := &fakeDispatcher{}
	s := newTestScheduler(store, &fakeEval{}, &fakeSelector{}, disp)

	msg := st.Message{ID: "m1", SenderID: "h1", ReceiverID: "p1", Content: "hello"}
	if err := s.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	calls := disp.callsSnapshot()
	if len(calls) != 1 || calls[0].replyTo != "m1" || calls[0].personaID != "p1" {
		t.Fatalf("expected one reply: %+v", calls)
	}

	// Duplicate delivery after the reply was persisted.
	store.mu.Lock()
	store.answered["m1"] = true
	store.mu.Unlock()
	if err := s.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if len(disp.callsSnapshot()) != 1 {
		t.Fatal("answered message must not be replied to twice")
	}
}

func TestPollInitializesCheckpointThenRedrives(t *testing.T) {
	store := newFakeStore()
	store.personas["p1"] = st.Persona{ID: "p1", Active: true}
	disp := &fakeDispatcher{}
	s := newTestScheduler(store, &fakeEval{}, &fakeSelector{}, disp)
	ctx := context.Background()

	// First poll only establishes the high-water mark.
	if err := s.PollOnce(ctx); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if store.checkpoint.IsZero() {
		t.Fatal("checkpoint must be initialized")
	}
	if len(disp.callsSnapshot()) != 0 {
		t.Fatal("first poll must not replay history")
	}

	// A message the bus lost shows up via the poller.
	lost := st.Message{ID: "m1", SenderID: "h1", ReceiverID: "p1", SentAt: store.checkpoint.Add(time.Second)}
	echo := st.Message{ID: "m2", SenderID: "p1", ReceiverID: "h1", IsFromPersona: true, SentAt: store.checkpoint.Add(2 * time.Second)}
	store.mu.Lock()
	store.messages = append(store.messages, lost, echo)
	store.mu.Unlock()

	if err := s.PollOnce(ctx); err != nil {
		t.Fatalf("second poll: %v", err)
	}
	calls := disp.callsSnapshot()
	if len(calls) != 1 || calls[0].replyTo != "m1" {
		t.Fatalf("poller must re-drive the lost message only: %+v", calls)
	}
	if !store.checkpoint.Equal(echo.SentAt) {
		t.Fatalf("checkpoint must advance to the newest message, got %v", store.checkpoint)
	}

	// Nothing new: idempotent.
	if err := s.PollOnce(ctx); err != nil {
		t.Fatalf("third poll: %v", err)
	}
	if len(disp.callsSnapshot()) != 1 {
		t.Fatal("poll without new messages must dispatch nothing")
	}
}

// When the event feed overflows and drops messages, the reactive loop's
// health check must reconcile from storage instead of waiting for the
// background poller.
func TestReactiveFeedOverflowHealsThroughPoll(t *testing.T) {
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.personas["p1"] = st.Persona{ID: "p1", Active: true}
	store.checkpoint = base
	gate := make(chan struct{})
	store.personaGate = gate

	disp := &fakeDispatcher{}
	bus := transport.NewBus()
	s := New(store, &fakeEval{}, &fakeSelector{}, disp, bus, Options{
		ScanInterval: time.Hour,
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.runReactiveLoop(ctx) }()

	// Publish until the loop has subscribed and parked inside its first
	// persona lookup.
	first := st.Message{ID: "m-first", SenderID: "h1", ReceiverID: "p1"}
	for store.personaLookups() == 0 {
		bus.Publish(first)
		time.Sleep(time.Millisecond)
	}

	// With the consumer parked, flood well past the subscription buffer so
	// the tail of the burst is dropped.
	for i := 0; i < 256; i++ {
		bus.Publish(st.Message{ID: fmt.Sprintf("m-%d", i), SenderID: "h1", ReceiverID: "p1"})
	}

	// The dropped tail is still in storage where the poll can find it.
	lost := st.Message{ID: "m-lost", SenderID: "h1", ReceiverID: "p1", SentAt: base.Add(time.Second)}
	store.mu.Lock()
	store.messages = append(store.messages, lost)
	store.mu.Unlock()

	close(gate)

	deadline := time.After(5 * time.Second)
	for {
		reconciled := false
		for _, c := range disp.callsSnapshot() {
			if c.replyTo == "m-lost" {
				reconciled = true
				break
			}
		}
		if reconciled {
			break
		}
		select {
		case <-deadline:
			t.Fatal("dropped message was never reconciled from storage")
		case <-time.After(2 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
