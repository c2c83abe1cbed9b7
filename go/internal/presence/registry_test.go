package presence

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

func drain(r *Registry) []Event {
	var events []Event
	for {
		select {
		case ev := <-r.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestJoinThirdIdentityRejected(t *testing.T) {
	r := NewRegistry(uuid.New(), 0, clockwork.NewFakeClock())

	if err := r.Join(uuid.New()); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(uuid.New()); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(uuid.New()); !errors.Is(err, ErrContestFull) {
		t.Fatalf("third join: got %v, want ErrContestFull", err)
	}
}

func TestJoinIdempotent(t *testing.T) {
	r := NewRegistry(uuid.New(), 0, clockwork.NewFakeClock())
	id := uuid.New()

	if err := r.Join(id); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(id); err != nil {
		t.Fatalf("repeat join: %v", err)
	}
	if events := drain(r); len(events) != 0 {
		t.Errorf("repeat join emitted %d events, want 0", len(events))
	}
}

func TestBothReadyFiresExactlyOnce(t *testing.T) {
	r := NewRegistry(uuid.New(), 0, clockwork.NewFakeClock())
	a, b := uuid.New(), uuid.New()

	if err := r.Join(a); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(b); err != nil {
		t.Fatal(err)
	}
	if err := r.SetReady(a); err != nil {
		t.Fatal(err)
	}
	if events := drain(r); len(events) != 0 {
		t.Fatalf("one ready participant emitted %d events, want 0", len(events))
	}

	if err := r.SetReady(b); err != nil {
		t.Fatal(err)
	}
	// Duplicate ready calls must not re-fire the rendezvous.
	if err := r.SetReady(a); err != nil {
		t.Fatal(err)
	}
	if err := r.SetReady(b); err != nil {
		t.Fatal(err)
	}

	events := drain(r)
	if len(events) != 1 || events[0].Kind != EventBothReady {
		t.Fatalf("events = %v, want single BOTH_READY", events)
	}
}

func TestBothReadyRequiresLiveConnections(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(uuid.New(), 10*time.Second, clock)
	a, b := uuid.New(), uuid.New()

	if err := r.Join(a); err != nil {
		t.Fatal(err)
	}
	if err := r.SetReady(a); err != nil {
		t.Fatal(err)
	}

	// A goes silent before B ever shows up.
	clock.Advance(11 * time.Second)
	r.sweep()

	if err := r.Join(b); err != nil {
		t.Fatal(err)
	}
	if err := r.SetReady(b); err != nil {
		t.Fatal(err)
	}

	for _, ev := range drain(r) {
		if ev.Kind == EventBothReady {
			t.Fatal("bothReady fired while one participant was disconnected")
		}
	}

	// A comes back: condition now holds for the live records.
	if err := r.Join(a); err != nil {
		t.Fatal(err)
	}
	var sawReady bool
	for _, ev := range drain(r) {
		if ev.Kind == EventBothReady {
			sawReady = true
		}
	}
	if !sawReady {
		t.Fatal("bothReady did not fire after rejoin")
	}
}

func TestHeartbeatExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(uuid.New(), 10*time.Second, clock)
	a, b := uuid.New(), uuid.New()

	if err := r.Join(a); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(b); err != nil {
		t.Fatal(err)
	}

	clock.Advance(6 * time.Second)
	if err := r.Heartbeat(a); err != nil {
		t.Fatal(err)
	}
	clock.Advance(6 * time.Second)
	r.sweep()

	events := drain(r)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != EventParticipantLeft || events[0].IdentityID != b {
		t.Errorf("event = %+v, want PARTICIPANT_LEFT for b", events[0])
	}

	rec, ok := r.Record(b)
	if !ok || rec.Connected {
		t.Errorf("record b = %+v, want disconnected", rec)
	}

	// Heartbeat from a silent participant reconnects them.
	if err := r.Heartbeat(b); err != nil {
		t.Fatal(err)
	}
	events = drain(r)
	if len(events) != 1 || events[0].Kind != EventParticipantRejoined {
		t.Errorf("events = %v, want single PARTICIPANT_REJOINED", events)
	}
}
