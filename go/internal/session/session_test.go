package session

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/keyduel/keyduel/go/internal/models"
)

func newTestSession(passage string, emit Emitter) (*Session, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	s := New(uuid.New(), uuid.New(), passage, clock, emit)
	return s, clock
}

func TestSessionRejectsInputBeforeStart(t *testing.T) {
	s, _ := newTestSession("cat", nil)

	if _, err := s.ApplyInput("c"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ApplyInput before start: got %v, want ErrInvalidTransition", err)
	}
	if s.State() != StateIdle {
		t.Errorf("state = %s, want IDLE", s.State())
	}
}

func TestSessionRejectsOverlongPrefix(t *testing.T) {
	var emitted []models.ProgressSnapshot
	s, _ := newTestSession("cat", func(snap models.ProgressSnapshot) {
		emitted = append(emitted, snap)
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	if _, err := s.ApplyInput("cats"); !errors.Is(err, ErrInputTooLong) {
		t.Fatalf("ApplyInput overlong: got %v, want ErrInputTooLong", err)
	}
	if len(emitted) != 0 {
		t.Errorf("rejected input emitted %d snapshots, want 0", len(emitted))
	}
}

func TestSessionEmitsOneSnapshotPerInput(t *testing.T) {
	var emitted []models.ProgressSnapshot
	s, clock := newTestSession("cat", func(snap models.ProgressSnapshot) {
		emitted = append(emitted, snap)
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Second)
	if _, err := s.ApplyInput("c"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)
	if _, err := s.ApplyInput("ca"); err != nil {
		t.Fatal(err)
	}

	if len(emitted) != 2 {
		t.Fatalf("emitted %d snapshots, want 2", len(emitted))
	}
	if emitted[0].SequenceNumber != 1 || emitted[1].SequenceNumber != 2 {
		t.Errorf("sequence numbers = %d, %d; want 1, 2",
			emitted[0].SequenceNumber, emitted[1].SequenceNumber)
	}
	if emitted[1].CompletionRatio <= emitted[0].CompletionRatio {
		t.Errorf("completion ratio not increasing: %v then %v",
			emitted[0].CompletionRatio, emitted[1].CompletionRatio)
	}
}

func TestSessionCompletesOnFullPassage(t *testing.T) {
	s, clock := newTestSession("cat", nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	clock.Advance(6 * time.Second)

	snap, err := s.ApplyInput("cat")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Finished {
		t.Error("snapshot not marked finished")
	}
	if snap.WPM != 6 {
		t.Errorf("WPM = %d, want 6", snap.WPM)
	}
	if s.State() != StateComplete {
		t.Errorf("state = %s, want COMPLETE", s.State())
	}
	if s.CompleteReason() != ReasonFinished {
		t.Errorf("reason = %s, want FINISHED", s.CompleteReason())
	}

	if _, err := s.ApplyInput("cat"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("input after completion: got %v, want ErrInvalidTransition", err)
	}
}

func TestSessionDuplicateStartRejected(t *testing.T) {
	s, clock := newTestSession("cat", nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	clock.Advance(10 * time.Second)

	if err := s.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("duplicate start: got %v, want ErrInvalidTransition", err)
	}

	// Elapsed base must not have been reset by the replayed start.
	snap, err := s.ApplyInput("cat")
	if err != nil {
		t.Fatal(err)
	}
	if snap.WPM == 0 {
		t.Error("WPM = 0 after 10s of elapsed time")
	}
}

func TestSessionForceComplete(t *testing.T) {
	s, _ := newTestSession("cat", nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	s.ForceComplete(ReasonOpponent)
	s.ForceComplete(ReasonTimeout) // idempotent, first reason sticks

	if s.State() != StateComplete {
		t.Errorf("state = %s, want COMPLETE", s.State())
	}
	if s.CompleteReason() != ReasonOpponent {
		t.Errorf("reason = %s, want OPPONENT_WON", s.CompleteReason())
	}
}

func TestSoloStartsOnFirstKeystroke(t *testing.T) {
	clock := clockwork.NewFakeClock()
	solo := NewSolo(uuid.New(), "cat", 30*time.Second, clock)

	if solo.TimeRemaining() != 30*time.Second {
		t.Errorf("TimeRemaining before start = %v, want 30s", solo.TimeRemaining())
	}

	if _, err := solo.ApplyInput("c"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(10 * time.Second)
	if solo.TimeRemaining() != 20*time.Second {
		t.Errorf("TimeRemaining = %v, want 20s", solo.TimeRemaining())
	}
}

func TestSoloExpiresAtTimeLimit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	solo := NewSolo(uuid.New(), "the quick brown fox", 30*time.Second, clock)

	if _, err := solo.ApplyInput("the"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(31 * time.Second)

	if _, err := solo.ApplyInput("the q"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("input after expiry: got %v, want ErrInvalidTransition", err)
	}
	if solo.State() != StateComplete {
		t.Errorf("state = %s, want COMPLETE", solo.State())
	}
}
