package contest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/keyduel/keyduel/go/internal/contest/events"
	"github.com/keyduel/keyduel/go/internal/models"
	"github.com/keyduel/keyduel/go/internal/session"
)

type stubPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *stubPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *stubPublisher) countByType(typ events.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type stubStore struct {
	mu       sync.Mutex
	statuses []models.ContestStatus
	outcomes []models.MatchOutcome
}

func (s *stubStore) UpdateContestStatus(_ context.Context, _ uuid.UUID, status models.ContestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *stubStore) RecordOutcome(_ context.Context, outcome models.MatchOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func (s *stubStore) lastOutcome() (models.MatchOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outcomes) == 0 {
		return models.MatchOutcome{}, false
	}
	return s.outcomes[len(s.outcomes)-1], true
}

type settleCall struct {
	contestID uuid.UUID
	winnerID  uuid.UUID
	amount    int
}

type stubSettler struct {
	mu       sync.Mutex
	settled  []settleCall
	refunded []uuid.UUID
}

func (s *stubSettler) Settle(contestID, winnerID uuid.UUID, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled = append(s.settled, settleCall{contestID: contestID, winnerID: winnerID, amount: amount})
}

func (s *stubSettler) Refund(contestID uuid.UUID, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunded = append(s.refunded, contestID)
}

func testSettings() models.ContestSettings {
	return models.ContestSettings{
		CountdownTicks:   3,
		TickInterval:     time.Second,
		InviteTimeout:    30 * time.Second,
		ForfeitGrace:     10 * time.Second,
		HeartbeatTimeout: 10 * time.Second,
	}
}

type fixture struct {
	coord     *Coordinator
	contest   *models.Contest
	clock     *clockwork.FakeClock
	publisher *stubPublisher
	store     *stubStore
	settler   *stubSettler
	cancel    context.CancelFunc
}

func newFixture(t *testing.T, wager int) *fixture {
	t.Helper()

	fc := clockwork.NewFakeClock()
	contest := &models.Contest{
		ID:           uuid.New(),
		PassageText:  "cat",
		ParticipantA: uuid.New(),
		ParticipantB: uuid.New(),
		Status:       models.ContestStatusPending,
		WagerAmount:  wager,
		Settings:     testSettings(),
		CreatedAt:    fc.Now(),
	}

	publisher := &stubPublisher{}
	store := &stubStore{}
	settler := &stubSettler{}
	coord := NewCoordinator(contest, fc, publisher, store, settler)

	ctx, cancel := context.WithCancel(context.Background())
	go coord.Run(ctx)
	t.Cleanup(cancel)

	return &fixture{
		coord:     coord,
		contest:   contest,
		clock:     fc,
		publisher: publisher,
		store:     store,
		settler:   settler,
		cancel:    cancel,
	}
}

// waitFor polls cond with a real-time deadline while the contest clock stays
// fake.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

// driveToActive walks the fixture through accept, readiness and the full
// countdown.
func driveToActive(t *testing.T, f *fixture) {
	t.Helper()

	if err := f.coord.Respond(true); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	waitFor(t, "awaiting_ready", func() bool {
		return f.coord.State().Status == models.ContestStatusAwaitingReady
	})

	reg := f.coord.Registry()
	for _, id := range []uuid.UUID{f.contest.ParticipantA, f.contest.ParticipantB} {
		if err := reg.Join(id); err != nil {
			t.Fatalf("join failed: %v", err)
		}
	}
	if err := reg.SetReady(f.contest.ParticipantA); err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	if err := reg.SetReady(f.contest.ParticipantB); err != nil {
		t.Fatalf("ready failed: %v", err)
	}

	waitFor(t, "countdown", func() bool {
		return f.coord.State().Status == models.ContestStatusCountdown
	})

	for remaining := 2; remaining >= 0; remaining-- {
		f.clock.BlockUntil(2) // tick timer plus the presence sweep ticker
		f.clock.Advance(time.Second)
		want := remaining
		waitFor(t, "countdown tick", func() bool {
			view := f.coord.State()
			if want == 0 {
				return view.Status == models.ContestStatusActive
			}
			return view.CountdownRemaining == want
		})
	}
}

func TestDeclineAbandonsAndRefunds(t *testing.T) {
	f := newFixture(t, 5)

	if err := f.coord.Respond(false); err != nil {
		t.Fatalf("decline failed: %v", err)
	}

	waitFor(t, "terminal status", func() bool {
		select {
		case <-f.coord.Done():
			return true
		default:
			return false
		}
	})

	view := f.coord.State()
	if view.Status != models.ContestStatusAbandoned {
		t.Errorf("status = %s, want ABANDONED", view.Status)
	}
	if view.WinnerID != nil {
		t.Errorf("declined contest has winner %s", view.WinnerID)
	}

	f.settler.mu.Lock()
	defer f.settler.mu.Unlock()
	if len(f.settler.refunded) != 1 {
		t.Errorf("refund calls = %d, want 1", len(f.settler.refunded))
	}
	if len(f.settler.settled) != 0 {
		t.Errorf("settle calls = %d, want 0", len(f.settler.settled))
	}
}

func TestInviteTimeoutAbandons(t *testing.T) {
	f := newFixture(t, 0)

	f.clock.BlockUntil(2) // invite timer plus the presence sweep ticker
	f.clock.Advance(f.contest.Settings.InviteTimeout)

	waitFor(t, "terminal status", func() bool {
		select {
		case <-f.coord.Done():
			return true
		default:
			return false
		}
	})

	if got := f.coord.State().Status; got != models.ContestStatusAbandoned {
		t.Errorf("status = %s, want ABANDONED", got)
	}
	if f.publisher.countByType(events.TypeContestAbandoned) != 1 {
		t.Error("expected one ContestAbandoned event")
	}
}

func TestRespondAfterDecisionRejected(t *testing.T) {
	f := newFixture(t, 0)

	if err := f.coord.Respond(true); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if err := f.coord.Respond(true); err == nil {
		t.Error("second respond succeeded, want rejection")
	}
}

func TestCountdownRunsOnceAndStartsContest(t *testing.T) {
	f := newFixture(t, 0)
	driveToActive(t, f)

	view := f.coord.State()
	if view.Status != models.ContestStatusActive {
		t.Fatalf("status = %s, want ACTIVE", view.Status)
	}
	if view.StartedAt == nil {
		t.Error("StartedAt not set on active contest")
	}

	// A redundant ready rendezvous after the countdown began must not
	// restart it.
	if err := f.coord.Registry().SetReady(f.contest.ParticipantA); err != nil {
		t.Fatalf("duplicate ready failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if got := f.coord.State().Status; got != models.ContestStatusActive {
		t.Errorf("status after duplicate ready = %s, want ACTIVE", got)
	}

	// Ticks for 3, 2, 1 and 0.
	if got := f.publisher.countByType(events.TypeCountdownTick); got != 4 {
		t.Errorf("countdown tick events = %d, want 4", got)
	}
	if got := f.publisher.countByType(events.TypeContestStarted); got != 1 {
		t.Errorf("contest started events = %d, want 1", got)
	}
}

func TestFirstFinishClaimWins(t *testing.T) {
	f := newFixture(t, 5)
	driveToActive(t, f)

	sessA, err := f.coord.Session(f.contest.ParticipantA)
	if err != nil {
		t.Fatal(err)
	}
	sessB, err := f.coord.Session(f.contest.ParticipantB)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sessA.ApplyInput("cat"); err != nil {
		t.Fatalf("finishing input rejected: %v", err)
	}

	waitFor(t, "winner committed", func() bool {
		return f.coord.State().WinnerID != nil && sessB.State() == session.StateComplete
	})

	view := f.coord.State()
	if *view.WinnerID != f.contest.ParticipantA {
		t.Errorf("winner = %s, want participant A", view.WinnerID)
	}
	if view.WonByForfeit {
		t.Error("skill win flagged as forfeit")
	}
	if view.Status != models.ContestStatusFinished {
		t.Errorf("status = %s, want FINISHED", view.Status)
	}

	// The loser's session was force-completed; a late finish claim cannot
	// flip the decision.
	if _, err := sessB.ApplyInput("cat"); err == nil {
		t.Error("input accepted after contest decided")
	}
	if got := *f.coord.State().WinnerID; got != f.contest.ParticipantA {
		t.Errorf("winner changed to %s after late claim", got)
	}

	f.settler.mu.Lock()
	settled := append([]settleCall(nil), f.settler.settled...)
	f.settler.mu.Unlock()
	if len(settled) != 1 {
		t.Fatalf("settle calls = %d, want 1", len(settled))
	}
	if settled[0].winnerID != f.contest.ParticipantA || settled[0].amount != 5 {
		t.Errorf("settled %+v, want winner A amount 5", settled[0])
	}

	outcome, ok := f.store.lastOutcome()
	if !ok {
		t.Fatal("no outcome recorded")
	}
	if outcome.WinnerID == nil || *outcome.WinnerID != f.contest.ParticipantA {
		t.Errorf("persisted winner = %v, want participant A", outcome.WinnerID)
	}
}

func TestDisconnectForfeitsAfterGrace(t *testing.T) {
	f := newFixture(t, 5)
	driveToActive(t, f)

	// Participant A keeps heartbeating; B goes silent. The sweep flags B
	// after the heartbeat timeout and the grace timer then forfeits it.
	reg := f.coord.Registry()
	for i := 0; i < 40; i++ {
		if f.coord.State().WinnerID != nil {
			break
		}
		if err := reg.Heartbeat(f.contest.ParticipantA); err != nil {
			t.Fatalf("heartbeat failed: %v", err)
		}
		f.clock.BlockUntil(1)
		f.clock.Advance(time.Second)
		time.Sleep(2 * time.Millisecond)
	}

	waitFor(t, "forfeit winner", func() bool {
		return f.coord.State().WinnerID != nil
	})

	view := f.coord.State()
	if *view.WinnerID != f.contest.ParticipantA {
		t.Errorf("winner = %s, want the connected participant", view.WinnerID)
	}
	if !view.WonByForfeit {
		t.Error("forfeit win not flagged")
	}
	if view.Status != models.ContestStatusAbandoned {
		t.Errorf("status = %s, want ABANDONED", view.Status)
	}

	f.settler.mu.Lock()
	defer f.settler.mu.Unlock()
	if len(f.settler.settled) != 1 {
		t.Errorf("settle calls = %d, want 1", len(f.settler.settled))
	}
}

func TestStateViewIsACopy(t *testing.T) {
	f := newFixture(t, 0)

	view := f.coord.State()
	view.Progress[uuid.New()] = models.ProgressSnapshot{SequenceNumber: 99}

	if len(f.coord.State().Progress) != 0 {
		t.Error("mutating a returned view leaked into the coordinator")
	}
}
