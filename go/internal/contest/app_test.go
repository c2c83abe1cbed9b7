package contest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/keyduel/keyduel/go/internal/models"
)

type stubContestStore struct {
	stubStore
	created []*models.Contest
}

func (s *stubContestStore) CreateContest(_ context.Context, contest *models.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, contest)
	return nil
}

type stubWallets struct {
	stubSettler
	escrowErr error
	escrowed  []settleCall
}

func (w *stubWallets) Escrow(_ context.Context, contestID, identityID uuid.UUID, amount int) error {
	if w.escrowErr != nil {
		return w.escrowErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.escrowed = append(w.escrowed, settleCall{contestID: contestID, winnerID: identityID, amount: amount})
	return nil
}

type stubDirectory struct {
	mu    sync.Mutex
	known map[uuid.UUID]*models.Participant
}

func (d *stubDirectory) GetParticipant(_ context.Context, id uuid.UUID) (*models.Participant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.known[id]
	if !ok {
		return nil, fmt.Errorf("participant %s not found", id)
	}
	return p, nil
}

type fixedPassage string

func (p fixedPassage) Pick() string { return string(p) }

func newTestApp(t *testing.T) (*App, *stubDirectory, *stubWallets, *stubContestStore) {
	t.Helper()

	fc := clockwork.NewFakeClock()
	store := &stubContestStore{}
	wallets := &stubWallets{}
	dir := &stubDirectory{known: make(map[uuid.UUID]*models.Participant)}

	app := NewApp(fc, &stubPublisher{}, store, wallets, dir, fixedPassage("cat"), testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	app.Start(ctx)

	return app, dir, wallets, store
}

func registerParticipant(dir *stubDirectory, name string) uuid.UUID {
	id := uuid.New()
	dir.mu.Lock()
	dir.known[id] = &models.Participant{IdentityID: id, DisplayName: name}
	dir.mu.Unlock()
	return id
}

func TestInviteDuelRejectsSelfDuel(t *testing.T) {
	app, dir, _, _ := newTestApp(t)
	id := registerParticipant(dir, "alice")

	if _, err := app.InviteDuel(context.Background(), id, id, 0); err == nil {
		t.Error("self-duel accepted")
	}
}

func TestInviteDuelRejectsNegativeWager(t *testing.T) {
	app, dir, _, _ := newTestApp(t)
	a := registerParticipant(dir, "alice")
	b := registerParticipant(dir, "bob")

	if _, err := app.InviteDuel(context.Background(), a, b, -1); err == nil {
		t.Error("negative wager accepted")
	}
}

func TestInviteDuelRejectsUnknownOpponent(t *testing.T) {
	app, dir, _, _ := newTestApp(t)
	a := registerParticipant(dir, "alice")

	if _, err := app.InviteDuel(context.Background(), a, uuid.New(), 0); err == nil {
		t.Error("invite to unknown participant accepted")
	}
}

func TestInviteDuelEscrowsChallengerWager(t *testing.T) {
	app, dir, wallets, store := newTestApp(t)
	a := registerParticipant(dir, "alice")
	b := registerParticipant(dir, "bob")

	contest, err := app.InviteDuel(context.Background(), a, b, 5)
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if contest.PassageText != "cat" {
		t.Errorf("passage = %q, want the picked passage", contest.PassageText)
	}

	wallets.mu.Lock()
	escrowed := append([]settleCall(nil), wallets.escrowed...)
	wallets.mu.Unlock()
	if len(escrowed) != 1 {
		t.Fatalf("escrow calls = %d, want 1 at invite time", len(escrowed))
	}
	if escrowed[0].winnerID != a || escrowed[0].amount != 5 {
		t.Errorf("escrowed %+v, want challenger for 5", escrowed[0])
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.created) != 1 {
		t.Errorf("contests persisted = %d, want 1", len(store.created))
	}
}

func TestInviteDuelFailsWhenEscrowFails(t *testing.T) {
	app, dir, wallets, store := newTestApp(t)
	wallets.escrowErr = fmt.Errorf("broke")
	a := registerParticipant(dir, "alice")
	b := registerParticipant(dir, "bob")

	if _, err := app.InviteDuel(context.Background(), a, b, 5); err == nil {
		t.Fatal("invite succeeded despite escrow failure")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.created) != 0 {
		t.Error("contest persisted despite escrow failure")
	}
}

func TestRespondDuelOnlyInvitedMayAnswer(t *testing.T) {
	app, dir, _, _ := newTestApp(t)
	a := registerParticipant(dir, "alice")
	b := registerParticipant(dir, "bob")

	contest, err := app.InviteDuel(context.Background(), a, b, 0)
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	if err := app.RespondDuel(context.Background(), contest.ID, a, true); err == nil {
		t.Error("challenger answered their own invite")
	}
	if err := app.RespondDuel(context.Background(), contest.ID, b, true); err != nil {
		t.Errorf("invited participant's accept failed: %v", err)
	}
}

func TestRespondDuelEscrowsOpponentOnAccept(t *testing.T) {
	app, dir, wallets, _ := newTestApp(t)
	a := registerParticipant(dir, "alice")
	b := registerParticipant(dir, "bob")

	contest, err := app.InviteDuel(context.Background(), a, b, 5)
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if err := app.RespondDuel(context.Background(), contest.ID, b, true); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	wallets.mu.Lock()
	defer wallets.mu.Unlock()
	if len(wallets.escrowed) != 2 {
		t.Fatalf("escrow calls = %d, want both sides held", len(wallets.escrowed))
	}
	if wallets.escrowed[1].winnerID != b {
		t.Errorf("second escrow for %s, want the opponent", wallets.escrowed[1].winnerID)
	}
}

func TestContestStateUnknownContest(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	if _, err := app.ContestState(uuid.New()); err == nil {
		t.Error("state lookup for unknown contest succeeded")
	}
}

func TestSoloRunLifecycle(t *testing.T) {
	app, dir, _, _ := newTestApp(t)
	id := registerParticipant(dir, "alice")

	passage := app.StartSolo(id)
	if passage != "cat" {
		t.Fatalf("solo passage = %q, want the picked passage", passage)
	}

	snap, remaining, err := app.SoloProgress(id, "ca")
	if err != nil {
		t.Fatalf("solo progress failed: %v", err)
	}
	if snap.Finished {
		t.Error("partial prefix marked finished")
	}
	if remaining <= 0 {
		t.Errorf("time remaining = %v, want positive", remaining)
	}

	if _, _, err := app.SoloProgress(uuid.New(), "c"); err == nil {
		t.Error("progress for identity without a run succeeded")
	}
}
