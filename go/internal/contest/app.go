package contest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/keyduel/keyduel/go/internal/contest/events"
	"github.com/keyduel/keyduel/go/internal/models"
	"github.com/keyduel/keyduel/go/internal/session"
)

// ContestStore is what the app layer needs from the match store.
type ContestStore interface {
	MatchStore
	CreateContest(ctx context.Context, contest *models.Contest) error
}

// Wallets is what the app layer needs from the ledger: escrow up front,
// settle or refund at resolution.
type Wallets interface {
	WagerSettler
	Escrow(ctx context.Context, contestID, identityID uuid.UUID, amount int) error
}

// IdentityDirectory resolves participant profiles. Read-only collaborator.
type IdentityDirectory interface {
	GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
}

// PassagePicker selects the shared passage for a contest. The core picks the
// text so neither client can choose its own.
type PassagePicker interface {
	Pick() string
}

// retainResolved keeps a resolved coordinator around so late state queries
// and result screens still get an answer.
const retainResolved = 5 * time.Minute

// App coordinates contest lifecycles: invites, responses, per-contest
// coordinators and solo practice runs.
type App struct {
	clock      clockwork.Clock
	publisher  Publisher
	store      ContestStore
	wallets    Wallets
	identities IdentityDirectory
	passages   PassagePicker
	defaults   models.ContestSettings

	baseCtx context.Context

	mu           sync.RWMutex
	coordinators map[uuid.UUID]*Coordinator
	solos        map[uuid.UUID]*session.Solo
}

// NewApp creates a contest App.
func NewApp(clock clockwork.Clock, publisher Publisher, store ContestStore, wallets Wallets, identities IdentityDirectory, passages PassagePicker, defaults models.ContestSettings) *App {
	return &App{
		clock:        clock,
		publisher:    publisher,
		store:        store,
		wallets:      wallets,
		identities:   identities,
		passages:     passages,
		defaults:     defaults,
		coordinators: make(map[uuid.UUID]*Coordinator),
		solos:        make(map[uuid.UUID]*session.Solo),
	}
}

// Start binds the lifetime context used for coordinator goroutines.
func (a *App) Start(ctx context.Context) {
	a.baseCtx = ctx
}

// InviteDuel creates a pending contest between challenger and opponent and
// spins up its coordinator. The challenger's wager is escrowed immediately;
// the opponent's at accept time.
func (a *App) InviteDuel(ctx context.Context, fromID, toID uuid.UUID, wager int) (*models.Contest, error) {
	if fromID == toID {
		return nil, fmt.Errorf("cannot duel yourself")
	}
	if wager < 0 {
		return nil, fmt.Errorf("wager must be non-negative")
	}

	challenger, err := a.identities.GetParticipant(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("challenger not found: %w", err)
	}
	if _, err := a.identities.GetParticipant(ctx, toID); err != nil {
		return nil, fmt.Errorf("opponent not found: %w", err)
	}

	contest := &models.Contest{
		ID:           uuid.New(),
		PassageText:  a.passages.Pick(),
		ParticipantA: fromID,
		ParticipantB: toID,
		Status:       models.ContestStatusPending,
		WagerAmount:  wager,
		Settings:     a.defaults,
		CreatedAt:    a.clock.Now(),
	}

	if wager > 0 {
		if err := a.wallets.Escrow(ctx, contest.ID, fromID, wager); err != nil {
			return nil, fmt.Errorf("failed to escrow wager: %w", err)
		}
	}

	if err := a.store.CreateContest(ctx, contest); err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}

	coord := NewCoordinator(contest, a.clock, a.publisher, a.store, a.wallets)
	a.mu.Lock()
	a.coordinators[contest.ID] = coord
	a.mu.Unlock()

	runCtx := a.baseCtx
	if runCtx == nil {
		runCtx = context.Background()
	}
	go coord.Run(runCtx)
	go a.reapWhenResolved(runCtx, contest.ID, coord)

	ev, err := events.New(contest.ID, events.TypeContestInvited, events.ContestInvitedPayload{
		ContestID:     contest.ID.String(),
		FromID:        fromID.String(),
		FromName:      challenger.DisplayName,
		ToID:          toID.String(),
		WagerAmount:   wager,
		CreatedAt:     contest.CreatedAt.UTC(),
		RespondBy:     contest.CreatedAt.Add(a.defaults.InviteTimeout).UTC(),
		PassageLength: len(contest.PassageText),
	})
	if err == nil {
		if err := a.publisher.Publish(ctx, ev); err != nil {
			log.Error().Err(err).Str("contest_id", contest.ID.String()).Msg("failed to publish invite event")
		}
	}

	log.Info().
		Str("contest_id", contest.ID.String()).
		Str("from", challenger.DisplayName).
		Int("wager", wager).
		Msg("duel invite created")
	return contest, nil
}

// RespondDuel delivers the invited participant's accept or decline.
func (a *App) RespondDuel(ctx context.Context, contestID, identityID uuid.UUID, accept bool) error {
	coord, err := a.coordinator(contestID)
	if err != nil {
		return err
	}
	_, invited, wager := coord.Invite()
	if identityID != invited {
		return fmt.Errorf("identity %s was not invited: %w", identityID, ErrNotParticipant)
	}

	if accept && wager > 0 {
		if err := a.wallets.Escrow(ctx, contestID, identityID, wager); err != nil {
			return fmt.Errorf("failed to escrow wager: %w", err)
		}
	}
	return coord.Respond(accept)
}

// Join marks the participant present in the contest's presence registry.
func (a *App) Join(contestID, identityID uuid.UUID) error {
	coord, err := a.coordinator(contestID)
	if err != nil {
		return err
	}
	if _, err := coord.Session(identityID); err != nil {
		return err
	}
	return coord.Registry().Join(identityID)
}

// SetReady flags the participant ready for the countdown rendezvous.
func (a *App) SetReady(contestID, identityID uuid.UUID) error {
	coord, err := a.coordinator(contestID)
	if err != nil {
		return err
	}
	if _, err := coord.Session(identityID); err != nil {
		return err
	}
	return coord.Registry().SetReady(identityID)
}

// Heartbeat refreshes the participant's liveness.
func (a *App) Heartbeat(contestID, identityID uuid.UUID) error {
	coord, err := a.coordinator(contestID)
	if err != nil {
		return err
	}
	return coord.Registry().Heartbeat(identityID)
}

// UpdateProgress applies a typed prefix to the participant's session. The
// emitted snapshot flows through the replicator to the opponent and the
// coordinator.
func (a *App) UpdateProgress(contestID, identityID uuid.UUID, typedPrefix string) (models.ProgressSnapshot, error) {
	coord, err := a.coordinator(contestID)
	if err != nil {
		return models.ProgressSnapshot{}, err
	}
	sess, err := coord.Session(identityID)
	if err != nil {
		return models.ProgressSnapshot{}, err
	}
	return sess.ApplyInput(typedPrefix)
}

// ContestState returns the coordinator's current view for UI sync.
func (a *App) ContestState(contestID uuid.UUID) (StateView, error) {
	coord, err := a.coordinator(contestID)
	if err != nil {
		return StateView{}, err
	}
	return coord.State(), nil
}

// StartSolo begins a solo practice run and returns its passage.
func (a *App) StartSolo(identityID uuid.UUID) string {
	passage := a.passages.Pick()
	a.mu.Lock()
	a.solos[identityID] = session.NewSolo(identityID, passage, session.DefaultSoloDuration, a.clock)
	a.mu.Unlock()
	return passage
}

// SoloProgress applies input to the identity's solo run.
func (a *App) SoloProgress(identityID uuid.UUID, typedPrefix string) (models.ProgressSnapshot, time.Duration, error) {
	a.mu.RLock()
	solo, ok := a.solos[identityID]
	a.mu.RUnlock()
	if !ok {
		return models.ProgressSnapshot{}, 0, fmt.Errorf("no solo run for identity %s", identityID)
	}
	snap, err := solo.ApplyInput(typedPrefix)
	return snap, solo.TimeRemaining(), err
}

func (a *App) coordinator(contestID uuid.UUID) (*Coordinator, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	coord, ok := a.coordinators[contestID]
	if !ok {
		return nil, fmt.Errorf("contest %s: %w", contestID, ErrUnknownContest)
	}
	return coord, nil
}

// reapWhenResolved drops the coordinator after a retention window so the
// result screen can still query state shortly after the contest ends.
func (a *App) reapWhenResolved(ctx context.Context, contestID uuid.UUID, coord *Coordinator) {
	select {
	case <-coord.Done():
	case <-ctx.Done():
	}
	select {
	case <-a.clock.After(retainResolved):
	case <-ctx.Done():
	}

	a.mu.Lock()
	delete(a.coordinators, contestID)
	a.mu.Unlock()
}
