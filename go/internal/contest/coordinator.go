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
	"github.com/keyduel/keyduel/go/internal/presence"
	"github.com/keyduel/keyduel/go/internal/session"
)

// Publisher pushes contest events onto the event stream for fan-out to both
// clients.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// MatchStore persists contest status changes and the final outcome record.
type MatchStore interface {
	UpdateContestStatus(ctx context.Context, id uuid.UUID, status models.ContestStatus) error
	RecordOutcome(ctx context.Context, outcome models.MatchOutcome) error
}

// WagerSettler hands wager resolution to the ledger. Implementations must be
// asynchronous and retry internally; a payment hiccup can never leave a
// contest stuck.
type WagerSettler interface {
	Settle(contestID, winnerID uuid.UUID, amount int)
	Refund(contestID uuid.UUID, amount int)
}

// inboundMsg is a message delivered to the coordinator's serialized inbox.
type inboundMsg interface{ isInbound() }

type respondMsg struct {
	accept bool
	reply  chan error
}

type snapshotMsg struct {
	snap models.ProgressSnapshot
}

func (respondMsg) isInbound()  {}
func (snapshotMsg) isInbound() {}

// StateView is a read-only copy of the coordinator's current view, served to
// reconnecting clients.
type StateView struct {
	ContestID          uuid.UUID                            `json:"contest_id"`
	Status             models.ContestStatus                 `json:"status"`
	PassageText        string                               `json:"passage_text"`
	WagerAmount        int                                  `json:"wager_amount"`
	CountdownRemaining int                                  `json:"countdown_remaining"`
	Progress           map[uuid.UUID]models.ProgressSnapshot `json:"progress"`
	WinnerID           *uuid.UUID                           `json:"winner_id,omitempty"`
	WonByForfeit       bool                                 `json:"won_by_forfeit"`
	StartedAt          *time.Time                           `json:"started_at,omitempty"`
	FinishedAt         *time.Time                           `json:"finished_at,omitempty"`
}

// Coordinator is the authoritative state machine for one contest. It is the
// sole writer of the contest's status and winner: every other component
// talks to it through messages, never by mutating its state. That single
// ordered decision point is what guarantees exactly one winner no matter how
// finish-claiming snapshots interleave.
type Coordinator struct {
	contest   *models.Contest
	clock     clockwork.Clock
	registry  *presence.Registry
	publisher Publisher
	store     MatchStore
	settler   WagerSettler

	sessions   map[uuid.UUID]*session.Session
	replicator *Replicator

	inbox chan inboundMsg
	done  chan struct{}

	// Actor-loop state, touched only from Run.
	countdownRemaining int
	leftAt             map[uuid.UUID]time.Time
	graceDeadline      time.Time
	latest             map[uuid.UUID]models.ProgressSnapshot

	viewMu sync.RWMutex
	view   StateView
}

// NewCoordinator assembles the coordinator, its presence registry, the two
// typing sessions and the progress replicator for one contest.
func NewCoordinator(c *models.Contest, clock clockwork.Clock, publisher Publisher, store MatchStore, settler WagerSettler) *Coordinator {
	coord := &Coordinator{
		contest:   c,
		clock:     clock,
		registry:  presence.NewRegistry(c.ID, c.Settings.HeartbeatTimeout, clock),
		publisher: publisher,
		store:     store,
		settler:   settler,
		sessions:  make(map[uuid.UUID]*session.Session, 2),
		inbox:     make(chan inboundMsg, 64),
		done:      make(chan struct{}),
		leftAt:    make(map[uuid.UUID]time.Time),
		latest:    make(map[uuid.UUID]models.ProgressSnapshot),
	}
	coord.replicator = NewReplicator(coord.submitSnapshot, publisher)
	for _, id := range []uuid.UUID{c.ParticipantA, c.ParticipantB} {
		coord.sessions[id] = session.New(c.ID, id, c.PassageText, clock, coord.replicator.Relay)
	}
	coord.publishView()
	return coord
}

// Registry exposes the contest's presence registry for join/ready/heartbeat
// routing. The registry is internally synchronized.
func (c *Coordinator) Registry() *presence.Registry {
	return c.registry
}

// Session returns the typing session for a contest participant. The session
// map is immutable after construction, so concurrent reads are safe.
func (c *Coordinator) Session(identityID uuid.UUID) (*session.Session, error) {
	s, ok := c.sessions[identityID]
	if !ok {
		return nil, ErrNotParticipant
	}
	return s, nil
}

// Invite returns the immutable invite facts: who challenged, who was
// invited, and the wager at stake.
func (c *Coordinator) Invite() (challenger, invited uuid.UUID, wager int) {
	return c.contest.ParticipantA, c.contest.ParticipantB, c.contest.WagerAmount
}

// Respond delivers the invited participant's accept/decline decision.
func (c *Coordinator) Respond(accept bool) error {
	msg := respondMsg{accept: accept, reply: make(chan error, 1)}
	select {
	case c.inbox <- msg:
	case <-c.done:
		return ErrContestClosed
	}
	select {
	case err := <-msg.reply:
		return err
	case <-c.done:
		return ErrContestClosed
	}
}

// State returns a copy of the coordinator's current view.
func (c *Coordinator) State() StateView {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()

	view := c.view
	view.Progress = make(map[uuid.UUID]models.ProgressSnapshot, len(c.view.Progress))
	for id, snap := range c.view.Progress {
		view.Progress[id] = snap
	}
	return view
}

// Done is closed once the contest reaches a terminal status.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// submitSnapshot feeds a replicated snapshot into the serialized inbox.
// Late snapshots for a resolved contest are acknowledged and dropped.
func (c *Coordinator) submitSnapshot(snap models.ProgressSnapshot) {
	select {
	case c.inbox <- snapshotMsg{snap: snap}:
	case <-c.done:
		log.Debug().
			Str("contest_id", snap.ContestID.String()).
			Uint64("seq", snap.SequenceNumber).
			Msg("snapshot dropped, contest resolved")
	}
}

// Run drives the contest lifecycle until a terminal status or ctx
// cancellation. All status and winner writes happen on this goroutine.
func (c *Coordinator) Run(ctx context.Context) {
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go c.registry.Run(sweepCtx)

	inviteTimer := c.clock.NewTimer(c.contest.Settings.InviteTimeout)
	defer inviteTimer.Stop()
	inviteCh := inviteTimer.Chan()

	tickTimer := c.clock.NewTimer(time.Hour)
	tickTimer.Stop()
	defer tickTimer.Stop()

	graceTimer := c.clock.NewTimer(time.Hour)
	graceTimer.Stop()
	defer graceTimer.Stop()

	log.Info().
		Str("contest_id", c.contest.ID.String()).
		Str("participant_a", c.contest.ParticipantA.String()).
		Str("participant_b", c.contest.ParticipantB.String()).
		Int("wager", c.contest.WagerAmount).
		Msg("coordinator started")

	for {
		select {
		case <-ctx.Done():
			if !c.contest.Status.Terminal() {
				c.abandon(context.Background(), "coordinator shutdown")
			}
			return

		case msg := <-c.inbox:
			switch m := msg.(type) {
			case respondMsg:
				m.reply <- c.handleRespond(ctx, m.accept)
				if c.contest.Status == models.ContestStatusAccepted || c.contest.Status == models.ContestStatusAwaitingReady {
					inviteTimer.Stop()
					inviteCh = nil
				}
			case snapshotMsg:
				c.handleSnapshot(ctx, m.snap)
			}

		case ev := <-c.registry.Events():
			c.handlePresence(ctx, ev, tickTimer, graceTimer)

		case <-inviteCh:
			if c.contest.Status == models.ContestStatusPending {
				log.Info().Str("contest_id", c.contest.ID.String()).Msg("invite timed out")
				c.abandon(ctx, "invite timed out")
			}

		case <-tickTimer.Chan():
			c.handleCountdownTick(ctx, tickTimer)

		case <-graceTimer.Chan():
			c.handleGraceExpired(ctx, graceTimer)
		}

		if c.contest.Status.Terminal() {
			close(c.done)
			log.Info().
				Str("contest_id", c.contest.ID.String()).
				Str("status", string(c.contest.Status)).
				Msg("coordinator stopped")
			return
		}
	}
}

// handleRespond processes the invited participant's decision.
func (c *Coordinator) handleRespond(ctx context.Context, accept bool) error {
	if c.contest.Status != models.ContestStatusPending {
		return fmt.Errorf("respond while %s: %w", c.contest.Status, ErrInvalidTransition)
	}

	if !accept {
		log.Info().Str("contest_id", c.contest.ID.String()).Msg("invite declined")
		c.abandon(ctx, "invite declined")
		return nil
	}

	c.setStatus(ctx, models.ContestStatusAccepted)
	c.publishEvent(ctx, events.TypeContestAccepted, events.ContestAcceptedPayload{
		ContestID:  c.contest.ID.String(),
		AcceptedAt: c.clock.Now().UTC(),
	})

	// Both sessions were initialized at construction, so the contest moves
	// straight on to the readiness rendezvous.
	c.setStatus(ctx, models.ContestStatusAwaitingReady)
	return nil
}

// handlePresence reacts to membership changes from the presence registry.
func (c *Coordinator) handlePresence(ctx context.Context, ev presence.Event, tickTimer, graceTimer clockwork.Timer) {
	switch ev.Kind {
	case presence.EventBothReady:
		if c.contest.Status != models.ContestStatusAwaitingReady {
			// Duplicate rendezvous events are no-ops.
			log.Debug().
				Str("contest_id", c.contest.ID.String()).
				Str("status", string(c.contest.Status)).
				Msg("ignoring bothReady outside awaiting_ready")
			return
		}
		c.setStatus(ctx, models.ContestStatusCountdown)
		c.countdownRemaining = c.contest.Settings.CountdownTicks
		c.publishCountdownTick(ctx)
		tickTimer.Reset(c.contest.Settings.TickInterval)

	case presence.EventParticipantLeft:
		now := c.clock.Now()
		c.leftAt[ev.IdentityID] = now
		deadline := now.Add(c.contest.Settings.ForfeitGrace)
		if c.graceDeadline.IsZero() || deadline.Before(c.graceDeadline) {
			c.graceDeadline = deadline
			graceTimer.Reset(c.contest.Settings.ForfeitGrace)
		}
		log.Info().
			Str("contest_id", c.contest.ID.String()).
			Str("identity_id", ev.IdentityID.String()).
			Msg("participant left, forfeit grace running")

	case presence.EventParticipantRejoined:
		delete(c.leftAt, ev.IdentityID)
		if len(c.leftAt) == 0 {
			graceTimer.Stop()
			c.graceDeadline = time.Time{}
		}
		log.Info().
			Str("contest_id", c.contest.ID.String()).
			Str("identity_id", ev.IdentityID.String()).
			Msg("participant rejoined within grace")
	}
}

// handleCountdownTick advances the authoritative countdown. The transition
// to active fires exactly once, from this coordinator's clock, never from a
// client rederiving it.
func (c *Coordinator) handleCountdownTick(ctx context.Context, tickTimer clockwork.Timer) {
	if c.contest.Status != models.ContestStatusCountdown {
		return
	}

	c.countdownRemaining--
	if c.countdownRemaining > 0 {
		c.publishCountdownTick(ctx)
		tickTimer.Reset(c.contest.Settings.TickInterval)
		return
	}
	c.publishCountdownTick(ctx)

	now := c.clock.Now()
	c.contest.StartedAt = &now
	c.setStatus(ctx, models.ContestStatusActive)
	for _, s := range c.sessions {
		if err := s.Start(); err != nil {
			log.Error().Err(err).
				Str("contest_id", c.contest.ID.String()).
				Str("identity_id", s.IdentityID().String()).
				Msg("session start failed")
		}
	}
	c.publishEvent(ctx, events.TypeContestStarted, events.ContestStartedPayload{
		ContestID:   c.contest.ID.String(),
		PassageText: c.contest.PassageText,
		StartedAt:   now.UTC(),
	})
}

// handleSnapshot records replicated progress and arbitrates the finish. The
// check-and-set on winner is atomic because this is the only goroutine that
// writes it: the first finish-claiming snapshot processed here wins, any
// later claim is kept as a valid snapshot but changes nothing.
func (c *Coordinator) handleSnapshot(ctx context.Context, snap models.ProgressSnapshot) {
	if last, ok := c.latest[snap.IdentityID]; ok && snap.SequenceNumber <= last.SequenceNumber {
		return
	}
	c.latest[snap.IdentityID] = snap
	c.publishView()

	if !snap.Finished {
		return
	}
	if c.contest.Status != models.ContestStatusActive || c.contest.WinnerID != nil {
		log.Debug().
			Str("contest_id", c.contest.ID.String()).
			Str("identity_id", snap.IdentityID.String()).
			Msg("finish claim recorded but contest already decided")
		return
	}

	winner := snap.IdentityID
	c.commitWinner(ctx, winner, false)
}

// handleGraceExpired forfeits participants who stayed disconnected past the
// grace period.
func (c *Coordinator) handleGraceExpired(ctx context.Context, graceTimer clockwork.Timer) {
	if c.contest.Status.Terminal() {
		return
	}

	now := c.clock.Now()
	var expired []uuid.UUID
	var nextDeadline time.Time
	for id, left := range c.leftAt {
		deadline := left.Add(c.contest.Settings.ForfeitGrace)
		if !deadline.After(now) {
			expired = append(expired, id)
		} else if nextDeadline.IsZero() || deadline.Before(nextDeadline) {
			nextDeadline = deadline
		}
	}
	c.graceDeadline = nextDeadline
	if !nextDeadline.IsZero() {
		graceTimer.Reset(nextDeadline.Sub(now))
	}
	if len(expired) == 0 {
		return
	}

	if len(expired) == 2 {
		// Nobody left to award the contest to.
		log.Error().Str("contest_id", c.contest.ID.String()).Msg("both participants gone, abandoning contest")
		c.abandon(ctx, "both participants disconnected")
		return
	}

	gone := expired[0]
	if c.contest.Status == models.ContestStatusActive {
		winner := c.contest.Opponent(gone)
		log.Info().
			Str("contest_id", c.contest.ID.String()).
			Str("forfeited_by", gone.String()).
			Str("winner_id", winner.String()).
			Msg("declaring winner by forfeit")
		c.commitWinner(ctx, winner, true)
		return
	}

	// Not racing yet, so there is nothing to forfeit: tear the contest down.
	c.abandon(ctx, "participant disconnected before start")
}

// commitWinner resolves the contest exactly once. forfeit distinguishes a
// disconnection win from a completed race in the persisted record.
func (c *Coordinator) commitWinner(ctx context.Context, winner uuid.UUID, forfeit bool) {
	now := c.clock.Now()
	c.contest.WinnerID = &winner
	c.contest.WonByForfeit = forfeit
	c.contest.FinishedAt = &now
	if forfeit {
		c.setStatus(ctx, models.ContestStatusAbandoned)
	} else {
		c.setStatus(ctx, models.ContestStatusFinished)
	}

	for id, s := range c.sessions {
		if id == winner && !forfeit {
			continue
		}
		reason := session.ReasonOpponent
		if forfeit {
			reason = session.ReasonAbandoned
		}
		s.ForceComplete(reason)
	}

	c.persistOutcome(ctx)
	if c.contest.WagerAmount > 0 {
		c.settler.Settle(c.contest.ID, winner, c.contest.WagerAmount)
	}

	results := make([]events.ParticipantResult, 0, 2)
	for id, snap := range c.latest {
		results = append(results, events.ParticipantResult{
			IdentityID: id.String(),
			WPM:        snap.WPM,
			Accuracy:   snap.Accuracy,
			Completion: snap.CompletionRatio,
		})
	}
	c.publishEvent(ctx, events.TypeContestFinished, events.ContestFinishedPayload{
		ContestID:    c.contest.ID.String(),
		WinnerID:     winner.String(),
		WonByForfeit: forfeit,
		Results:      results,
		FinishedAt:   now.UTC(),
	})
}

// abandon tears the contest down without a winner and refunds any wager.
func (c *Coordinator) abandon(ctx context.Context, reason string) {
	now := c.clock.Now()
	c.contest.FinishedAt = &now
	c.setStatus(ctx, models.ContestStatusAbandoned)

	for _, s := range c.sessions {
		s.ForceComplete(session.ReasonAbandoned)
	}

	c.persistOutcome(ctx)
	if c.contest.WagerAmount > 0 {
		c.settler.Refund(c.contest.ID, c.contest.WagerAmount)
	}

	c.publishEvent(ctx, events.TypeContestAbandoned, events.ContestAbandonedPayload{
		ContestID:   c.contest.ID.String(),
		Reason:      reason,
		AbandonedAt: now.UTC(),
	})
}

// setStatus applies a monotonic status transition. Backward transitions are
// an internal invariant violation: logged loudly and refused.
func (c *Coordinator) setStatus(ctx context.Context, next models.ContestStatus) {
	if !c.contest.Status.CanTransitionTo(next) {
		log.Error().
			Str("contest_id", c.contest.ID.String()).
			Str("from", string(c.contest.Status)).
			Str("to", string(next)).
			Msg("refusing non-monotonic status transition")
		return
	}
	c.contest.Status = next
	c.publishView()

	if err := c.store.UpdateContestStatus(ctx, c.contest.ID, next); err != nil {
		log.Error().Err(err).
			Str("contest_id", c.contest.ID.String()).
			Str("status", string(next)).
			Msg("failed to persist contest status")
	}
}

func (c *Coordinator) persistOutcome(ctx context.Context) {
	outcome := models.MatchOutcome{
		ContestID:    c.contest.ID,
		ParticipantA: c.contest.ParticipantA,
		ParticipantB: c.contest.ParticipantB,
		Status:       c.contest.Status,
		WinnerID:     c.contest.WinnerID,
		WonByForfeit: c.contest.WonByForfeit,
		WagerAmount:  c.contest.WagerAmount,
		ResultA:      c.latest[c.contest.ParticipantA],
		ResultB:      c.latest[c.contest.ParticipantB],
		StartedAt:    c.contest.StartedAt,
		FinishedAt:   c.contest.FinishedAt,
	}
	if err := c.store.RecordOutcome(ctx, outcome); err != nil {
		log.Error().Err(err).
			Str("contest_id", c.contest.ID.String()).
			Msg("failed to persist contest outcome")
	}
}

func (c *Coordinator) publishCountdownTick(ctx context.Context) {
	c.publishView()
	c.publishEvent(ctx, events.TypeCountdownTick, events.CountdownTickPayload{
		ContestID:          c.contest.ID.String(),
		CountdownRemaining: c.countdownRemaining,
		TickedAt:           c.clock.Now().UTC(),
	})
}

func (c *Coordinator) publishEvent(ctx context.Context, typ events.Type, payload any) {
	ev, err := events.New(c.contest.ID, typ, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to build event")
		return
	}
	if err := c.publisher.Publish(ctx, ev); err != nil {
		log.Error().Err(err).
			Str("contest_id", c.contest.ID.String()).
			Str("event_type", string(typ)).
			Msg("failed to publish event")
	}
}

// publishView refreshes the read-side copy served to reconnecting clients.
func (c *Coordinator) publishView() {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()

	progress := make(map[uuid.UUID]models.ProgressSnapshot, len(c.latest))
	for id, snap := range c.latest {
		progress[id] = snap
	}
	c.view = StateView{
		ContestID:          c.contest.ID,
		Status:             c.contest.Status,
		PassageText:        c.contest.PassageText,
		WagerAmount:        c.contest.WagerAmount,
		CountdownRemaining: c.countdownRemaining,
		Progress:           progress,
		WinnerID:           c.contest.WinnerID,
		WonByForfeit:       c.contest.WonByForfeit,
		StartedAt:          c.contest.StartedAt,
		FinishedAt:         c.contest.FinishedAt,
	}
}
