package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// EventKind identifies membership changes emitted by the registry.
type EventKind string

const (
	EventBothReady           EventKind = "BOTH_READY"
	EventParticipantLeft     EventKind = "PARTICIPANT_LEFT"
	EventParticipantRejoined EventKind = "PARTICIPANT_REJOINED"
)

// Event is a membership-changed notification for the contest coordinator.
type Event struct {
	Kind       EventKind
	ContestID  uuid.UUID
	IdentityID uuid.UUID
}

// Record tracks one participant's connection and readiness for a contest.
type Record struct {
	ContestID       uuid.UUID
	IdentityID      uuid.UUID
	Connected       bool
	Ready           bool
	LastHeartbeatAt time.Time
}

// DefaultHeartbeatTimeout is how long a record may go without a heartbeat
// before it is marked disconnected.
const DefaultHeartbeatTimeout = 10 * time.Second

const sweepInterval = time.Second

// Registry tracks connection and readiness for the two participant slots of
// a single contest. The bothReady condition is always recomputed from the
// live records so a leave-and-rejoin can never satisfy it with stale state.
type Registry struct {
	contestID uuid.UUID
	clock     clockwork.Clock
	timeout   time.Duration

	mu            sync.Mutex
	records       map[uuid.UUID]*Record
	readyAnnounce bool

	events chan Event
}

// NewRegistry creates a registry for one contest.
func NewRegistry(contestID uuid.UUID, timeout time.Duration, clock clockwork.Clock) *Registry {
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}
	return &Registry{
		contestID: contestID,
		clock:     clock,
		timeout:   timeout,
		records:   make(map[uuid.UUID]*Record, 2),
		events:    make(chan Event, 16),
	}
}

// Events returns the membership-changed channel consumed by the coordinator.
func (r *Registry) Events() <-chan Event {
	return r.events
}

// Join marks the participant connected, creating or refreshing their record.
// Idempotent; a third distinct identity is rejected with ErrContestFull.
func (r *Registry) Join(identityID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[identityID]
	if !ok {
		if len(r.records) >= 2 {
			return fmt.Errorf("contest %s: %w", r.contestID, ErrContestFull)
		}
		rec = &Record{ContestID: r.contestID, IdentityID: identityID}
		r.records[identityID] = rec
	}

	rejoined := ok && !rec.Connected
	rec.Connected = true
	rec.LastHeartbeatAt = r.clock.Now()

	if rejoined {
		r.emit(Event{Kind: EventParticipantRejoined, ContestID: r.contestID, IdentityID: identityID})
	}
	r.checkBothReady()
	return nil
}

// SetReady flags the participant ready. Idempotent; unknown identities must
// join first.
func (r *Registry) SetReady(identityID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[identityID]
	if !ok {
		return fmt.Errorf("identity %s not joined to contest %s", identityID, r.contestID)
	}
	rec.Ready = true
	r.checkBothReady()
	return nil
}

// Heartbeat refreshes the participant's liveness timestamp.
func (r *Registry) Heartbeat(identityID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[identityID]
	if !ok {
		return fmt.Errorf("identity %s not joined to contest %s", identityID, r.contestID)
	}
	rec.LastHeartbeatAt = r.clock.Now()
	if !rec.Connected {
		rec.Connected = true
		r.emit(Event{Kind: EventParticipantRejoined, ContestID: r.contestID, IdentityID: identityID})
		r.checkBothReady()
	}
	return nil
}

// Record returns a copy of the participant's record.
func (r *Registry) Record(identityID uuid.UUID) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[identityID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Run sweeps heartbeats until ctx is cancelled, marking silent participants
// disconnected and emitting a left event for each.
func (r *Registry) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.sweep()
		}
	}
}

// sweep expires records whose heartbeat is older than the timeout.
func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for _, rec := range r.records {
		if rec.Connected && now.Sub(rec.LastHeartbeatAt) > r.timeout {
			rec.Connected = false
			log.Info().
				Str("contest_id", r.contestID.String()).
				Str("identity_id", rec.IdentityID.String()).
				Dur("silence", now.Sub(rec.LastHeartbeatAt)).
				Msg("participant heartbeat expired")
			r.emit(Event{Kind: EventParticipantLeft, ContestID: r.contestID, IdentityID: rec.IdentityID})
		}
	}
}

// checkBothReady fires the rendezvous event exactly once, the instant both
// live records are connected and ready. Callers must hold r.mu.
func (r *Registry) checkBothReady() {
	if r.readyAnnounce || len(r.records) < 2 {
		return
	}
	for _, rec := range r.records {
		if !rec.Connected || !rec.Ready {
			return
		}
	}
	r.readyAnnounce = true
	r.emit(Event{Kind: EventBothReady, ContestID: r.contestID})
}

func (r *Registry) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		log.Warn().
			Str("contest_id", r.contestID.String()).
			Str("kind", string(ev.Kind)).
			Msg("presence event channel full, dropping event")
	}
}
