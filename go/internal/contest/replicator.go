package contest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keyduel/keyduel/go/internal/contest/events"
	"github.com/keyduel/keyduel/go/internal/models"
)

// Replicator relays each participant's snapshots to the opposing client (via
// the event stream) and to the coordinator's inbox. Delivery upstream is
// at-least-once, so the replicator discards duplicates and reordered
// snapshots by sequence number before fanning out.
type Replicator struct {
	sink      func(models.ProgressSnapshot)
	publisher Publisher

	mu      sync.Mutex
	lastSeq map[uuid.UUID]uint64
}

// NewReplicator wires a replicator to the coordinator's snapshot sink.
func NewReplicator(sink func(models.ProgressSnapshot), publisher Publisher) *Replicator {
	return &Replicator{
		sink:      sink,
		publisher: publisher,
		lastSeq:   make(map[uuid.UUID]uint64),
	}
}

// Relay fans a snapshot out to the opponent and the coordinator. Stale
// snapshots are dropped silently; replaying an older snapshot is harmless
// because the coordinator only ever acts on the first finish.
func (r *Replicator) Relay(snap models.ProgressSnapshot) {
	r.mu.Lock()
	if snap.SequenceNumber <= r.lastSeq[snap.IdentityID] {
		r.mu.Unlock()
		log.Debug().
			Str("contest_id", snap.ContestID.String()).
			Str("identity_id", snap.IdentityID.String()).
			Uint64("seq", snap.SequenceNumber).
			Msg("dropping stale snapshot")
		return
	}
	r.lastSeq[snap.IdentityID] = snap.SequenceNumber
	r.mu.Unlock()

	ev, err := events.New(snap.ContestID, events.TypeProgressUpdated, events.ProgressUpdatedPayload{
		ContestID:       snap.ContestID.String(),
		IdentityID:      snap.IdentityID.String(),
		WPM:             snap.WPM,
		Accuracy:        snap.Accuracy,
		CompletionRatio: snap.CompletionRatio,
		Finished:        snap.Finished,
		SampledAt:       snap.SampledAt,
		SequenceNumber:  snap.SequenceNumber,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build progress event")
	} else if err := r.publisher.Publish(context.Background(), ev); err != nil {
		log.Error().Err(err).
			Str("contest_id", snap.ContestID.String()).
			Msg("failed to publish progress event")
	}

	r.sink(snap)
}
