package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/keyduel/keyduel/go/internal/models"
	"github.com/keyduel/keyduel/go/internal/scoring"
)

// State defines the lifecycle of a typing session.
type State string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StateComplete State = "COMPLETE"
)

// CompleteReason records why a session left the running state.
type CompleteReason string

const (
	ReasonFinished  CompleteReason = "FINISHED"
	ReasonOpponent  CompleteReason = "OPPONENT_WON"
	ReasonTimeout   CompleteReason = "TIMEOUT"
	ReasonAbandoned CompleteReason = "ABANDONED"
)

// Emitter receives every snapshot produced by a successful ApplyInput.
type Emitter func(models.ProgressSnapshot)

// Session is the per-participant typing state machine. It owns the passage
// buffer and the participant's own input stream, and scores each accepted
// prefix into a sequence-numbered ProgressSnapshot.
//
// In duel mode the session transitions to running on the coordinator's start
// signal, never on the first keystroke, so elapsed time is measured against
// the server clock rather than whatever the client reports.
type Session struct {
	contestID  uuid.UUID
	identityID uuid.UUID
	passage    string
	clock      clockwork.Clock
	emit       Emitter

	mu        sync.Mutex
	state     State
	startedAt time.Time
	seq       uint64
	latest    models.ProgressSnapshot
	reason    CompleteReason
}

// New creates an idle duel session. emit may be nil for solo play.
func New(contestID, identityID uuid.UUID, passage string, clock clockwork.Clock, emit Emitter) *Session {
	return &Session{
		contestID:  contestID,
		identityID: identityID,
		passage:    passage,
		clock:      clock,
		state:      StateIdle,
		emit:       emit,
	}
}

// Start transitions idle -> running. Duplicate starts are rejected so a
// replayed start signal cannot reset the elapsed-time base.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("start from %s: %w", s.state, ErrInvalidTransition)
	}
	s.state = StateRunning
	s.startedAt = s.clock.Now()
	return nil
}

// ApplyInput scores the typed prefix and emits exactly one snapshot. Input is
// rejected without a snapshot when the session is not running or the prefix
// is longer than the passage.
func (s *Session) ApplyInput(typedPrefix string) (models.ProgressSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return models.ProgressSnapshot{}, fmt.Errorf("input while %s: %w", s.state, ErrInvalidTransition)
	}
	if len(typedPrefix) > len(s.passage) {
		return models.ProgressSnapshot{}, fmt.Errorf("prefix %d exceeds passage %d: %w",
			len(typedPrefix), len(s.passage), ErrInputTooLong)
	}

	now := s.clock.Now()
	result := scoring.Score(s.passage, typedPrefix, now.Sub(s.startedAt))

	s.seq++
	snap := models.ProgressSnapshot{
		ContestID:       s.contestID,
		IdentityID:      s.identityID,
		WPM:             result.WPM,
		Accuracy:        result.Accuracy,
		CompletionRatio: result.CompletionRatio,
		CorrectChars:    result.CorrectChars,
		IncorrectChars:  result.IncorrectChars,
		Finished:        result.Finished(),
		SampledAt:       now,
		SequenceNumber:  s.seq,
	}
	s.latest = snap

	if snap.Finished {
		s.state = StateComplete
		s.reason = ReasonFinished
	}

	if s.emit != nil {
		s.emit(snap)
	}
	return snap, nil
}

// ForceComplete ends the session without a winning claim, used when the
// contest ends externally (opponent won, timeout, abandonment). Idempotent.
func (s *Session) ForceComplete(reason CompleteReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateComplete {
		return
	}
	s.state = StateComplete
	s.reason = reason
	log.Debug().
		Str("contest_id", s.contestID.String()).
		Str("identity_id", s.identityID.String()).
		Str("reason", string(reason)).
		Msg("session force-completed")
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latest returns the most recently emitted snapshot, zero-valued before the
// first accepted input.
func (s *Session) Latest() models.ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// CompleteReason returns why the session completed, empty while not complete.
func (s *Session) CompleteReason() CompleteReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// IdentityID returns the owning participant's id.
func (s *Session) IdentityID() uuid.UUID {
	return s.identityID
}
