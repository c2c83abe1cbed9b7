package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/keyduel/keyduel/go/internal/models"
)

// Solo wraps a Session for single-player practice runs. Unlike duel mode the
// run starts on the first keystroke and is bounded by a fixed time limit.
type Solo struct {
	session *Session
	clock   clockwork.Clock
	limit   time.Duration
}

// DefaultSoloDuration bounds a practice run.
const DefaultSoloDuration = 30 * time.Second

// NewSolo creates a practice session over the given passage.
func NewSolo(identityID uuid.UUID, passage string, limit time.Duration, clock clockwork.Clock) *Solo {
	if limit <= 0 {
		limit = DefaultSoloDuration
	}
	return &Solo{
		session: New(uuid.Nil, identityID, passage, clock, nil),
		clock:   clock,
		limit:   limit,
	}
}

// ApplyInput feeds a typed prefix into the run, starting the clock on the
// first keystroke. Once the time limit has elapsed the run completes and
// further input is rejected.
func (s *Solo) ApplyInput(typedPrefix string) (models.ProgressSnapshot, error) {
	if s.session.State() == StateIdle {
		if err := s.session.Start(); err != nil {
			return models.ProgressSnapshot{}, err
		}
	}

	if s.TimeRemaining() <= 0 {
		s.session.ForceComplete(ReasonTimeout)
	}
	return s.session.ApplyInput(typedPrefix)
}

// TimeRemaining returns how much of the limit is left, zero once expired or
// the full limit before the first keystroke.
func (s *Solo) TimeRemaining() time.Duration {
	s.session.mu.Lock()
	defer s.session.mu.Unlock()

	if s.session.state == StateIdle {
		return s.limit
	}
	remaining := s.limit - s.clock.Now().Sub(s.session.startedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// State returns the underlying session state.
func (s *Solo) State() State {
	return s.session.State()
}

// Latest returns the most recent snapshot of the run.
func (s *Solo) Latest() models.ProgressSnapshot {
	return s.session.Latest()
}
