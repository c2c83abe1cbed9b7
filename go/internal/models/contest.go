package models

import (
	"time"

	"github.com/google/uuid"
)

// ContestStatus defines the lifecycle status of a contest.
type ContestStatus string

const (
	ContestStatusPending       ContestStatus = "PENDING"
	ContestStatusAccepted      ContestStatus = "ACCEPTED"
	ContestStatusAwaitingReady ContestStatus = "AWAITING_READY"
	ContestStatusCountdown     ContestStatus = "COUNTDOWN"
	ContestStatusActive        ContestStatus = "ACTIVE"
	ContestStatusFinished      ContestStatus = "FINISHED"
	ContestStatusAbandoned     ContestStatus = "ABANDONED"
)

// statusRank orders statuses along the one-way lifecycle. FINISHED and
// ABANDONED share the terminal rank.
var statusRank = map[ContestStatus]int{
	ContestStatusPending:       0,
	ContestStatusAccepted:      1,
	ContestStatusAwaitingReady: 2,
	ContestStatusCountdown:     3,
	ContestStatusActive:        4,
	ContestStatusFinished:      5,
	ContestStatusAbandoned:     5,
}

// Terminal reports whether no further transitions are allowed from s.
func (s ContestStatus) Terminal() bool {
	return s == ContestStatusFinished || s == ContestStatusAbandoned
}

// CanTransitionTo reports whether moving from s to next is a forward step.
// Backward and repeated transitions are rejected; ABANDONED is reachable
// from any non-terminal status.
func (s ContestStatus) CanTransitionTo(next ContestStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == ContestStatusAbandoned {
		return true
	}
	return statusRank[next] == statusRank[s]+1
}

// ContestSettings holds tuning for a single contest.
type ContestSettings struct {
	CountdownTicks   int           `json:"countdown_ticks"`
	TickInterval     time.Duration `json:"tick_interval"`
	InviteTimeout    time.Duration `json:"invite_timeout"`
	ForfeitGrace     time.Duration `json:"forfeit_grace"`
	HeartbeatTimeout time.Duration `json:"heartbeat_timeout"`
}

// Contest represents one duel between exactly two participants over a shared
// passage of text. It is the unit of coordination and persistence.
type Contest struct {
	ID           uuid.UUID       `json:"id"`
	PassageText  string          `json:"passage_text"`
	ParticipantA uuid.UUID       `json:"participant_a"`
	ParticipantB uuid.UUID       `json:"participant_b"`
	Status       ContestStatus   `json:"status"`
	WagerAmount  int             `json:"wager_amount"`
	Settings     ContestSettings `json:"settings"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	WinnerID     *uuid.UUID      `json:"winner_id,omitempty"`
	WonByForfeit bool            `json:"won_by_forfeit"`
}

// HasParticipant reports whether id is one of the two contest slots.
func (c *Contest) HasParticipant(id uuid.UUID) bool {
	return c.ParticipantA == id || c.ParticipantB == id
}

// Opponent returns the other participant's id.
func (c *Contest) Opponent(id uuid.UUID) uuid.UUID {
	if c.ParticipantA == id {
		return c.ParticipantB
	}
	return c.ParticipantA
}
