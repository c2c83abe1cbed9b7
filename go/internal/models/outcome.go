package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchOutcome is the durable record of a resolved contest, consumed by the
// match store for history and leaderboards.
type MatchOutcome struct {
	ContestID    uuid.UUID        `json:"contest_id"`
	ParticipantA uuid.UUID        `json:"participant_a"`
	ParticipantB uuid.UUID        `json:"participant_b"`
	Status       ContestStatus    `json:"status"`
	WinnerID     *uuid.UUID       `json:"winner_id,omitempty"`
	WonByForfeit bool             `json:"won_by_forfeit"`
	WagerAmount  int              `json:"wager_amount"`
	ResultA      ProgressSnapshot `json:"result_a"`
	ResultB      ProgressSnapshot `json:"result_b"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
}
