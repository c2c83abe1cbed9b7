package events

import (
	"time"
)

// Event payload types shared between the contest core and the gateway.

// ContestInvitedPayload is the payload for a ContestInvited event.
type ContestInvitedPayload struct {
	ContestID      string    `json:"contest_id"`
	FromID         string    `json:"from_id"`
	FromName       string    `json:"from_name"`
	ToID           string    `json:"to_id"`
	WagerAmount    int       `json:"wager_amount"`
	CreatedAt      time.Time `json:"created_at"`
	RespondBy      time.Time `json:"respond_by"`
	PassageLength  int       `json:"passage_length"`
}

// ContestAcceptedPayload is the payload for a ContestAccepted event.
type ContestAcceptedPayload struct {
	ContestID  string    `json:"contest_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// CountdownTickPayload carries the authoritative countdown value pushed to
// both clients; clients render it but never derive their own.
type CountdownTickPayload struct {
	ContestID          string    `json:"contest_id"`
	CountdownRemaining int       `json:"countdown_remaining"`
	TickedAt           time.Time `json:"ticked_at"`
}

// ContestStartedPayload is the payload for a ContestStarted event.
type ContestStartedPayload struct {
	ContestID   string    `json:"contest_id"`
	PassageText string    `json:"passage_text"`
	StartedAt   time.Time `json:"started_at"`
}

// ProgressUpdatedPayload relays one participant's snapshot to the other side.
type ProgressUpdatedPayload struct {
	ContestID       string    `json:"contest_id"`
	IdentityID      string    `json:"identity_id"`
	WPM             int       `json:"wpm"`
	Accuracy        int       `json:"accuracy"`
	CompletionRatio float64   `json:"completion_ratio"`
	Finished        bool      `json:"finished"`
	SampledAt       time.Time `json:"sampled_at"`
	SequenceNumber  uint64    `json:"sequence_number"`
}

// ParticipantResult is one side's final line in a contest result.
type ParticipantResult struct {
	IdentityID string  `json:"identity_id"`
	WPM        int     `json:"wpm"`
	Accuracy   int     `json:"accuracy"`
	Completion float64 `json:"completion_ratio"`
}

// ContestFinishedPayload is the terminal notification for a decided contest.
type ContestFinishedPayload struct {
	ContestID    string              `json:"contest_id"`
	WinnerID     string              `json:"winner_id"`
	WonByForfeit bool                `json:"won_by_forfeit"`
	Results      []ParticipantResult `json:"results"`
	FinishedAt   time.Time           `json:"finished_at"`
}

// ContestAbandonedPayload is the terminal notification for a contest torn
// down without a winner.
type ContestAbandonedPayload struct {
	ContestID   string    `json:"contest_id"`
	Reason      string    `json:"reason"`
	AbandonedAt time.Time `json:"abandoned_at"`
}
