package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies a contest event.
type Type string

const (
	TypeContestInvited   Type = "ContestInvited"
	TypeContestAccepted  Type = "ContestAccepted"
	TypeCountdownTick    Type = "CountdownTick"
	TypeContestStarted   Type = "ContestStarted"
	TypeProgressUpdated  Type = "ProgressUpdated"
	TypeContestFinished  Type = "ContestFinished"
	TypeContestAbandoned Type = "ContestAbandoned"
)

// Event is the envelope published to the contest event stream and relayed to
// WebSocket clients.
type Event struct {
	ID        string          `json:"id"`
	ContestID string          `json:"contest_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New builds an event envelope, marshalling the payload.
func New(contestID uuid.UUID, typ Type, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New().String(),
		ContestID: contestID.String(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}
