package gateway

import (
	"encoding/json"
)

// ClientMessageType identifies an inbound message from a client.
type ClientMessageType string

const (
	MsgDuelInvite        ClientMessageType = "duel.invite"
	MsgDuelRespond       ClientMessageType = "duel.respond"
	MsgPresenceJoin      ClientMessageType = "presence.join"
	MsgPresenceReady     ClientMessageType = "presence.ready"
	MsgPresenceHeartbeat ClientMessageType = "presence.heartbeat"
	MsgProgressUpdate    ClientMessageType = "progress.update"
)

// ClientMessage is the envelope for every inbound WebSocket frame.
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
	Data json.RawMessage   `json:"data"`
}

// DuelInviteRequest creates a contest in pending state.
type DuelInviteRequest struct {
	FromID      string `json:"from_id"`
	ToID        string `json:"to_id"`
	WagerAmount int    `json:"wager_amount"`
}

// DuelRespondRequest accepts or declines a pending invite.
type DuelRespondRequest struct {
	ContestID string `json:"contest_id"`
	Accept    bool   `json:"accept"`
}

// ProgressUpdateRequest carries the participant's full typed prefix. The
// elapsed field is what the client believes; the server session's own clock
// is authoritative for scoring.
type ProgressUpdateRequest struct {
	ContestID      string  `json:"contest_id"`
	TypedPrefix    string  `json:"typed_prefix"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// AckMessage is sent back to the submitting client for request-style frames.
type AckMessage struct {
	Type  ClientMessageType `json:"type"`
	OK    bool              `json:"ok"`
	Error string            `json:"error,omitempty"`
	Data  json.RawMessage   `json:"data,omitempty"`
}
