package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keyduel/keyduel/go/internal/contest"
	"github.com/keyduel/keyduel/go/internal/models"
)

// Core is the contest application surface the gateway drives. Implemented
// by contest.App.
type Core interface {
	InviteDuel(ctx context.Context, fromID, toID uuid.UUID, wager int) (*models.Contest, error)
	RespondDuel(ctx context.Context, contestID, identityID uuid.UUID, accept bool) error
	Join(contestID, identityID uuid.UUID) error
	SetReady(contestID, identityID uuid.UUID) error
	Heartbeat(contestID, identityID uuid.UUID) error
	UpdateProgress(contestID, identityID uuid.UUID, typedPrefix string) (models.ProgressSnapshot, error)
	ContestState(contestID uuid.UUID) (contest.StateView, error)
	StartSolo(identityID uuid.UUID) string
	SoloProgress(identityID uuid.UUID, typedPrefix string) (models.ProgressSnapshot, time.Duration, error)
}

// MessageRouter dispatches inbound WebSocket frames to the contest core.
type MessageRouter struct {
	core Core
}

// NewMessageRouter creates a router over the contest core.
func NewMessageRouter(core Core) *MessageRouter {
	return &MessageRouter{core: core}
}

// Route parses and dispatches one frame. The returned ack, if any, goes
// back to the sending connection only.
func (mr *MessageRouter) Route(conn *Connection, raw []byte) *AckMessage {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Err(err).Str("connection_id", conn.ID).Msg("malformed client message")
		return &AckMessage{Type: msg.Type, OK: false, Error: "malformed message"}
	}

	switch msg.Type {
	case MsgDuelInvite:
		return mr.handleInvite(conn, msg)
	case MsgDuelRespond:
		return mr.handleRespond(conn, msg)
	case MsgPresenceJoin:
		return ack(msg.Type, mr.core.Join(conn.ContestID, conn.IdentityID))
	case MsgPresenceReady:
		return ack(msg.Type, mr.core.SetReady(conn.ContestID, conn.IdentityID))
	case MsgPresenceHeartbeat:
		// Heartbeats are fire-and-forget; a failed one is not worth a
		// round trip back to the client.
		if err := mr.core.Heartbeat(conn.ContestID, conn.IdentityID); err != nil {
			log.Debug().Err(err).Str("identity_id", conn.IdentityID.String()).Msg("heartbeat rejected")
		}
		return nil
	case MsgProgressUpdate:
		return mr.handleProgress(conn, msg)
	default:
		log.Warn().Str("type", string(msg.Type)).Str("connection_id", conn.ID).Msg("unknown message type")
		return &AckMessage{Type: msg.Type, OK: false, Error: "unknown message type"}
	}
}

func (mr *MessageRouter) handleInvite(conn *Connection, msg ClientMessage) *AckMessage {
	var req DuelInviteRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return &AckMessage{Type: msg.Type, OK: false, Error: "malformed invite"}
	}
	toID, err := uuid.Parse(req.ToID)
	if err != nil {
		return &AckMessage{Type: msg.Type, OK: false, Error: "invalid opponent id"}
	}

	created, err := mr.core.InviteDuel(context.Background(), conn.IdentityID, toID, req.WagerAmount)
	if err != nil {
		return &AckMessage{Type: msg.Type, OK: false, Error: err.Error()}
	}
	data, _ := json.Marshal(map[string]string{"contest_id": created.ID.String()})
	return &AckMessage{Type: msg.Type, OK: true, Data: data}
}

func (mr *MessageRouter) handleRespond(conn *Connection, msg ClientMessage) *AckMessage {
	var req DuelRespondRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return &AckMessage{Type: msg.Type, OK: false, Error: "malformed response"}
	}
	contestID, err := uuid.Parse(req.ContestID)
	if err != nil {
		return &AckMessage{Type: msg.Type, OK: false, Error: "invalid contest id"}
	}
	return ack(msg.Type, mr.core.RespondDuel(context.Background(), contestID, conn.IdentityID, req.Accept))
}

func (mr *MessageRouter) handleProgress(conn *Connection, msg ClientMessage) *AckMessage {
	var req ProgressUpdateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return &AckMessage{Type: msg.Type, OK: false, Error: "malformed progress update"}
	}

	if _, err := mr.core.UpdateProgress(conn.ContestID, conn.IdentityID, req.TypedPrefix); err != nil {
		// Progress rejections are frequent around race resolution; keep
		// them quiet and let the client resync from broadcast state.
		log.Debug().
			Err(err).
			Str("contest_id", conn.ContestID.String()).
			Str("identity_id", conn.IdentityID.String()).
			Msg("progress update rejected")
		return &AckMessage{Type: msg.Type, OK: false, Error: err.Error()}
	}
	return nil
}

func ack(typ ClientMessageType, err error) *AckMessage {
	if err != nil {
		return &AckMessage{Type: typ, OK: false, Error: err.Error()}
	}
	return &AckMessage{Type: typ, OK: true}
}
