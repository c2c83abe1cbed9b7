package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keyduel/keyduel/go/internal/contest"
)

// ContestStateResponse is the REST projection of a contest's live state.
type ContestStateResponse struct {
	ContestID          string                      `json:"contest_id"`
	Status             string                      `json:"status"`
	PassageText        string                      `json:"passage_text"`
	WagerAmount        int                         `json:"wager_amount"`
	CountdownRemaining int                         `json:"countdown_remaining,omitempty"`
	Progress           map[string]ProgressInfo     `json:"progress"`
	WinnerID           *string                     `json:"winner_id,omitempty"`
	WonByForfeit       bool                        `json:"won_by_forfeit"`
	StartedAt          *time.Time                  `json:"started_at,omitempty"`
	FinishedAt         *time.Time                  `json:"finished_at,omitempty"`
}

// ProgressInfo is one participant's latest replicated snapshot.
type ProgressInfo struct {
	WPM             int     `json:"wpm"`
	Accuracy        int     `json:"accuracy"`
	CompletionRatio float64 `json:"completion_ratio"`
	Finished        bool    `json:"finished"`
	SequenceNumber  uint64  `json:"sequence_number"`
}

// InviteDuelRequest is the REST body for creating a duel.
type InviteDuelRequest struct {
	FromID      string `json:"from_id"`
	ToID        string `json:"to_id"`
	WagerAmount int    `json:"wager_amount"`
}

// RespondDuelRequest is the REST body for answering an invite.
type RespondDuelRequest struct {
	IdentityID string `json:"identity_id"`
	Accept     bool   `json:"accept"`
}

// SoloStartRequest begins a solo practice run.
type SoloStartRequest struct {
	IdentityID string `json:"identity_id"`
}

// SoloProgressRequest applies input to a solo run.
type SoloProgressRequest struct {
	IdentityID  string `json:"identity_id"`
	TypedPrefix string `json:"typed_prefix"`
}

// StateHandler serves the REST surface: duel creation, invite responses,
// contest state and solo runs.
type StateHandler struct {
	core Core
}

// NewStateHandler creates a state handler over the contest core.
func NewStateHandler(core Core) *StateHandler {
	return &StateHandler{core: core}
}

// HandleInviteDuel handles POST /api/duels.
func (h *StateHandler) HandleInviteDuel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req InviteDuelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	fromID, err := uuid.Parse(req.FromID)
	if err != nil {
		http.Error(w, "Invalid from_id", http.StatusBadRequest)
		return
	}
	toID, err := uuid.Parse(req.ToID)
	if err != nil {
		http.Error(w, "Invalid to_id", http.StatusBadRequest)
		return
	}

	created, err := h.core.InviteDuel(r.Context(), fromID, toID, req.WagerAmount)
	if err != nil {
		log.Warn().Err(err).Str("from", req.FromID).Str("to", req.ToID).Msg("duel invite rejected")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"contest_id":   created.ID.String(),
		"passage_text": created.PassageText,
		"wager_amount": created.WagerAmount,
		"status":       string(created.Status),
	})
}

// HandleRespondDuel handles POST /api/duels/{id}/respond.
func (h *StateHandler) HandleRespondDuel(w http.ResponseWriter, r *http.Request, contestID uuid.UUID) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RespondDuelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	identityID, err := uuid.Parse(req.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity_id", http.StatusBadRequest)
		return
	}

	if err := h.core.RespondDuel(r.Context(), contestID, identityID, req.Accept); err != nil {
		log.Warn().Err(err).Str("contest_id", contestID.String()).Msg("duel response rejected")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetContestState handles GET /api/contests/{id}/state.
func (h *StateHandler) HandleGetContestState(w http.ResponseWriter, r *http.Request, contestID uuid.UUID) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	view, err := h.core.ContestState(contestID)
	if err != nil {
		if errors.Is(err, contest.ErrUnknownContest) {
			http.Error(w, "Contest not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("contest_id", contestID.String()).Msg("failed to get contest state")
		http.Error(w, "Failed to get contest state", http.StatusInternalServerError)
		return
	}

	resp := ContestStateResponse{
		ContestID:          view.ContestID.String(),
		Status:             string(view.Status),
		PassageText:        view.PassageText,
		WagerAmount:        view.WagerAmount,
		CountdownRemaining: view.CountdownRemaining,
		Progress:           make(map[string]ProgressInfo, len(view.Progress)),
		WonByForfeit:       view.WonByForfeit,
		StartedAt:          view.StartedAt,
		FinishedAt:         view.FinishedAt,
	}
	if view.WinnerID != nil {
		s := view.WinnerID.String()
		resp.WinnerID = &s
	}
	for id, snap := range view.Progress {
		resp.Progress[id.String()] = ProgressInfo{
			WPM:             snap.WPM,
			Accuracy:        snap.Accuracy,
			CompletionRatio: snap.CompletionRatio,
			Finished:        snap.Finished,
			SequenceNumber:  snap.SequenceNumber,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode contest state response")
	}
}

// HandleStartSolo handles POST /api/solo.
func (h *StateHandler) HandleStartSolo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SoloStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	identityID, err := uuid.Parse(req.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity_id", http.StatusBadRequest)
		return
	}

	passage := h.core.StartSolo(identityID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"passage_text": passage})
}

// HandleSoloProgress handles POST /api/solo/progress.
func (h *StateHandler) HandleSoloProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SoloProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	identityID, err := uuid.Parse(req.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity_id", http.StatusBadRequest)
		return
	}

	snap, remaining, err := h.core.SoloProgress(identityID, req.TypedPrefix)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"wpm":                   snap.WPM,
		"accuracy":              snap.Accuracy,
		"completion_ratio":      snap.CompletionRatio,
		"finished":              snap.Finished,
		"time_remaining_sec":    int(remaining.Seconds()),
		"sequence_number":       snap.SequenceNumber,
	})
}

// RegisterStateRoutes registers the REST routes.
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/duels", h.HandleInviteDuel)
	mux.HandleFunc("/api/solo", h.HandleStartSolo)
	mux.HandleFunc("/api/solo/progress", h.HandleSoloProgress)

	mux.HandleFunc("/api/duels/", func(w http.ResponseWriter, r *http.Request) {
		id, ok := extractContestID(r.URL.Path, "/api/duels/", "/respond")
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.HandleRespondDuel(w, r, id)
	})
	mux.HandleFunc("/api/contests/", func(w http.ResponseWriter, r *http.Request) {
		id, ok := extractContestID(r.URL.Path, "/api/contests/", "/state")
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.HandleGetContestState(w, r, id)
	})
}

// extractContestID pulls the contest id out of a path like
// {prefix}{id}{suffix}.
func extractContestID(path, prefix, suffix string) (uuid.UUID, bool) {
	if len(path) <= len(prefix)+len(suffix) {
		return uuid.Nil, false
	}
	if path[:len(prefix)] != prefix || path[len(path)-len(suffix):] != suffix {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(path[len(prefix) : len(path)-len(suffix)])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
