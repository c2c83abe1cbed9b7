package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for contest connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleContestConnection upgrades a request to a contest-scoped WebSocket.
// Identity comes from a query parameter; in production it would come from a
// session token.
func (h *WebSocketHandler) HandleContestConnection(w http.ResponseWriter, r *http.Request) {
	contestIDStr := r.URL.Query().Get("contest_id")
	if contestIDStr == "" {
		http.Error(w, "contest_id is required", http.StatusBadRequest)
		return
	}
	contestID, err := uuid.Parse(contestIDStr)
	if err != nil {
		http.Error(w, "invalid contest_id format", http.StatusBadRequest)
		return
	}

	identityIDStr := r.URL.Query().Get("identity_id")
	if identityIDStr == "" {
		http.Error(w, "identity_id is required", http.StatusBadRequest)
		return
	}
	identityID, err := uuid.Parse(identityIDStr)
	if err != nil {
		http.Error(w, "invalid identity_id format", http.StatusBadRequest)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, identityID, contestID); err != nil {
		log.Error().
			Err(err).
			Str("contest_id", contestID.String()).
			Str("identity_id", identityID.String()).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleConnectionStats returns counts of live connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, contests := h.connectionManager.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"total_connections": total,
		"active_contests":   len(contests),
		"per_contest":       contests,
	})
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/contest", h.HandleContestConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
