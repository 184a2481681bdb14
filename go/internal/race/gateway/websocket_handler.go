package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Authenticator resolves an access token to an account id.
type Authenticator interface {
	VerifyAccessToken(ctx context.Context, token string) (string, error)
}

// WebSocketHandler handles WebSocket upgrade requests for race rooms
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	auth              Authenticator
}

// NewWebSocketHandler creates a new WebSocket handler. auth may be nil, in
// which case every connection is a guest.
func NewWebSocketHandler(cm *ConnectionManager, auth Authenticator) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		auth:              auth,
	}
}

// HandleRaceConnection upgrades a client connection. An access_token query
// parameter, when present, must verify.
func (h *WebSocketHandler) HandleRaceConnection(w http.ResponseWriter, r *http.Request) {
	var userID string
	if token := r.URL.Query().Get("access_token"); token != "" && h.auth != nil {
		id, err := h.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			log.Warn().Err(err).Msg("rejected race connection with invalid access token")
			http.Error(w, "invalid access token", http.StatusUnauthorized)
			return
		}
		userID = id
	}

	if err := h.connectionManager.UpgradeConnection(w, r, userID); err != nil {
		// the upgrader has already replied to the client
		log.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to upgrade WebSocket connection")
		return
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes registers WebSocket routes on the router
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/race", h.HandleRaceConnection).Methods(http.MethodGet)
	router.HandleFunc("/ws/stats", h.HandleConnectionStats).Methods(http.MethodGet)
}
