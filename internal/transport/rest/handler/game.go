package handler

import (
	"encoding/json"
	"net/http"
	"partyquest/internal/model"
	"partyquest/internal/service"
	"partyquest/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// GameHandler handles save/load endpoints
type GameHandler struct {
	gameSvc     *service.GameService
	broadcaster service.Broadcaster
}

// NewGameHandler creates a new game handler
func NewGameHandler(gameSvc *service.GameService, broadcaster service.Broadcaster) *GameHandler {
	return &GameHandler{
		gameSvc:     gameSvc,
		broadcaster: broadcaster,
	}
}

// Save handles POST /v1/games/save
func (h *GameHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req model.SaveGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	players, deliveries, err := h.gameSvc.Save(r.Context(), req)
	// rows written before a failure were persisted and are broadcast either way
	service.Dispatch(h.broadcaster, deliveries)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": req.SessionID,
		"players":   players,
	})
}

// ListByUser handles GET /v1/games/users/{userId}
func (h *GameHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if authed := middleware.GetUserID(r.Context()); authed != "" && authed != userID {
		writeError(w, http.StatusForbidden, "cannot list another user's games")
		return
	}

	games, err := h.gameSvc.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// Get handles GET /v1/games/{sessionId}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	details, err := h.gameSvc.Get(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if details == nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, details)
}
