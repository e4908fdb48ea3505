package handler

import (
	"encoding/json"
	"net/http"
	"partyquest/internal/service"
	"partyquest/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// SessionHandler handles explicit room exits
type SessionHandler struct {
	roomSvc     *service.RoomService
	broadcaster service.Broadcaster
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(roomSvc *service.RoomService, broadcaster service.Broadcaster) *SessionHandler {
	return &SessionHandler{
		roomSvc:     roomSvc,
		broadcaster: broadcaster,
	}
}

type leaveRequest struct {
	UserID string `json:"userId"`
}

// Leave handles POST /v1/sessions/{sessionId}/leave. The user is the token
// subject, or the body's userId when auth is disabled.
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		var req leaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		userID = req.UserID
	}

	deliveries, err := h.roomSvc.Leave(r.Context(), sessionID, userID)
	// Leave can fail after some deliveries were produced (closing the session)
	service.Dispatch(h.broadcaster, deliveries)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
