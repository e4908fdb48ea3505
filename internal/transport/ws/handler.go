package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"partyquest/internal/model"
	"partyquest/internal/service"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Services groups what the socket handler routes inbound events to
type Services struct {
	Auth       *service.AuthService
	Rooms      *service.RoomService
	Readiness  *service.ReadinessService
	Encounters *service.EncounterService
	Health     *service.HealthService
}

// Handler upgrades connections and routes their events to services
type Handler struct {
	hub          *Hub
	svc          Services
	logger       *zap.SugaredLogger
	storeTimeout time.Duration
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, svc Services, logger *zap.SugaredLogger, storeTimeout time.Duration) *Handler {
	return &Handler{
		hub:          hub,
		svc:          svc,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

// ServeWS handles GET /v1/ws. With auth enabled the token query parameter
// is required and its subject becomes the connection's user id.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	var userID string
	if h.svc.Auth.Enabled() {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		claims, err := h.svc.Auth.ValidatePlayerToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID = claims.UserID()
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	conn := &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, sendBufferSize),
		Hub:    h.hub,
	}
	h.hub.Register(conn)
	h.logger.Infow("client connected", "connId", conn.ID, "userId", userID)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

// readPump handles one connection's events in arrival order.
func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
		h.logger.Infow("client disconnected", "connId", conn.ID)
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warnw("websocket read error", "connId", conn.ID, "error", err)
			}
			break
		}
		h.handleMessage(conn, data)
	}
}

func (h *Handler) handleMessage(conn *Connection, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		h.drop(conn, "", fmt.Errorf("%w: malformed envelope", service.ErrProtocolViolation))
		return
	}
	h.hub.metrics.IncInbound()

	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorw("event handler panicked", "connId", conn.ID, "event", msg.Type, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.storeTimeout)
	defer cancel()
	caller := service.Caller{ConnID: conn.ID, UserID: conn.UserID, SessionID: h.hub.RoomOf(conn)}

	var out []service.Delivery
	var err error
	switch msg.Type {
	case model.EventJoinRoom:
		var req model.JoinRoomRequest
		if err = decode(msg.Payload, &req); err == nil {
			out, err = h.svc.Rooms.Join(ctx, caller, req.SessionID)
			if err == nil {
				h.hub.Join(conn, req.SessionID)
				h.hub.metrics.IncJoins()
				h.logger.Infow("joined room", "connId", conn.ID, "sessionId", req.SessionID)
			} else {
				h.hub.metrics.IncRejectedJoins()
			}
		}

	case model.EventCharacterSelected:
		var req model.CharacterSelectedRequest
		if err = decode(msg.Payload, &req); err == nil {
			out, err = h.svc.Readiness.SelectCharacter(ctx, caller, req)
		}

	case model.EventQRCodeScanned:
		var req model.QRCodeScannedRequest
		if err = decode(msg.Payload, &req); err == nil {
			out, err = h.svc.Encounters.Scan(ctx, caller, req)
		}

	case model.EventUpdateEnemyHealth:
		var req model.UpdateEnemyHealthRequest
		if err = decode(msg.Payload, &req); err == nil {
			out, err = h.svc.Health.UpdateEnemyHealth(ctx, caller, req)
		}

	case model.EventUpdatePlayerHealth:
		var req model.UpdatePlayerHealthRequest
		if err = decode(msg.Payload, &req); err == nil {
			out, err = h.svc.Health.UpdatePlayerHealth(ctx, caller, req)
		}

	default:
		err = fmt.Errorf("%w: unknown event %q", service.ErrProtocolViolation, msg.Type)
	}

	if service.IsProtocolViolation(err) {
		h.drop(conn, msg.Type, err)
		return
	}
	if err != nil {
		h.logger.Infow("event rejected", "connId", conn.ID, "event", msg.Type, "error", err)
	}
	service.Dispatch(h.hub, out)
}

func (h *Handler) drop(conn *Connection, event string, err error) {
	h.hub.metrics.IncViolations()
	h.logger.Warnw("dropped event", "connId", conn.ID, "event", event, "error", err)
}

func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: %w", service.ErrProtocolViolation, service.ErrInvalidPayload)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w: %v", service.ErrProtocolViolation, service.ErrInvalidPayload, err)
	}
	return nil
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
