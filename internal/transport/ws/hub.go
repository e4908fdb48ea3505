package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const sendBufferSize = 256

// Message is the WebSocket envelope format
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub manages WebSocket connections and their room groups
type Hub struct {
	conns map[string]*Connection            // connId -> conn
	rooms map[string]map[string]*Connection // sessionId -> connId -> conn

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	join       chan *joinRequest
	broadcast  chan *outbound
	quit       chan struct{}
	closeOnce  sync.Once

	metrics *Metrics
	logger  *zap.SugaredLogger
}

// Connection represents a WebSocket connection. SessionID is owned by the
// hub and changes only inside its run loop.
type Connection struct {
	ID        string
	UserID    string // token subject, empty when auth is disabled
	SessionID string
	Send      chan []byte
	Hub       *Hub
}

type joinRequest struct {
	conn      *Connection
	sessionID string
	done      chan struct{}
}

// outbound is a marshalled message for a room or a single connection
type outbound struct {
	sessionID string
	connID    string
	data      []byte
}

// NewHub creates a new WebSocket hub and starts its run loop
func NewHub(logger *zap.SugaredLogger) *Hub {
	h := &Hub{
		conns:      make(map[string]*Connection),
		rooms:      make(map[string]map[string]*Connection),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		join:       make(chan *joinRequest),
		broadcast:  make(chan *outbound, 256),
		quit:       make(chan struct{}),
		metrics:    &Metrics{},
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *Hub) Metrics() *Metrics {
	return h.metrics
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn.ID] = conn
			h.mu.Unlock()
			h.metrics.IncConnections()
			h.logger.Debugw("connection registered", "connId", conn.ID, "userId", conn.UserID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.conns[conn.ID]; ok && existing == conn {
				delete(h.conns, conn.ID)
				h.leaveRoomLocked(conn)
				close(conn.Send)
				h.metrics.DecConnections()
				h.logger.Debugw("connection unregistered", "connId", conn.ID)
			}
			h.mu.Unlock()

		case req := <-h.join:
			h.mu.Lock()
			if _, ok := h.conns[req.conn.ID]; ok {
				if req.conn.SessionID != req.sessionID {
					h.leaveRoomLocked(req.conn)
				}
				if h.rooms[req.sessionID] == nil {
					h.rooms[req.sessionID] = make(map[string]*Connection)
				}
				h.rooms[req.sessionID][req.conn.ID] = req.conn
				req.conn.SessionID = req.sessionID
			}
			h.mu.Unlock()
			close(req.done)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if msg.sessionID != "" {
				for _, conn := range h.rooms[msg.sessionID] {
					h.trySend(conn, msg.data)
				}
			} else if conn, ok := h.conns[msg.connID]; ok {
				h.trySend(conn, msg.data)
			}
			h.mu.RUnlock()

		case <-h.quit:
			h.mu.Lock()
			for id, conn := range h.conns {
				delete(h.conns, id)
				close(conn.Send)
			}
			h.rooms = make(map[string]map[string]*Connection)
			h.mu.Unlock()
			return
		}
	}
}

// leaveRoomLocked drops conn from its current room group. Caller holds h.mu.
func (h *Hub) leaveRoomLocked(conn *Connection) {
	if conn.SessionID == "" {
		return
	}
	if members, ok := h.rooms[conn.SessionID]; ok {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(h.rooms, conn.SessionID)
		}
	}
	conn.SessionID = ""
}

func (h *Hub) trySend(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
	default:
		// Drop message if buffer full
		h.metrics.IncDroppedSends()
		h.logger.Warnw("send buffer full, message dropped", "connId", conn.ID)
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.quit:
	}
}

// Unregister removes a connection and its room membership
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.quit:
	}
}

// Join binds conn to a room group, moving it out of any previous room.
// It returns once the binding is visible to later broadcasts.
func (h *Hub) Join(conn *Connection, sessionID string) {
	req := &joinRequest{conn: conn, sessionID: sessionID, done: make(chan struct{})}
	select {
	case h.join <- req:
		<-req.done
	case <-h.quit:
	}
}

// BroadcastToRoom sends to every connection bound to the room (implements service.Broadcaster)
func (h *Hub) BroadcastToRoom(sessionID, event string, payload interface{}) {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Errorw("failed to encode broadcast", "event", event, "error", err)
		return
	}
	h.metrics.IncRoomBroadcasts()
	h.enqueue(&outbound{sessionID: sessionID, data: data})
}

// SendToConnection sends to a single connection (implements service.Broadcaster)
func (h *Hub) SendToConnection(connID, event string, payload interface{}) {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Errorw("failed to encode message", "event", event, "error", err)
		return
	}
	h.metrics.IncTargetedSends()
	h.enqueue(&outbound{connID: connID, data: data})
}

func (h *Hub) enqueue(msg *outbound) {
	select {
	case h.broadcast <- msg:
	case <-h.quit:
	}
}

// RoomSize returns the number of connections bound to a room
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// RoomOf returns the room conn is bound to, or "" before a join.
func (h *Hub) RoomOf(conn *Connection) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return conn.SessionID
}

// Close stops the run loop and closes every connection's send channel.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

func encode(event string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(&Message{Type: event, Payload: raw})
}
