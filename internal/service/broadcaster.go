package service

import (
	"partyquest/internal/model"
	"time"
)

// Broadcaster is implemented by the websocket hub (avoids import cycle)
type Broadcaster interface {
	BroadcastToRoom(sessionID, event string, payload interface{})
	SendToConnection(connID, event string, payload interface{})
}

type Audience int

const (
	AudienceRoom Audience = iota
	AudienceConnection
)

// Delivery is one outbound event produced by a service operation. Operations
// return their deliveries in emission order instead of sending them directly.
type Delivery struct {
	Audience  Audience
	SessionID string
	ConnID    string
	Event     string
	Payload   interface{}
	Delay     time.Duration
}

// Caller identifies the connection an event arrived on. UserID is the token
// subject and is empty when auth is disabled. SessionID is the room the
// connection is bound to, empty before a successful join.
type Caller struct {
	ConnID    string
	UserID    string
	SessionID string
}

func ToRoom(sessionID, event string, payload interface{}) Delivery {
	return Delivery{Audience: AudienceRoom, SessionID: sessionID, Event: event, Payload: payload}
}

func ToConnection(connID, event string, payload interface{}) Delivery {
	return Delivery{Audience: AudienceConnection, ConnID: connID, Event: event, Payload: payload}
}

// Notify builds a show_notification for a single connection.
func Notify(connID string, kind model.NotificationKind, message string) Delivery {
	return ToConnection(connID, model.EventShowNotification, model.Notification{Message: message, Kind: kind})
}

// Dispatch sends deliveries in order. Delayed deliveries are scheduled on a
// timer that is never cancelled.
func Dispatch(b Broadcaster, deliveries []Delivery) {
	for _, d := range deliveries {
		if d.Delay > 0 {
			d := d
			time.AfterFunc(d.Delay, func() { send(b, d) })
			continue
		}
		send(b, d)
	}
}

func send(b Broadcaster, d Delivery) {
	switch d.Audience {
	case AudienceRoom:
		b.BroadcastToRoom(d.SessionID, d.Event, d.Payload)
	case AudienceConnection:
		b.SendToConnection(d.ConnID, d.Event, d.Payload)
	}
}
