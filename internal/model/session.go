package model

import "time"

type SessionStatus string

const (
	SessionWaiting SessionStatus = "Waiting"
	SessionInGame  SessionStatus = "In game"
	SessionClosed  SessionStatus = "Closed"
)

// Session is a room: a shareable lobby with a durable id and a short join code.
type Session struct {
	ID           string        `json:"sessionId" bson:"_id"`
	Code         string        `json:"sessionCode" bson:"code"`
	Status       SessionStatus `json:"sessionStatus" bson:"status"`
	HostUserID   string        `json:"hostUserId" bson:"hostUserId"`
	CurrentStage int           `json:"currentStage" bson:"currentStage"`
	IsSaved      bool          `json:"isGameSaved" bson:"isSaved"`
	CreatedAt    time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// SessionSummary is a saved game listed for one user
type SessionSummary struct {
	SessionID    string    `json:"sessionId"`
	Code         string    `json:"sessionCode"`
	CurrentStage int       `json:"currentStage"`
	UpdatedAt    time.Time `json:"updatedAt"`
	PlayerCount  int       `json:"playerCount"`
}
