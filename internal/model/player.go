package model

import "time"

// Player is one user's membership in a session
type Player struct {
	ID          string    `json:"playerId" bson:"_id"`
	SessionID   string    `json:"sessionId" bson:"sessionId"`
	UserID      string    `json:"userId" bson:"userId"`
	CharacterID string    `json:"characterId,omitempty" bson:"characterId,omitempty"`
	CurrentHP   int       `json:"currentHp" bson:"currentHp"`
	MaxHP       int       `json:"maxHp" bson:"maxHp"`
	JoinedAt    time.Time `json:"joinedAt" bson:"joinedAt"`
}

// Alive reports whether the player still has health left
func (p *Player) Alive() bool {
	return p.CurrentHP > 0
}

// PlayerHealthState is one entry of a save-game batch
type PlayerHealthState struct {
	UserID    string `json:"userId"`
	CurrentHP int    `json:"currentHp"`
}

// SaveGameRequest is the body of POST /v1/games/save
type SaveGameRequest struct {
	SessionID    string              `json:"sessionId"`
	PlayerStates []PlayerHealthState `json:"playerStates"`
	Timestamp    *time.Time          `json:"timestamp,omitempty"`
}

// GameDetails is a saved session together with its players
type GameDetails struct {
	Session *Session  `json:"sessionDetails"`
	Players []*Player `json:"players"`
}
