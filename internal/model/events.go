package model

import (
	"encoding/json"
	"strings"
)

// Client -> server events
const (
	EventJoinRoom           = "join_room"
	EventCharacterSelected  = "character_selected"
	EventQRCodeScanned      = "qr_code_scanned"
	EventUpdateEnemyHealth  = "update_enemy_hp"
	EventUpdatePlayerHealth = "update_player_hp"
)

// Server -> client events
const (
	EventSelectionUpdate          = "selection_update"
	EventCharacterSelectionUpdate = "character_selection_update"
	EventAllPlayersReady          = "start_game"
	EventNavigateToPage           = "navigate_to_page"
	EventShowNotification         = "show_notification"
	EventEnemyHealthChanged       = "enemy_hp_update"
	EventCombatVictory            = "combat_victory"
	EventPlayerHealthChanged      = "player_hp_update"
	EventPlayerLeft               = "player_left"
)

type NotificationKind string

const (
	NotifyInfo    NotificationKind = "info"
	NotifyWarning NotificationKind = "warning"
	NotifyError   NotificationKind = "error"
)

// JoinRoomRequest accepts either a bare JSON string or {"sessionId": "..."}
type JoinRoomRequest struct {
	SessionID string `json:"sessionId"`
}

func (r *JoinRoomRequest) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		return json.Unmarshal(data, &r.SessionID)
	}
	type plain JoinRoomRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = JoinRoomRequest(p)
	return nil
}

type CharacterSelectedRequest struct {
	SessionID   string `json:"sessionId"`
	CharacterID string `json:"characterId"`
	UserID      string `json:"userId"`
}

type QRCodeScannedRequest struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

type UpdateEnemyHealthRequest struct {
	EncounterID string `json:"encounterId"`
	NewHP       int    `json:"newHp"`
}

type UpdatePlayerHealthRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	NewHP     int    `json:"newHp"`
}

// CharacterSelectionUpdate and PlayerHealthChanged use the snake_case keys
// of the player rows the client already renders.
type CharacterSelectionUpdate struct {
	UserID      string `json:"user_id"`
	CharacterID string `json:"character_id"`
}

type NavigateToPage struct {
	Path      string `json:"path"`
	ScannedBy string `json:"scannedBy"`
}

type Notification struct {
	Message string           `json:"message"`
	Kind    NotificationKind `json:"kind"`
}

type EnemyHealthChanged struct {
	EncounterID string `json:"encounterId"`
	NewHP       int    `json:"newHp"`
	MaxHP       int    `json:"maxHp"`
	Alive       bool   `json:"alive"`
}

type CombatVictory struct {
	EncounterID string `json:"encounterId"`
}

type PlayerHealthChanged struct {
	UserID    string `json:"user_id"`
	CurrentHP int    `json:"current_hp"`
	MaxHP     int    `json:"max_hp"`
	Alive     bool   `json:"alive"`
}

type PlayerLeft struct {
	UserID string `json:"userId"`
}
