package model

import (
	"errors"
	"time"
)

var (
	// ErrNoRoomState is returned when a readiness event targets a session without RoomState
	ErrNoRoomState = errors.New("no room state for session")
	// ErrReadinessClosed is returned once a RoomState has already reported completion
	ErrReadinessClosed = errors.New("readiness already completed for session")
)

// RoomState is the ephemeral readiness record of one session. It never holds health.
type RoomState struct {
	SessionID  string            `json:"sessionId"`
	Selections map[string]string `json:"selections"` // userId -> characterId
	Expected   int               `json:"expected"`
	Completed  bool              `json:"completed"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// IsComplete reports whether every expected player has a selection.
// An empty selection map is never complete, whatever the expected count.
func IsComplete(selections int, expected int) bool {
	return selections > 0 && selections == expected
}

// CopySelections returns a detached copy of a selection map
func CopySelections(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
