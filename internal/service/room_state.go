package service

import (
	"context"
	"partyquest/internal/model"
)

// RoomStateStore holds the ephemeral readiness state of each room. Both
// cache backends implement it.
type RoomStateStore interface {
	// Ensure creates the state if absent, otherwise refreshes only the
	// expected player count. Selections are never cleared by a refresh.
	Ensure(ctx context.Context, sessionID string, expected int) (*model.RoomState, error)
	// Peek returns the current state, or model.ErrNoRoomState.
	Peek(ctx context.Context, sessionID string) (*model.RoomState, error)
	// RecordSelection inserts or overwrites one user's choice. complete is
	// true for exactly one call per RoomState.
	RecordSelection(ctx context.Context, sessionID, userID, characterID string) (selections map[string]string, complete bool, err error)
	// RemoveSelection drops a user's choice and refreshes the expected count.
	// It is a no-op returning nil selections when no state exists.
	RemoveSelection(ctx context.Context, sessionID, userID string, expected int) (selections map[string]string, complete bool, err error)
	Discard(ctx context.Context, sessionID string) error
}
