package cache

import (
	"context"
	"partyquest/internal/model"
	"sync"
	"time"
)

// MemoryRoomStateStore keeps RoomState in process memory. Entries idle longer
// than ttl are removed by Run.
type MemoryRoomStateStore struct {
	mu    sync.Mutex
	rooms map[string]*model.RoomState
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryRoomStateStore(ttl time.Duration) *MemoryRoomStateStore {
	return &MemoryRoomStateStore{
		rooms: make(map[string]*model.RoomState),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryRoomStateStore) Ensure(ctx context.Context, sessionID string, expected int) (*model.RoomState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[sessionID]
	if !ok {
		st = &model.RoomState{
			SessionID:  sessionID,
			Selections: make(map[string]string),
		}
		s.rooms[sessionID] = st
	}
	// selections survive a refresh
	st.Expected = expected
	st.UpdatedAt = s.now()
	return snapshot(st), nil
}

func (s *MemoryRoomStateStore) RecordSelection(ctx context.Context, sessionID, userID, characterID string) (map[string]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[sessionID]
	if !ok {
		return nil, false, model.ErrNoRoomState
	}
	if st.Completed {
		return nil, false, model.ErrReadinessClosed
	}

	st.Selections[userID] = characterID
	st.UpdatedAt = s.now()
	complete := model.IsComplete(len(st.Selections), st.Expected)
	if complete {
		st.Completed = true
	}
	return model.CopySelections(st.Selections), complete, nil
}

// Peek returns a copy of the state without touching it.
func (s *MemoryRoomStateStore) Peek(ctx context.Context, sessionID string) (*model.RoomState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[sessionID]
	if !ok {
		return nil, model.ErrNoRoomState
	}
	return snapshot(st), nil
}

func (s *MemoryRoomStateStore) RemoveSelection(ctx context.Context, sessionID, userID string, expected int) (map[string]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[sessionID]
	if !ok {
		return nil, false, nil
	}
	if st.Completed {
		return model.CopySelections(st.Selections), false, nil
	}

	delete(st.Selections, userID)
	st.Expected = expected
	st.UpdatedAt = s.now()
	complete := model.IsComplete(len(st.Selections), st.Expected)
	if complete {
		st.Completed = true
	}
	return model.CopySelections(st.Selections), complete, nil
}

func (s *MemoryRoomStateStore) Discard(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.rooms, sessionID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live RoomStates.
func (s *MemoryRoomStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// Sweep discards every RoomState untouched for longer than the TTL and
// returns how many were removed.
func (s *MemoryRoomStateStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, st := range s.rooms {
		if st.UpdatedAt.Before(cutoff) {
			delete(s.rooms, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is cancelled.
func (s *MemoryRoomStateStore) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func snapshot(st *model.RoomState) *model.RoomState {
	cp := *st
	cp.Selections = model.CopySelections(st.Selections)
	return &cp
}
