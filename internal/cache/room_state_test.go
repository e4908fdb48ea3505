package cache

import (
	"context"
	"errors"
	"fmt"
	"partyquest/internal/model"
	"sync"
	"testing"
)

type roomStateStore interface {
	Ensure(ctx context.Context, sessionID string, expected int) (*model.RoomState, error)
	RecordSelection(ctx context.Context, sessionID, userID, characterID string) (map[string]string, bool, error)
	RemoveSelection(ctx context.Context, sessionID, userID string, expected int) (map[string]string, bool, error)
	Peek(ctx context.Context, sessionID string) (*model.RoomState, error)
	Discard(ctx context.Context, sessionID string) error
}

// runRoomStateSuite checks behaviour both backends must share.
func runRoomStateSuite(t *testing.T, store roomStateStore) {
	ctx := context.Background()

	t.Run("SelectionWithoutStateIsRejected", func(t *testing.T) {
		_, _, err := store.RecordSelection(ctx, "missing", "u1", "mage")
		if !errors.Is(err, model.ErrNoRoomState) {
			t.Fatalf("expected ErrNoRoomState, got %v", err)
		}
	})

	t.Run("RefreshKeepsSelections", func(t *testing.T) {
		if _, err := store.Ensure(ctx, "refresh", 3); err != nil {
			t.Fatal(err)
		}
		if _, _, err := store.RecordSelection(ctx, "refresh", "u1", "mage"); err != nil {
			t.Fatal(err)
		}
		st, err := store.Ensure(ctx, "refresh", 4)
		if err != nil {
			t.Fatal(err)
		}
		if st.Expected != 4 || st.Selections["u1"] != "mage" {
			t.Errorf("refresh lost data: %+v", st)
		}
	})

	t.Run("CompletesOnCountEquality", func(t *testing.T) {
		store.Ensure(ctx, "ready", 2)

		sel, complete, err := store.RecordSelection(ctx, "ready", "u1", "rogue")
		if err != nil || complete || len(sel) != 1 {
			t.Fatalf("first selection: %v %v %v", sel, complete, err)
		}
		// re-selection overwrites
		sel, complete, _ = store.RecordSelection(ctx, "ready", "u1", "knight")
		if complete || sel["u1"] != "knight" || len(sel) != 1 {
			t.Fatalf("overwrite: %v %v", sel, complete)
		}
		sel, complete, _ = store.RecordSelection(ctx, "ready", "u2", "mage")
		if !complete || len(sel) != 2 {
			t.Fatalf("expected completion, got %v %v", sel, complete)
		}

		_, _, err = store.RecordSelection(ctx, "ready", "u2", "rogue")
		if !errors.Is(err, model.ErrReadinessClosed) {
			t.Errorf("expected ErrReadinessClosed after completion, got %v", err)
		}

		store.Discard(ctx, "ready")
		if _, _, err := store.RecordSelection(ctx, "ready", "u1", "mage"); !errors.Is(err, model.ErrNoRoomState) {
			t.Errorf("expected ErrNoRoomState after discard, got %v", err)
		}
	})

	t.Run("ExceedingExpectedDoesNotComplete", func(t *testing.T) {
		store.Ensure(ctx, "late", 2)
		store.RecordSelection(ctx, "late", "u1", "mage")
		// stale count from a refresh that raced a leave
		store.Ensure(ctx, "late", 1)
		_, complete, err := store.RecordSelection(ctx, "late", "u2", "rogue")
		if err != nil {
			t.Fatal(err)
		}
		if complete {
			t.Error("two selections against an expected count of one must not complete")
		}
	})

	t.Run("LateJoinerRaisesCountBeforeLastSelection", func(t *testing.T) {
		store.Ensure(ctx, "latejoin", 2)
		store.RecordSelection(ctx, "latejoin", "u1", "mage")
		store.Ensure(ctx, "latejoin", 3)

		if _, complete, _ := store.RecordSelection(ctx, "latejoin", "u2", "rogue"); complete {
			t.Fatal("completed against the count from before the late join")
		}
		if _, complete, _ := store.RecordSelection(ctx, "latejoin", "u3", "knight"); !complete {
			t.Error("expected completion once the late joiner selected")
		}
	})

	t.Run("ConcurrentLateJoinIsNotLost", func(t *testing.T) {
		for round := 0; round < 50; round++ {
			id := fmt.Sprintf("join-race-%d", round)
			store.Ensure(ctx, id, 2)
			store.RecordSelection(ctx, id, "u1", "mage")

			var wg sync.WaitGroup
			var joined *model.RoomState
			var complete bool
			wg.Add(2)
			go func() {
				defer wg.Done()
				joined, _ = store.Ensure(ctx, id, 3)
			}()
			go func() {
				defer wg.Done()
				_, complete, _ = store.RecordSelection(ctx, id, "u2", "rogue")
			}()
			wg.Wait()

			// The join saw only u1 and no completion, so it came first and the
			// selection must have been judged against three players.
			if joined != nil && !joined.Completed && len(joined.Selections) == 1 && complete {
				t.Fatalf("round %d: completed against the count from before the join", round)
			}
			store.Discard(ctx, id)
		}
	})

	t.Run("PeekReportsState", func(t *testing.T) {
		if _, err := store.Peek(ctx, "nobody"); !errors.Is(err, model.ErrNoRoomState) {
			t.Fatalf("expected ErrNoRoomState, got %v", err)
		}

		store.Ensure(ctx, "peek", 1)
		st, err := store.Peek(ctx, "peek")
		if err != nil || st.Completed || st.Expected != 1 {
			t.Fatalf("open state: %+v, %v", st, err)
		}

		store.RecordSelection(ctx, "peek", "u1", "mage")
		st, err = store.Peek(ctx, "peek")
		if err != nil || !st.Completed || st.Selections["u1"] != "mage" {
			t.Errorf("completed state: %+v, %v", st, err)
		}
	})

	t.Run("ZeroExpectedNeverCompletes", func(t *testing.T) {
		st, _ := store.Ensure(ctx, "empty", 0)
		if st.Completed || len(st.Selections) != 0 {
			t.Fatalf("unexpected state %+v", st)
		}
		_, complete, _ := store.RecordSelection(ctx, "empty", "u1", "mage")
		if complete {
			t.Error("one selection against zero expected must not complete")
		}
	})

	t.Run("RemoveSelectionCanComplete", func(t *testing.T) {
		store.Ensure(ctx, "leave", 3)
		store.RecordSelection(ctx, "leave", "u1", "mage")
		store.RecordSelection(ctx, "leave", "u2", "rogue")

		sel, complete, err := store.RemoveSelection(ctx, "leave", "u3", 2)
		if err != nil || !complete || len(sel) != 2 {
			t.Fatalf("expected completion after leave, got %v %v %v", sel, complete, err)
		}

		sel, complete, err = store.RemoveSelection(ctx, "nowhere", "u1", 0)
		if err != nil || complete || sel != nil {
			t.Errorf("remove without state should be a no-op, got %v %v %v", sel, complete, err)
		}
	})

	t.Run("ConcurrentSelectionsCompleteOnce", func(t *testing.T) {
		const players = 10
		store.Ensure(ctx, "race", players)

		var wg sync.WaitGroup
		var mu sync.Mutex
		completions := 0
		for i := 0; i < players; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, complete, err := store.RecordSelection(ctx, "race", fmt.Sprintf("u%d", i), "mage")
				if err != nil {
					t.Errorf("selection %d: %v", i, err)
					return
				}
				if complete {
					mu.Lock()
					completions++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if completions != 1 {
			t.Errorf("expected exactly one completion, got %d", completions)
		}
	})
}
