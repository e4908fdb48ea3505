package service

import (
	"context"
	"errors"
	"fmt"
	"partyquest/internal/cache"
	"partyquest/internal/model"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// loggingRooms wraps a RoomStateStore to record when selections are recorded.
type loggingRooms struct {
	RoomStateStore
	log *callLog
}

func (r *loggingRooms) RecordSelection(ctx context.Context, sessionID, userID, characterID string) (map[string]string, bool, error) {
	r.log.add("room:record:" + userID)
	return r.RoomStateStore.RecordSelection(ctx, sessionID, userID, characterID)
}

func newReadinessFixture(players int) (*ReadinessService, *fakePlayers, *cache.MemoryRoomStateStore, *callLog) {
	log := &callLog{}
	sessions := newFakeSessions(log, &model.Session{ID: "s1", Status: model.SessionWaiting})
	fp := newFakePlayers(log)
	for i := 1; i <= players; i++ {
		fp.add("s1", fmt.Sprintf("u%d", i), 20)
	}
	rooms := cache.NewMemoryRoomStateStore(time.Hour)
	rooms.Ensure(context.Background(), "s1", players)

	svc := NewReadinessService(sessions, fp, &loggingRooms{RoomStateStore: rooms, log: log}, zap.NewNop().Sugar(), 500*time.Millisecond)
	return svc, fp, rooms, log
}

func selectFor(t *testing.T, svc *ReadinessService, userID, character string) []Delivery {
	t.Helper()
	out, err := svc.SelectCharacter(context.Background(), Caller{ConnID: "c-" + userID}, model.CharacterSelectedRequest{
		SessionID: "s1", UserID: userID, CharacterID: character,
	})
	if err != nil {
		t.Fatalf("select %s: %v", userID, err)
	}
	return out
}

func TestSelectionPersistsBeforeRecording(t *testing.T) {
	svc, _, _, log := newReadinessFixture(2)
	selectFor(t, svc, "u1", "mage")

	want := []string{"store:set_character:u1", "room:record:u1"}
	if got := log.list(); !equalStrings(got, want) {
		t.Fatalf("call order = %v, want %v", got, want)
	}
}

func TestSelectionDeliveries(t *testing.T) {
	svc, fp, rooms, _ := newReadinessFixture(2)

	out := selectFor(t, svc, "u1", "mage")
	if got := eventNames(out); !equalStrings(got, []string{model.EventCharacterSelectionUpdate, model.EventSelectionUpdate}) {
		t.Fatalf("first selection deliveries = %v", got)
	}
	delta := out[0].Payload.(model.CharacterSelectionUpdate)
	if delta.UserID != "u1" || delta.CharacterID != "mage" || out[0].Audience != AudienceRoom {
		t.Errorf("unexpected delta %+v", out[0])
	}

	out = selectFor(t, svc, "u2", "rogue")
	want := []string{model.EventCharacterSelectionUpdate, model.EventSelectionUpdate, model.EventAllPlayersReady}
	if got := eventNames(out); !equalStrings(got, want) {
		t.Fatalf("completing deliveries = %v, want %v", got, want)
	}
	if out[1].Delay != 0 || out[2].Delay != 500*time.Millisecond {
		t.Errorf("snapshot must be immediate and start_game delayed, got %v / %v", out[1].Delay, out[2].Delay)
	}
	if sel := out[1].Payload.(map[string]string); len(sel) != 2 {
		t.Errorf("snapshot = %v", sel)
	}
	if rooms.Len() != 0 {
		t.Error("room state should be discarded after completion")
	}

	p, _ := fp.GetBySessionAndUser(context.Background(), "s1", "u2")
	if p.CharacterID != "rogue" {
		t.Errorf("character not persisted: %+v", p)
	}
}

func TestReselectionOverwritesWithoutCompleting(t *testing.T) {
	svc, _, _, _ := newReadinessFixture(2)

	selectFor(t, svc, "u1", "mage")
	out := selectFor(t, svc, "u1", "knight")

	if got := eventNames(out); len(got) != 2 {
		t.Fatalf("re-selection must not complete, got %v", got)
	}
	sel := out[1].Payload.(map[string]string)
	if len(sel) != 1 || sel["u1"] != "knight" {
		t.Errorf("snapshot = %v", sel)
	}
}

func TestSelectionWithoutRoomStateIsDropped(t *testing.T) {
	svc, _, rooms, _ := newReadinessFixture(2)
	rooms.Discard(context.Background(), "s1")

	out, err := svc.SelectCharacter(context.Background(), Caller{ConnID: "c1"}, model.CharacterSelectedRequest{
		SessionID: "s1", UserID: "u1", CharacterID: "mage",
	})
	if !IsProtocolViolation(err) || !errors.Is(err, model.ErrNoRoomState) {
		t.Fatalf("expected protocol violation, got %v", err)
	}
	if len(out) != 0 {
		t.Errorf("violations produce no deliveries, got %+v", out)
	}
}

func TestDroppedSelectionIsNotPersisted(t *testing.T) {
	ctx := context.Background()

	t.Run("AfterDiscard", func(t *testing.T) {
		svc, fp, _, _ := newReadinessFixture(1)
		selectFor(t, svc, "u1", "mage")

		out, err := svc.SelectCharacter(ctx, Caller{ConnID: "c1"}, model.CharacterSelectedRequest{
			SessionID: "s1", UserID: "u1", CharacterID: "rogue",
		})
		if !IsProtocolViolation(err) || len(out) != 0 {
			t.Fatalf("expected silent drop, got %v, %+v", err, out)
		}
		if p, _ := fp.GetBySessionAndUser(ctx, "s1", "u1"); p.CharacterID != "mage" {
			t.Errorf("dropped selection overwrote the stored character: %q", p.CharacterID)
		}
	})

	t.Run("CompletedNotYetDiscarded", func(t *testing.T) {
		svc, fp, rooms, log := newReadinessFixture(1)
		rooms.RecordSelection(ctx, "s1", "u1", "mage")

		_, err := svc.SelectCharacter(ctx, Caller{ConnID: "c1"}, model.CharacterSelectedRequest{
			SessionID: "s1", UserID: "u1", CharacterID: "rogue",
		})
		if !errors.Is(err, model.ErrReadinessClosed) || !IsProtocolViolation(err) {
			t.Fatalf("expected closed readiness violation, got %v", err)
		}
		if p, _ := fp.GetBySessionAndUser(ctx, "s1", "u1"); p.CharacterID != "" {
			t.Errorf("character persisted after completion: %q", p.CharacterID)
		}
		if calls := log.list(); len(calls) != 0 {
			t.Errorf("store calls = %v", calls)
		}
	})
}

func TestSelectionIdentity(t *testing.T) {
	svc, _, _, _ := newReadinessFixture(3)
	ctx := context.Background()

	_, err := svc.SelectCharacter(ctx, Caller{ConnID: "c1", UserID: "u1"}, model.CharacterSelectedRequest{
		SessionID: "s1", UserID: "u2", CharacterID: "mage",
	})
	if !errors.Is(err, ErrIdentityMismatch) || !IsProtocolViolation(err) {
		t.Fatalf("expected identity mismatch violation, got %v", err)
	}

	out, err := svc.SelectCharacter(ctx, Caller{ConnID: "c1", UserID: "u1"}, model.CharacterSelectedRequest{
		SessionID: "s1", CharacterID: "mage",
	})
	if err != nil {
		t.Fatal(err)
	}
	if delta := out[0].Payload.(model.CharacterSelectionUpdate); delta.UserID != "u1" {
		t.Errorf("user id not filled from token: %+v", delta)
	}

	out, err = svc.SelectCharacter(ctx, Caller{ConnID: "c9"}, model.CharacterSelectedRequest{
		SessionID: "s1", UserID: "stranger", CharacterID: "mage",
	})
	if !errors.Is(err, ErrPlayerNotFound) || len(out) != 1 || out[0].ConnID != "c9" {
		t.Errorf("non-member selection: %v, %+v", err, out)
	}
}

func TestSelectionStoreFailureNotifiesCaller(t *testing.T) {
	svc, fp, _, log := newReadinessFixture(1)
	fp.err = errStoreDown

	out, err := svc.SelectCharacter(context.Background(), Caller{ConnID: "c1"}, model.CharacterSelectedRequest{
		SessionID: "s1", UserID: "u1", CharacterID: "mage",
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(out) != 1 || out[0].Audience != AudienceConnection {
		t.Fatalf("expected a targeted notification, got %+v", out)
	}
	for _, call := range log.list() {
		if call == "room:record:u1" {
			t.Error("selection must not be recorded when persistence fails")
		}
	}
}

func TestConcurrentSelectionsAnnounceReadyOnce(t *testing.T) {
	const players = 12
	svc, _, _, _ := newReadinessFixture(players)

	var wg sync.WaitGroup
	var mu sync.Mutex
	starts := 0
	for i := 1; i <= players; i++ {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			out, err := svc.SelectCharacter(context.Background(), Caller{ConnID: "c-" + uid}, model.CharacterSelectedRequest{
				SessionID: "s1", UserID: uid, CharacterID: "mage",
			})
			if err != nil {
				t.Errorf("%s: %v", uid, err)
				return
			}
			for _, d := range out {
				if d.Event == model.EventAllPlayersReady {
					mu.Lock()
					starts++
					mu.Unlock()
				}
			}
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()

	if starts != 1 {
		t.Errorf("start_game emitted %d times", starts)
	}
}
