package memory

import (
	"context"
	"partyquest/internal/model"
	"sync"
	"testing"
	"time"
)

func TestFindOrCreateSingleCreator(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Encounters()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := map[string]bool{}
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			enc, ok, err := repo.FindOrCreate(ctx, &model.Encounter{SessionID: "s1", EnemySlug: "goblin", CurrentHP: 30, MaxHP: 30, IsAlive: true})
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[enc.ID] = true
			if ok {
				created++
			}
		}()
	}
	wg.Wait()

	if created != 1 || len(ids) != 1 {
		t.Fatalf("created=%d distinct ids=%d", created, len(ids))
	}
}

func TestEncounterSetHealthReturnsPreImage(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Encounters()
	enc, _, _ := repo.FindOrCreate(ctx, &model.Encounter{SessionID: "s1", EnemySlug: "slime", CurrentHP: 10, MaxHP: 10, IsAlive: true})

	before, err := repo.SetHealth(ctx, enc.ID, -4)
	if err != nil {
		t.Fatal(err)
	}
	if !before.IsAlive || before.CurrentHP != 10 {
		t.Errorf("pre-image = %+v", before)
	}
	after, _ := repo.GetByID(ctx, enc.ID)
	if after.IsAlive || after.CurrentHP != 0 {
		t.Errorf("stored = %+v", after)
	}

	again, _ := repo.SetHealth(ctx, enc.ID, -1)
	if again.IsAlive {
		t.Error("second killing blow saw a live pre-image")
	}

	missing, err := repo.SetHealth(ctx, "nope", 1)
	if missing != nil || err != nil {
		t.Errorf("unknown encounter = %v, %v", missing, err)
	}
}

func TestPlayersAndSavedSessions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	sessions, players := store.Sessions(), store.Players()

	for _, id := range []string{"a", "b", "c"} {
		if err := sessions.Create(ctx, &model.Session{ID: id, Code: "CODE" + id, Status: model.SessionInGame}); err != nil {
			t.Fatal(err)
		}
	}
	players.Create(ctx, &model.Player{SessionID: "a", UserID: "u1"})
	players.Create(ctx, &model.Player{SessionID: "a", UserID: "u2"})
	players.Create(ctx, &model.Player{SessionID: "b", UserID: "u1"})
	players.Create(ctx, &model.Player{SessionID: "c", UserID: "u2"})

	if err := players.Create(ctx, &model.Player{SessionID: "a", UserID: "u1"}); err == nil {
		t.Error("duplicate membership accepted")
	}

	now := time.Now()
	sessions.MarkSaved(ctx, "a", now)
	sessions.MarkSaved(ctx, "b", now.Add(time.Minute))
	sessions.MarkSaved(ctx, "c", now)

	got, err := sessions.ListSavedByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].SessionID != "b" || got[1].SessionID != "a" {
		t.Fatalf("saved games = %+v", got)
	}
	if got[1].PlayerCount != 2 {
		t.Errorf("player count = %d", got[1].PlayerCount)
	}

	if err := sessions.MarkSaved(ctx, "zzz", now); err == nil {
		t.Error("saving an unknown session succeeded")
	}

	removed, _ := players.Remove(ctx, "a", "u2")
	if !removed {
		t.Error("remove reported no row")
	}
	if n, _ := players.CountBySession(ctx, "a"); n != 1 {
		t.Errorf("count after remove = %d", n)
	}
	if p, _ := players.SetCharacter(ctx, "a", "u2", "mage"); p != nil {
		t.Error("updated a removed player")
	}
}

func TestEnemyUpsertKeepsID(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Enemies()

	first := &model.EnemyTemplate{Slug: "dragon", Name: "Dragon", BaseHP: 100}
	repo.Upsert(ctx, first)
	second := &model.EnemyTemplate{Slug: "dragon", Name: "Elder Dragon", BaseHP: 150}
	repo.Upsert(ctx, second)

	got, _ := repo.GetBySlug(ctx, "dragon")
	if got.ID != first.ID || got.Name != "Elder Dragon" {
		t.Errorf("got %+v, first id %s", got, first.ID)
	}
}
