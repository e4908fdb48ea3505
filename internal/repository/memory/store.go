// Package memory is a process-local Persistent Store for development and
// tests. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"partyquest/internal/model"
	"partyquest/internal/repository"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds every table behind one mutex, so each operation is atomic.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*model.Session
	players    map[string]*model.Player // sessionId/userId
	encounters map[string]*model.Encounter
	enemies    map[string]*model.EnemyTemplate // slug
}

func NewStore() *Store {
	return &Store{
		sessions:   make(map[string]*model.Session),
		players:    make(map[string]*model.Player),
		encounters: make(map[string]*model.Encounter),
		enemies:    make(map[string]*model.EnemyTemplate),
	}
}

func (s *Store) Sessions() repository.SessionRepo     { return sessionRepo{s} }
func (s *Store) Players() repository.PlayerRepo       { return playerRepo{s} }
func (s *Store) Encounters() repository.EncounterRepo { return encounterRepo{s} }
func (s *Store) Enemies() repository.EnemyRepo        { return enemyRepo{s} }

func playerKey(sessionID, userID string) string {
	return sessionID + "/" + userID
}

type sessionRepo struct{ *Store }

func (r sessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if _, ok := r.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r sessionRepo) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Status = status
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (r sessionRepo) MarkSaved(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	s.IsSaved = true
	s.UpdatedAt = at
	return nil
}

func (r sessionRepo) ListSavedByUser(ctx context.Context, userID string) ([]*model.SessionSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	member := make(map[string]bool)
	for _, p := range r.players {
		counts[p.SessionID]++
		if p.UserID == userID {
			member[p.SessionID] = true
		}
	}

	out := []*model.SessionSummary{}
	for id := range member {
		s := r.sessions[id]
		if s == nil || !s.IsSaved || s.Status != model.SessionInGame {
			continue
		}
		out = append(out, &model.SessionSummary{
			SessionID:    s.ID,
			Code:         s.Code,
			CurrentStage: s.CurrentStage,
			UpdatedAt:    s.UpdatedAt,
			PlayerCount:  counts[id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

type playerRepo struct{ *Store }

func (r playerRepo) Create(ctx context.Context, player *model.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := playerKey(player.SessionID, player.UserID)
	if _, ok := r.players[key]; ok {
		return fmt.Errorf("user %s already in session %s", player.UserID, player.SessionID)
	}
	if player.ID == "" {
		player.ID = uuid.NewString()
	}
	if player.JoinedAt.IsZero() {
		player.JoinedAt = time.Now()
	}
	cp := *player
	r.players[key] = &cp
	return nil
}

func (r playerRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.players {
		if p.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (r playerRepo) GetBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.Player, error) {
	return r.update(sessionID, userID, nil)
}

func (r playerRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Player{}
	for _, p := range r.players {
		if p.SessionID == sessionID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r playerRepo) SetCharacter(ctx context.Context, sessionID, userID, characterID string) (*model.Player, error) {
	return r.update(sessionID, userID, func(p *model.Player) { p.CharacterID = characterID })
}

func (r playerRepo) SetHealth(ctx context.Context, sessionID, userID string, hp int) (*model.Player, error) {
	return r.update(sessionID, userID, func(p *model.Player) { p.CurrentHP = hp })
}

func (r playerRepo) Remove(ctx context.Context, sessionID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := playerKey(sessionID, userID)
	if _, ok := r.players[key]; !ok {
		return false, nil
	}
	delete(r.players, key)
	return true, nil
}

func (r playerRepo) update(sessionID, userID string, fn func(*model.Player)) (*model.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerKey(sessionID, userID)]
	if !ok {
		return nil, nil
	}
	if fn != nil {
		fn(p)
	}
	cp := *p
	return &cp, nil
}

type encounterRepo struct{ *Store }

func (r encounterRepo) GetByID(ctx context.Context, id string) (*model.Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.encounters[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r encounterRepo) GetBySessionAndSlug(ctx context.Context, sessionID, slug string) (*model.Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(sessionID, slug), nil
}

func (r encounterRepo) FindOrCreate(ctx context.Context, enc *model.Encounter) (*model.Encounter, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.findLocked(enc.SessionID, enc.EnemySlug); existing != nil {
		return existing, false, nil
	}
	if enc.ID == "" {
		enc.ID = uuid.NewString()
	}
	if enc.CreatedAt.IsZero() {
		enc.CreatedAt = time.Now()
	}
	cp := *enc
	r.encounters[enc.ID] = &cp
	out := cp
	return &out, true, nil
}

func (r encounterRepo) SetHealth(ctx context.Context, id string, hp int) (*model.Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.encounters[id]
	if !ok {
		return nil, nil
	}
	before := *e
	if hp <= 0 {
		e.CurrentHP = 0
		e.IsAlive = false
	} else {
		e.CurrentHP = hp
	}
	return &before, nil
}

func (r encounterRepo) findLocked(sessionID, slug string) *model.Encounter {
	for _, e := range r.encounters {
		if e.SessionID == sessionID && e.EnemySlug == slug {
			cp := *e
			return &cp
		}
	}
	return nil
}

type enemyRepo struct{ *Store }

func (r enemyRepo) GetBySlug(ctx context.Context, slug string) (*model.EnemyTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.enemies[slug]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r enemyRepo) Upsert(ctx context.Context, tmpl *model.EnemyTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.enemies[tmpl.Slug]; ok {
		tmpl.ID = existing.ID
	} else if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}
	cp := *tmpl
	r.enemies[tmpl.Slug] = &cp
	return nil
}
