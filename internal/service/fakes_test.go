package service

import (
	"context"
	"errors"
	"partyquest/internal/model"
	"sync"
	"time"
)

var errStoreDown = errors.New("connection refused")

// callLog records store and broadcast calls in the order they happen.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeSessions struct {
	mu       sync.Mutex
	log      *callLog
	sessions map[string]*model.Session
	err      error
}

func newFakeSessions(log *callLog, sessions ...*model.Session) *fakeSessions {
	f := &fakeSessions{log: log, sessions: make(map[string]*model.Session)}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessions) Create(ctx context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		s.ID = "session-" + s.Code
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessions) GetByID(ctx context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.Status = status
	}
	return nil
}

func (f *fakeSessions) MarkSaved(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return errors.New("not found")
	}
	s.IsSaved = true
	s.UpdatedAt = at
	return nil
}

func (f *fakeSessions) ListSavedByUser(ctx context.Context, userID string) ([]*model.SessionSummary, error) {
	return nil, nil
}

func (f *fakeSessions) status(id string) model.SessionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id].Status
}

type fakePlayers struct {
	mu       sync.Mutex
	log      *callLog
	players  map[string]*model.Player // sessionId/userId
	err      error
	countErr error
	block    bool // CountBySession waits for ctx
}

func newFakePlayers(log *callLog) *fakePlayers {
	return &fakePlayers{log: log, players: make(map[string]*model.Player)}
}

func (f *fakePlayers) add(sessionID, userID string, hp int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[sessionID+"/"+userID] = &model.Player{
		ID: userID, SessionID: sessionID, UserID: userID, CurrentHP: hp, MaxHP: hp,
	}
}

func (f *fakePlayers) Create(ctx context.Context, p *model.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[p.SessionID+"/"+p.UserID] = p
	return nil
}

func (f *fakePlayers) CountBySession(ctx context.Context, sessionID string) (int, error) {
	if f.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, p := range f.players {
		if p.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (f *fakePlayers) GetBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[sessionID+"/"+userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePlayers) ListBySession(ctx context.Context, sessionID string) ([]*model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Player{}
	for _, p := range f.players {
		if p.SessionID == sessionID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePlayers) SetCharacter(ctx context.Context, sessionID, userID, characterID string) (*model.Player, error) {
	if f.log != nil {
		f.log.add("store:set_character:" + userID)
	}
	return f.update(sessionID, userID, func(p *model.Player) { p.CharacterID = characterID })
}

func (f *fakePlayers) SetHealth(ctx context.Context, sessionID, userID string, hp int) (*model.Player, error) {
	if f.log != nil {
		f.log.add("store:set_player_health:" + userID)
	}
	return f.update(sessionID, userID, func(p *model.Player) { p.CurrentHP = hp })
}

func (f *fakePlayers) Remove(ctx context.Context, sessionID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sessionID + "/" + userID
	if _, ok := f.players[key]; !ok {
		return false, nil
	}
	delete(f.players, key)
	return true, nil
}

func (f *fakePlayers) update(sessionID, userID string, fn func(*model.Player)) (*model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.players[sessionID+"/"+userID]
	if !ok {
		return nil, nil
	}
	fn(p)
	cp := *p
	return &cp, nil
}

// fakeEncounters mimics an atomic find-or-create keyed by (session, slug).
type fakeEncounters struct {
	mu      sync.Mutex
	log     *callLog
	byID    map[string]*model.Encounter
	creates int
	lookups int
	err     error
	delay   time.Duration // widens the lookup-then-insert window
}

func newFakeEncounters(log *callLog) *fakeEncounters {
	return &fakeEncounters{log: log, byID: make(map[string]*model.Encounter)}
}

func (f *fakeEncounters) GetByID(ctx context.Context, id string) (*model.Encounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEncounters) GetBySessionAndSlug(ctx context.Context, sessionID, slug string) (*model.Encounter, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.findLocked(sessionID, slug), nil
}

func (f *fakeEncounters) FindOrCreate(ctx context.Context, enc *model.Encounter) (*model.Encounter, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing := f.findLocked(enc.SessionID, enc.EnemySlug); existing != nil {
		return existing, false, nil
	}
	f.creates++
	cp := *enc
	if cp.ID == "" {
		cp.ID = "enc-" + enc.EnemySlug
	}
	f.byID[cp.ID] = &cp
	out := cp
	return &out, true, nil
}

func (f *fakeEncounters) SetHealth(ctx context.Context, id string, hp int) (*model.Encounter, error) {
	if f.log != nil {
		f.log.add("store:set_enemy_health:" + id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.byID[id]
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

func (f *fakeEncounters) findLocked(sessionID, slug string) *model.Encounter {
	for _, e := range f.byID {
		if e.SessionID == sessionID && e.EnemySlug == slug {
			cp := *e
			return &cp
		}
	}
	return nil
}

type fakeEnemies struct {
	templates map[string]*model.EnemyTemplate
}

func newFakeEnemies(templates ...*model.EnemyTemplate) *fakeEnemies {
	f := &fakeEnemies{templates: make(map[string]*model.EnemyTemplate)}
	for _, t := range templates {
		f.templates[t.Slug] = t
	}
	return f
}

func (f *fakeEnemies) GetBySlug(ctx context.Context, slug string) (*model.EnemyTemplate, error) {
	t, ok := f.templates[slug]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeEnemies) Upsert(ctx context.Context, t *model.EnemyTemplate) error {
	f.templates[t.Slug] = t
	return nil
}

// recorder is a Broadcaster that keeps every send
type sent struct {
	Audience Audience
	Target   string
	Event    string
	Payload  interface{}
	At       time.Time
}

type recorder struct {
	mu   sync.Mutex
	log  *callLog
	sent []sent
}

func (r *recorder) BroadcastToRoom(sessionID, event string, payload interface{}) {
	r.record(AudienceRoom, sessionID, event, payload)
}

func (r *recorder) SendToConnection(connID, event string, payload interface{}) {
	r.record(AudienceConnection, connID, event, payload)
}

func (r *recorder) record(a Audience, target, event string, payload interface{}) {
	if r.log != nil {
		r.log.add("broadcast:" + event)
	}
	r.mu.Lock()
	r.sent = append(r.sent, sent{Audience: a, Target: target, Event: event, Payload: payload, At: time.Now()})
	r.mu.Unlock()
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, s := range r.sent {
		out[i] = s.Event
	}
	return out
}

func eventNames(ds []Delivery) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Event
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
