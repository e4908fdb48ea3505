package service

import (
	"context"
	"fmt"
	"partyquest/internal/model"
	"partyquest/internal/repository"

	"go.uber.org/zap"
)

// HealthService is the only writer of encounter and player health. Every
// change is persisted before its broadcast is returned.
type HealthService struct {
	encounters repository.EncounterRepo
	players    repository.PlayerRepo
	logger     *zap.SugaredLogger
}

func NewHealthService(encounters repository.EncounterRepo, players repository.PlayerRepo, logger *zap.SugaredLogger) *HealthService {
	return &HealthService{
		encounters: encounters,
		players:    players,
		logger:     logger,
	}
}

// UpdateEnemyHealth writes the new value and broadcasts it. Only connections
// bound to the encounter's room may write it. combat_victory is emitted only
// by the write that takes the encounter from alive to zero.
func (s *HealthService) UpdateEnemyHealth(ctx context.Context, caller Caller, req model.UpdateEnemyHealthRequest) ([]Delivery, error) {
	if req.EncounterID == "" {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, ErrInvalidPayload)
	}

	enc, err := s.encounters.GetByID(ctx, req.EncounterID)
	if err != nil {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Could not update enemy health, please try again")},
			fmt.Errorf("%w: get encounter: %w", ErrStoreUnavailable, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, ErrEncounterNotFound)
	}
	if enc.SessionID != caller.SessionID {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, ErrNotInRoom)
	}

	hp := max(req.NewHP, 0)
	before, err := s.encounters.SetHealth(ctx, req.EncounterID, hp)
	if err != nil {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Could not update enemy health, please try again")},
			fmt.Errorf("%w: set encounter health: %w", ErrStoreUnavailable, err)
	}
	if before == nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, ErrEncounterNotFound)
	}

	alive := before.IsAlive && hp > 0
	out := []Delivery{
		ToRoom(before.SessionID, model.EventEnemyHealthChanged, model.EnemyHealthChanged{
			EncounterID: before.ID,
			NewHP:       hp,
			MaxHP:       before.MaxHP,
			Alive:       alive,
		}),
	}
	if before.IsAlive && !alive {
		s.logger.Infow("encounter defeated", "sessionId", before.SessionID, "encounterId", before.ID)
		out = append(out, ToRoom(before.SessionID, model.EventCombatVictory, model.CombatVictory{EncounterID: before.ID}))
	}
	return out, nil
}

// UpdatePlayerHealth writes a player's health and broadcasts it, including a
// zero value. With auth enabled a player can only write their own health.
// Recovery from defeat is left to the client.
func (s *HealthService) UpdatePlayerHealth(ctx context.Context, caller Caller, req model.UpdatePlayerHealthRequest) ([]Delivery, error) {
	userID, err := resolveUser(caller, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" || userID == "" {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, ErrInvalidPayload)
	}
	if req.SessionID != caller.SessionID {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, ErrNotInRoom)
	}

	player, err := s.SetPlayerHealth(ctx, req.SessionID, userID, req.NewHP)
	if err != nil {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Could not update player health, please try again")}, err
	}
	if player == nil {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Player not found in this session")}, ErrPlayerNotFound
	}
	return []Delivery{PlayerHealthDelivery(player)}, nil
}

// SetPlayerHealth persists a player's health without building deliveries.
// It returns nil when the player is not in the session.
func (s *HealthService) SetPlayerHealth(ctx context.Context, sessionID, userID string, hp int) (*model.Player, error) {
	player, err := s.players.SetHealth(ctx, sessionID, userID, max(hp, 0))
	if err != nil {
		return nil, fmt.Errorf("%w: set player health: %w", ErrStoreUnavailable, err)
	}
	return player, nil
}

func PlayerHealthDelivery(p *model.Player) Delivery {
	return ToRoom(p.SessionID, model.EventPlayerHealthChanged, model.PlayerHealthChanged{
		UserID:    p.UserID,
		CurrentHP: p.CurrentHP,
		MaxHP:     p.MaxHP,
		Alive:     p.Alive(),
	})
}
