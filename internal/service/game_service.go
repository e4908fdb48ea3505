package service

import (
	"context"
	"fmt"
	"partyquest/internal/model"
	"partyquest/internal/repository"
	"time"
)

// GameService backs the save/load HTTP endpoints
type GameService struct {
	sessions repository.SessionRepo
	players  repository.PlayerRepo
	health   *HealthService
}

func NewGameService(sessions repository.SessionRepo, players repository.PlayerRepo, health *HealthService) *GameService {
	return &GameService{
		sessions: sessions,
		players:  players,
		health:   health,
	}
}

// Save applies every player health in the batch and marks the session saved.
// It returns the updated players and their health broadcasts. On a failure
// partway through, the broadcasts for the players already written are still
// returned with the error.
func (s *GameService) Save(ctx context.Context, req model.SaveGameRequest) ([]*model.Player, []Delivery, error) {
	if req.SessionID == "" {
		return nil, nil, ErrInvalidPayload
	}
	session, err := s.sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}

	updated := make([]*model.Player, 0, len(req.PlayerStates))
	var out []Delivery
	for _, st := range req.PlayerStates {
		player, err := s.health.SetPlayerHealth(ctx, req.SessionID, st.UserID, st.CurrentHP)
		if err != nil {
			return nil, out, err
		}
		if player == nil {
			return nil, out, fmt.Errorf("%w: %s", ErrPlayerNotFound, st.UserID)
		}
		updated = append(updated, player)
		out = append(out, PlayerHealthDelivery(player))
	}

	at := time.Now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}
	if err := s.sessions.MarkSaved(ctx, req.SessionID, at); err != nil {
		return nil, out, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return updated, out, nil
}

func (s *GameService) ListByUser(ctx context.Context, userID string) ([]*model.SessionSummary, error) {
	games, err := s.sessions.ListSavedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return games, nil
}

// Get returns nil when the session does not exist.
func (s *GameService) Get(ctx context.Context, sessionID string) (*model.GameDetails, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if session == nil {
		return nil, nil
	}
	players, err := s.players.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return &model.GameDetails{Session: session, Players: players}, nil
}
