package service

import (
	"context"
	"errors"
	"fmt"
	"partyquest/internal/model"
	"partyquest/internal/repository"
	"time"

	"go.uber.org/zap"
)

// ReadinessService runs the character selection handshake of a room:
// Collecting until every expected player has chosen, then AllReady, then the
// RoomState is discarded.
type ReadinessService struct {
	sessions    repository.SessionRepo
	players     repository.PlayerRepo
	rooms       RoomStateStore
	logger      *zap.SugaredLogger
	settleDelay time.Duration
}

func NewReadinessService(
	sessions repository.SessionRepo,
	players repository.PlayerRepo,
	rooms RoomStateStore,
	logger *zap.SugaredLogger,
	settleDelay time.Duration,
) *ReadinessService {
	return &ReadinessService{
		sessions:    sessions,
		players:     players,
		rooms:       rooms,
		logger:      logger,
		settleDelay: settleDelay,
	}
}

// SelectCharacter checks the room is still collecting, persists the choice on
// the player row, then records it in the RoomState. start_game is only
// announced once the write has landed.
func (s *ReadinessService) SelectCharacter(ctx context.Context, caller Caller, req model.CharacterSelectedRequest) ([]Delivery, error) {
	userID, err := resolveUser(caller, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" || req.CharacterID == "" || userID == "" {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Invalid character selection")}, ErrInvalidPayload
	}

	// A selection that would be dropped must not reach the player row.
	state, err := s.rooms.Peek(ctx, req.SessionID)
	switch {
	case errors.Is(err, model.ErrNoRoomState):
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	case err != nil:
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Could not record your selection, please try again")},
			fmt.Errorf("%w: read room state: %w", ErrStoreUnavailable, err)
	case state.Completed:
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, model.ErrReadinessClosed)
	}

	player, err := s.players.SetCharacter(ctx, req.SessionID, userID, req.CharacterID)
	if err != nil {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Could not save your character, please try again")},
			fmt.Errorf("%w: set character: %w", ErrStoreUnavailable, err)
	}
	if player == nil {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "You are not a player in this session")}, ErrPlayerNotFound
	}

	selections, complete, err := s.rooms.RecordSelection(ctx, req.SessionID, userID, req.CharacterID)
	switch {
	case errors.Is(err, model.ErrNoRoomState), errors.Is(err, model.ErrReadinessClosed):
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	case err != nil:
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Could not record your selection, please try again")},
			fmt.Errorf("%w: record selection: %w", ErrStoreUnavailable, err)
	}

	out := []Delivery{
		ToRoom(req.SessionID, model.EventCharacterSelectionUpdate, model.CharacterSelectionUpdate{
			UserID:      userID,
			CharacterID: req.CharacterID,
		}),
		ToRoom(req.SessionID, model.EventSelectionUpdate, selections),
	}
	if complete {
		s.logger.Infow("all players ready", "sessionId", req.SessionID, "players", len(selections))
		out = append(out, completeReadiness(ctx, s.sessions, s.rooms, s.logger, req.SessionID, s.settleDelay)...)
	}
	return out, nil
}

// completeReadiness moves the session in game, discards its RoomState and
// returns the delayed start_game broadcast.
func completeReadiness(
	ctx context.Context,
	sessions repository.SessionRepo,
	rooms RoomStateStore,
	logger *zap.SugaredLogger,
	sessionID string,
	delay time.Duration,
) []Delivery {
	if err := sessions.UpdateStatus(ctx, sessionID, model.SessionInGame); err != nil {
		logger.Errorw("failed to mark session in game", "sessionId", sessionID, "error", err)
	}
	if err := rooms.Discard(ctx, sessionID); err != nil {
		logger.Errorw("failed to discard room state", "sessionId", sessionID, "error", err)
	}

	start := ToRoom(sessionID, model.EventAllPlayersReady, nil)
	start.Delay = delay
	return []Delivery{start}
}

// resolveUser reconciles the payload user id with the token subject.
func resolveUser(caller Caller, payloadUserID string) (string, error) {
	if caller.UserID == "" {
		return payloadUserID, nil
	}
	if payloadUserID == "" {
		return caller.UserID, nil
	}
	if payloadUserID != caller.UserID {
		return "", fmt.Errorf("%w: %w", ErrProtocolViolation, ErrIdentityMismatch)
	}
	return caller.UserID, nil
}
