package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"partyquest/internal/model"
	"partyquest/internal/repository"
	"time"

	"go.uber.org/zap"
)

// RoomService handles room lifecycle: join, leave and session creation
type RoomService struct {
	sessions    repository.SessionRepo
	players     repository.PlayerRepo
	rooms       RoomStateStore
	logger      *zap.SugaredLogger
	joinTimeout time.Duration
	settleDelay time.Duration
}

// NewRoomService creates a new room service
func NewRoomService(
	sessions repository.SessionRepo,
	players repository.PlayerRepo,
	rooms RoomStateStore,
	logger *zap.SugaredLogger,
	joinTimeout time.Duration,
	settleDelay time.Duration,
) *RoomService {
	return &RoomService{
		sessions:    sessions,
		players:     players,
		rooms:       rooms,
		logger:      logger,
		joinTimeout: joinTimeout,
		settleDelay: settleDelay,
	}
}

// Join validates the session and refreshes its RoomState. On success the
// caller must bind the connection to the room before dispatching the returned
// deliveries; on error the deliveries only address the caller and the
// connection must stay unbound.
func (s *RoomService) Join(ctx context.Context, caller Caller, sessionID string) ([]Delivery, error) {
	if sessionID == "" {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Missing session id")}, ErrInvalidPayload
	}

	ctx, cancel := context.WithTimeout(ctx, s.joinTimeout)
	defer cancel()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return s.unavailable(caller, "join", sessionID, err)
	}
	if session == nil {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Session not found")}, ErrSessionNotFound
	}
	if session.Status == model.SessionClosed {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "This session has been closed")}, ErrSessionClosed
	}

	// No fallback count: a failed lookup rejects the join.
	count, err := s.players.CountBySession(ctx, sessionID)
	if err != nil {
		return s.unavailable(caller, "count players", sessionID, err)
	}

	state, err := s.rooms.Ensure(ctx, sessionID, count)
	if err != nil {
		return s.unavailable(caller, "ensure room state", sessionID, err)
	}

	var out []Delivery
	if count <= 0 {
		out = append(out, Notify(caller.ConnID, model.NotifyWarning, "No players found in this session yet"))
	}
	out = append(out, ToConnection(caller.ConnID, model.EventSelectionUpdate, state.Selections))
	return out, nil
}

// Leave removes a player from the session. The remaining players' readiness
// is re-evaluated against the new count, and an empty session is closed.
func (s *RoomService) Leave(ctx context.Context, sessionID, userID string) ([]Delivery, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	removed, err := s.players.Remove(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !removed {
		return nil, ErrPlayerNotFound
	}

	remaining, err := s.players.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	out := []Delivery{ToRoom(sessionID, model.EventPlayerLeft, model.PlayerLeft{UserID: userID})}

	selections, complete, err := s.rooms.RemoveSelection(ctx, sessionID, userID, remaining)
	if err != nil {
		s.logger.Errorw("failed to remove selection", "sessionId", sessionID, "userId", userID, "error", err)
	} else if selections != nil {
		out = append(out, ToRoom(sessionID, model.EventSelectionUpdate, selections))
		if complete {
			out = append(out, s.completeReadiness(ctx, sessionID)...)
		}
	}

	if remaining == 0 {
		if err := s.sessions.UpdateStatus(ctx, sessionID, model.SessionClosed); err != nil {
			return out, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if err := s.rooms.Discard(ctx, sessionID); err != nil {
			s.logger.Errorw("failed to discard room state", "sessionId", sessionID, "error", err)
		}
		s.logger.Infow("session closed", "sessionId", sessionID)
	}
	return out, nil
}

// Create opens a Waiting session with the host as its first player.
func (s *RoomService) Create(ctx context.Context, hostUserID string, hostMaxHP int) (*model.Session, error) {
	code, err := generateSessionCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session code: %w", err)
	}

	session := &model.Session{
		Code:       code,
		Status:     model.SessionWaiting,
		HostUserID: hostUserID,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.AddPlayer(ctx, session.ID, hostUserID, hostMaxHP); err != nil {
		return nil, err
	}
	return session, nil
}

// AddPlayer adds a user to a session at full health.
func (s *RoomService) AddPlayer(ctx context.Context, sessionID, userID string, maxHP int) error {
	player := &model.Player{
		SessionID: sessionID,
		UserID:    userID,
		CurrentHP: maxHP,
		MaxHP:     maxHP,
	}
	if err := s.players.Create(ctx, player); err != nil {
		return fmt.Errorf("failed to add player %s: %w", userID, err)
	}
	return nil
}

func (s *RoomService) completeReadiness(ctx context.Context, sessionID string) []Delivery {
	return completeReadiness(ctx, s.sessions, s.rooms, s.logger, sessionID, s.settleDelay)
}

func (s *RoomService) unavailable(caller Caller, op, sessionID string, err error) ([]Delivery, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warnw("join timed out", "op", op, "sessionId", sessionID, "connId", caller.ConnID)
	}
	return []Delivery{Notify(caller.ConnID, model.NotifyError, "Could not join the session, please try again")},
		fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// generateSessionCode creates a 6-char alphanumeric code
func generateSessionCode() (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLen = 6

	b := make([]byte, codeLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	code := make([]byte, codeLen)
	for i := range code {
		code[i] = chars[int(b[i])%len(chars)]
	}
	return string(code), nil
}
