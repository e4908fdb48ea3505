package postgres

import (
	"context"
	"errors"
	"fmt"
	"partyquest/internal/model"
	"partyquest/internal/repository"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type sessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) repository.SessionRepo {
	return &sessionRepo{pool: pool}
}

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = model.SessionWaiting
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO room_sessions (id, code, status, host_user_id, current_stage, is_saved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Code, string(s.Status), s.HostUserID, s.CurrentStage, s.IsSaved, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, status, host_user_id, current_stage, is_saved, created_at, updated_at
		FROM room_sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &status, &s.HostUserID, &s.CurrentStage, &s.IsSaved, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Status = model.SessionStatus(status)
	return &s, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE room_sessions SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	return err
}

func (r *sessionRepo) MarkSaved(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE room_sessions SET is_saved = TRUE, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

func (r *sessionRepo) ListSavedByUser(ctx context.Context, userID string) ([]*model.SessionSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.code, s.current_stage, s.updated_at,
		       (SELECT count(*) FROM room_players c WHERE c.session_id = s.id)
		FROM room_sessions s
		JOIN room_players p ON p.session_id = s.id
		WHERE p.user_id = $1 AND s.is_saved AND s.status = $2
		ORDER BY s.updated_at DESC`, userID, string(model.SessionInGame))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []*model.SessionSummary{}
	for rows.Next() {
		var s model.SessionSummary
		if err := rows.Scan(&s.SessionID, &s.Code, &s.CurrentStage, &s.UpdatedAt, &s.PlayerCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}
