package postgres

import (
	"context"
	"errors"
	"partyquest/internal/model"
	"partyquest/internal/repository"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const playerColumns = `id, session_id, user_id, character_id, current_hp, max_hp, joined_at`

type playerRepo struct {
	pool *pgxpool.Pool
}

func NewPlayerRepo(pool *pgxpool.Pool) repository.PlayerRepo {
	return &playerRepo{pool: pool}
}

func (r *playerRepo) Create(ctx context.Context, p *model.Player) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO room_players (`+playerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.SessionID, p.UserID, p.CharacterID, p.CurrentHP, p.MaxHP, p.JoinedAt)
	return err
}

func (r *playerRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM room_players WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}

func (r *playerRepo) GetBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.Player, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+playerColumns+` FROM room_players
		WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	return scanPlayer(row)
}

func (r *playerRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Player, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+playerColumns+` FROM room_players
		WHERE session_id = $1 ORDER BY joined_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []*model.Player{}
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.CharacterID, &p.CurrentHP, &p.MaxHP, &p.JoinedAt); err != nil {
			return nil, err
		}
		players = append(players, &p)
	}
	return players, rows.Err()
}

func (r *playerRepo) SetCharacter(ctx context.Context, sessionID, userID, characterID string) (*model.Player, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE room_players SET character_id = $3
		WHERE session_id = $1 AND user_id = $2
		RETURNING `+playerColumns, sessionID, userID, characterID)
	return scanPlayer(row)
}

func (r *playerRepo) SetHealth(ctx context.Context, sessionID, userID string, hp int) (*model.Player, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE room_players SET current_hp = $3
		WHERE session_id = $1 AND user_id = $2
		RETURNING `+playerColumns, sessionID, userID, hp)
	return scanPlayer(row)
}

func (r *playerRepo) Remove(ctx context.Context, sessionID, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM room_players WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanPlayer(row pgx.Row) (*model.Player, error) {
	var p model.Player
	err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.CharacterID, &p.CurrentHP, &p.MaxHP, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
