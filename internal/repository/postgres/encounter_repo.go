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

const encounterColumns = `id, session_id, enemy_slug, enemy_id, current_hp, max_hp, is_alive, created_at`

type encounterRepo struct {
	pool *pgxpool.Pool
}

func NewEncounterRepo(pool *pgxpool.Pool) repository.EncounterRepo {
	return &encounterRepo{pool: pool}
}

func (r *encounterRepo) GetByID(ctx context.Context, id string) (*model.Encounter, error) {
	return scanEncounter(r.pool.QueryRow(ctx,
		`SELECT `+encounterColumns+` FROM room_encounters WHERE id = $1`, id))
}

func (r *encounterRepo) GetBySessionAndSlug(ctx context.Context, sessionID, slug string) (*model.Encounter, error) {
	return scanEncounter(r.pool.QueryRow(ctx, `
		SELECT `+encounterColumns+` FROM room_encounters
		WHERE session_id = $1 AND enemy_slug = $2`, sessionID, slug))
}

func (r *encounterRepo) FindOrCreate(ctx context.Context, enc *model.Encounter) (*model.Encounter, bool, error) {
	if enc.ID == "" {
		enc.ID = uuid.NewString()
	}
	if enc.CreatedAt.IsZero() {
		enc.CreatedAt = time.Now()
	}

	inserted, err := scanEncounter(r.pool.QueryRow(ctx, `
		INSERT INTO room_encounters (`+encounterColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, enemy_slug) DO NOTHING
		RETURNING `+encounterColumns,
		enc.ID, enc.SessionID, enc.EnemySlug, enc.EnemyID, enc.CurrentHP, enc.MaxHP, enc.IsAlive, enc.CreatedAt))
	if err != nil {
		return nil, false, err
	}
	if inserted != nil {
		return inserted, true, nil
	}

	existing, err := r.GetBySessionAndSlug(ctx, enc.SessionID, enc.EnemySlug)
	return existing, false, err
}

func (r *encounterRepo) SetHealth(ctx context.Context, id string, hp int) (*model.Encounter, error) {
	var before *model.Encounter
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		// Row lock serializes concurrent writers so each sees the previous writer's result.
		before, err = scanEncounter(tx.QueryRow(ctx,
			`SELECT `+encounterColumns+` FROM room_encounters WHERE id = $1 FOR UPDATE`, id))
		if err != nil || before == nil {
			return err
		}
		if hp <= 0 {
			_, err = tx.Exec(ctx,
				`UPDATE room_encounters SET current_hp = 0, is_alive = FALSE WHERE id = $1`, id)
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE room_encounters SET current_hp = $2 WHERE id = $1`, id, hp)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return before, nil
}

func scanEncounter(row pgx.Row) (*model.Encounter, error) {
	var e model.Encounter
	err := row.Scan(&e.ID, &e.SessionID, &e.EnemySlug, &e.EnemyID, &e.CurrentHP, &e.MaxHP, &e.IsAlive, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
