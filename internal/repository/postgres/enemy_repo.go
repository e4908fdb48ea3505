package postgres

import (
	"context"
	"errors"
	"partyquest/internal/model"
	"partyquest/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type enemyRepo struct {
	pool *pgxpool.Pool
}

func NewEnemyRepo(pool *pgxpool.Pool) repository.EnemyRepo {
	return &enemyRepo{pool: pool}
}

func (r *enemyRepo) GetBySlug(ctx context.Context, slug string) (*model.EnemyTemplate, error) {
	var t model.EnemyTemplate
	err := r.pool.QueryRow(ctx, `
		SELECT id, slug, name, base_hp, base_attack, image
		FROM enemy_data WHERE slug = $1`, slug).
		Scan(&t.ID, &t.Slug, &t.Name, &t.BaseHP, &t.BaseAttack, &t.Image)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *enemyRepo) Upsert(ctx context.Context, t *model.EnemyTemplate) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO enemy_data (id, slug, name, base_hp, base_attack, image)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, base_hp = EXCLUDED.base_hp,
		    base_attack = EXCLUDED.base_attack, image = EXCLUDED.image`,
		t.ID, t.Slug, t.Name, t.BaseHP, t.BaseAttack, t.Image)
	return err
}
