package cache

import (
	"context"
	"encoding/json"
	"partyquest/internal/model"
	"partyquest/internal/repository"
	"time"

	"github.com/redis/go-redis/v9"
)

// EnemyCache is a read-through Redis cache in front of the enemy template
// store. Templates are reference data, so entries are never invalidated on
// read; Upsert drops the cached copy.
type EnemyCache struct {
	repo   repository.EnemyRepo
	client *redis.Client
	ttl    time.Duration
}

var _ repository.EnemyRepo = (*EnemyCache)(nil)

func NewEnemyCache(repo repository.EnemyRepo, client *redis.Client) *EnemyCache {
	return &EnemyCache{
		repo:   repo,
		client: client,
		ttl:    10 * time.Minute,
	}
}

func (c *EnemyCache) key(slug string) string {
	return "enemy:" + slug
}

func (c *EnemyCache) GetBySlug(ctx context.Context, slug string) (*model.EnemyTemplate, error) {
	data, err := c.client.Get(ctx, c.key(slug)).Result()
	if err == nil {
		var tmpl model.EnemyTemplate
		if json.Unmarshal([]byte(data), &tmpl) == nil {
			return &tmpl, nil
		}
	}

	tmpl, err := c.repo.GetBySlug(ctx, slug)
	if err != nil || tmpl == nil {
		return tmpl, err
	}
	c.set(ctx, tmpl)
	return tmpl, nil
}

func (c *EnemyCache) Upsert(ctx context.Context, tmpl *model.EnemyTemplate) error {
	if err := c.repo.Upsert(ctx, tmpl); err != nil {
		return err
	}
	// The store keeps the original id on conflict, so drop rather than overwrite.
	return c.client.Del(ctx, c.key(tmpl.Slug)).Err()
}

// set is best effort; a failed write only costs a store read next time.
func (c *EnemyCache) set(ctx context.Context, tmpl *model.EnemyTemplate) {
	data, err := json.Marshal(tmpl)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.key(tmpl.Slug), data, c.ttl)
}
