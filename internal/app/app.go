// Package app opens the configured stores and hands them to the binaries.
package app

import (
	"context"
	"fmt"
	"partyquest/internal/cache"
	"partyquest/internal/config"
	"partyquest/internal/repository"
	"partyquest/internal/repository/memory"
	"partyquest/internal/repository/postgres"
	"partyquest/internal/service"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	Sessions   repository.SessionRepo
	Players    repository.PlayerRepo
	Encounters repository.EncounterRepo
	Enemies    repository.EnemyRepo
	RoomState  service.RoomStateStore

	memoryRooms *cache.MemoryRoomStateStore
	closers     []func(context.Context)
	logger      *zap.SugaredLogger
}

// Open connects the Persistent Store selected by STORE_DRIVER and the
// RoomState backend selected by ROOM_STATE_BACKEND. With Redis configured,
// enemy templates are read through a Redis cache.
func Open(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	a := &App{logger: logger}
	if err := a.openStore(ctx, cfg); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.openRoomState(ctx, cfg); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.Connect(pingCtx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) { pool.Close() })
		a.Sessions = postgres.NewSessionRepo(pool)
		a.Players = postgres.NewPlayerRepo(pool)
		a.Encounters = postgres.NewEncounterRepo(pool)
		a.Enemies = postgres.NewEnemyRepo(pool)
		a.logger.Infow("connected to postgres")

	case config.StoreMemory:
		store := memory.NewStore()
		a.Sessions = store.Sessions()
		a.Players = store.Players()
		a.Encounters = store.Encounters()
		a.Enemies = store.Enemies()
		a.logger.Warnw("using in-memory store, data is lost on restart")

	default:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		a.closers = append(a.closers, func(ctx context.Context) { client.Disconnect(ctx) })
		if err := client.Ping(pingCtx, nil); err != nil {
			return fmt.Errorf("failed to ping mongodb: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureIndexes(ctx, db, a.logger); err != nil {
			return err
		}
		a.Sessions = repository.NewSessionRepo(db)
		a.Players = repository.NewPlayerRepo(db)
		a.Encounters = repository.NewEncounterRepo(db)
		a.Enemies = repository.NewEnemyRepo(db)
		a.logger.Infow("connected to mongodb", "database", cfg.MongoDatabase)
	}
	return nil
}

func (a *App) openRoomState(ctx context.Context, cfg *config.Config) error {
	if cfg.RoomStateBackend != config.RoomStateRedis {
		a.memoryRooms = cache.NewMemoryRoomStateStore(cfg.RoomStateTTL)
		a.RoomState = a.memoryRooms
		return nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	a.closers = append(a.closers, func(context.Context) { rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	a.RoomState = cache.NewRedisRoomStateStore(rdb, cfg.RoomStateTTL)
	a.Enemies = cache.NewEnemyCache(a.Enemies, rdb)
	a.logger.Infow("connected to redis", "addr", cfg.RedisAddr)
	return nil
}

// RunJanitor sweeps expired in-memory RoomState until ctx is done. Redis
// expires keys on its own, so there it returns immediately.
func (a *App) RunJanitor(ctx context.Context, interval time.Duration) {
	if a.memoryRooms == nil {
		return
	}
	a.memoryRooms.Run(ctx, interval, func(removed int) {
		a.logger.Infow("swept idle room state", "removed", removed)
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}
