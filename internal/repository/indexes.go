package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	SessionsCollection   = "room_sessions"
	PlayersCollection    = "room_players"
	EncountersCollection = "room_encounters"
	EnemiesCollection    = "enemy_data"
)

// EnsureIndexes creates the indexes the repos rely on. The unique
// (sessionId, enemySlug) index is what makes encounter creation idempotent,
// so failing to build it is an error rather than a warning.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.SugaredLogger) error {
	sessions := db.Collection(SessionsCollection)
	players := db.Collection(PlayersCollection)
	encounters := db.Collection(EncountersCollection)
	enemies := db.Collection(EnemiesCollection)

	if err := createIndex(ctx, encounters, bson.D{
		{Key: "sessionId", Value: 1},
		{Key: "enemySlug", Value: 1},
	}, true); err != nil {
		return err
	}
	if err := createIndex(ctx, players, bson.D{
		{Key: "sessionId", Value: 1},
		{Key: "userId", Value: 1},
	}, true); err != nil {
		return err
	}

	// lookup indexes
	optional := []struct {
		coll   *mongo.Collection
		keys   bson.D
		unique bool
	}{
		{enemies, bson.D{{Key: "slug", Value: 1}}, true},
		{sessions, bson.D{{Key: "code", Value: 1}}, false},
		{players, bson.D{{Key: "userId", Value: 1}}, false},
	}
	for _, idx := range optional {
		if err := createIndex(ctx, idx.coll, idx.keys, idx.unique); err != nil {
			logger.Warnw("failed to create index", "collection", idx.coll.Name(), "error", err)
		}
	}

	logger.Infow("mongo indexes ensured", "database", db.Name())
	return nil
}

func createIndex(ctx context.Context, coll *mongo.Collection, keys bson.D, unique bool) error {
	opts := options.Index().SetUnique(unique)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts})
	return err
}
