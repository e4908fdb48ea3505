package repository

import (
	"context"
	"partyquest/internal/model"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PlayerRepo interface {
	Create(ctx context.Context, player *model.Player) error
	CountBySession(ctx context.Context, sessionID string) (int, error)
	GetBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.Player, error)
	ListBySession(ctx context.Context, sessionID string) ([]*model.Player, error)
	SetCharacter(ctx context.Context, sessionID, userID, characterID string) (*model.Player, error)
	SetHealth(ctx context.Context, sessionID, userID string, hp int) (*model.Player, error)
	Remove(ctx context.Context, sessionID, userID string) (bool, error)
}

type playerRepo struct {
	collection *mongo.Collection
}

func NewPlayerRepo(db *mongo.Database) PlayerRepo {
	return &playerRepo{
		collection: db.Collection(PlayersCollection),
	}
}

func (r *playerRepo) Create(ctx context.Context, player *model.Player) error {
	if player.ID == "" {
		player.ID = uuid.NewString()
	}
	if player.JoinedAt.IsZero() {
		player.JoinedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, player)
	return err
}

func (r *playerRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"sessionId": sessionID})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *playerRepo) GetBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.Player, error) {
	var player model.Player
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID, "userId": userID}).Decode(&player)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (r *playerRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Player, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	players := []*model.Player{}
	if err := cursor.All(ctx, &players); err != nil {
		return nil, err
	}
	return players, nil
}

func (r *playerRepo) SetCharacter(ctx context.Context, sessionID, userID, characterID string) (*model.Player, error) {
	return r.updateOne(ctx, sessionID, userID, bson.M{"characterId": characterID})
}

func (r *playerRepo) SetHealth(ctx context.Context, sessionID, userID string, hp int) (*model.Player, error) {
	return r.updateOne(ctx, sessionID, userID, bson.M{"currentHp": hp})
}

func (r *playerRepo) Remove(ctx context.Context, sessionID, userID string) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"sessionId": sessionID, "userId": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *playerRepo) updateOne(ctx context.Context, sessionID, userID string, set bson.M) (*model.Player, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var player model.Player
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"sessionId": sessionID, "userId": userID},
		bson.M{"$set": set},
		opts,
	).Decode(&player)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}
