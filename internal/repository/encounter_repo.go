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

type EncounterRepo interface {
	GetByID(ctx context.Context, id string) (*model.Encounter, error)
	GetBySessionAndSlug(ctx context.Context, sessionID, slug string) (*model.Encounter, error)
	// FindOrCreate inserts enc unless an encounter already exists for its
	// (SessionID, EnemySlug). It returns the stored row and whether this call created it.
	FindOrCreate(ctx context.Context, enc *model.Encounter) (*model.Encounter, bool, error)
	// SetHealth writes hp and returns the encounter as it was before the write.
	// hp <= 0 stores 0 and marks the encounter defeated.
	SetHealth(ctx context.Context, id string, hp int) (*model.Encounter, error)
}

type encounterRepo struct {
	collection *mongo.Collection
}

func NewEncounterRepo(db *mongo.Database) EncounterRepo {
	return &encounterRepo{
		collection: db.Collection(EncountersCollection),
	}
}

func (r *encounterRepo) GetByID(ctx context.Context, id string) (*model.Encounter, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *encounterRepo) GetBySessionAndSlug(ctx context.Context, sessionID, slug string) (*model.Encounter, error) {
	return r.findOne(ctx, bson.M{"sessionId": sessionID, "enemySlug": slug})
}

func (r *encounterRepo) FindOrCreate(ctx context.Context, enc *model.Encounter) (*model.Encounter, bool, error) {
	if enc.ID == "" {
		enc.ID = uuid.NewString()
	}
	if enc.CreatedAt.IsZero() {
		enc.CreatedAt = time.Now()
	}

	filter := bson.M{"sessionId": enc.SessionID, "enemySlug": enc.EnemySlug}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":       enc.ID,
		"enemyId":   enc.EnemyID,
		"currentHp": enc.CurrentHP,
		"maxHp":     enc.MaxHP,
		"isAlive":   enc.IsAlive,
		"createdAt": enc.CreatedAt,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored model.Encounter
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced past the filter; the unique index kept one.
		existing, err := r.GetBySessionAndSlug(ctx, enc.SessionID, enc.EnemySlug)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return &stored, stored.ID == enc.ID, nil
}

func (r *encounterRepo) SetHealth(ctx context.Context, id string, hp int) (*model.Encounter, error) {
	set := bson.M{"currentHp": hp}
	if hp <= 0 {
		set = bson.M{"currentHp": 0, "isAlive": false}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before model.Encounter
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&before)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &before, nil
}

func (r *encounterRepo) findOne(ctx context.Context, filter bson.M) (*model.Encounter, error) {
	var enc model.Encounter
	err := r.collection.FindOne(ctx, filter).Decode(&enc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &enc, nil
}
