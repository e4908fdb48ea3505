package repository

import (
	"context"
	"partyquest/internal/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EnemyRepo interface {
	GetBySlug(ctx context.Context, slug string) (*model.EnemyTemplate, error)
	Upsert(ctx context.Context, tmpl *model.EnemyTemplate) error
}

type enemyRepo struct {
	collection *mongo.Collection
}

func NewEnemyRepo(db *mongo.Database) EnemyRepo {
	return &enemyRepo{
		collection: db.Collection(EnemiesCollection),
	}
}

func (r *enemyRepo) GetBySlug(ctx context.Context, slug string) (*model.EnemyTemplate, error) {
	var tmpl model.EnemyTemplate
	err := r.collection.FindOne(ctx, bson.M{"slug": slug}).Decode(&tmpl)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// Upsert keys templates by slug. An existing document keeps its _id.
func (r *enemyRepo) Upsert(ctx context.Context, tmpl *model.EnemyTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"slug": tmpl.Slug},
		bson.M{
			"$set": bson.M{
				"name":       tmpl.Name,
				"baseHp":     tmpl.BaseHP,
				"baseAttack": tmpl.BaseAttack,
				"image":      tmpl.Image,
			},
			"$setOnInsert": bson.M{"_id": tmpl.ID},
		},
		opts,
	)
	return err
}
