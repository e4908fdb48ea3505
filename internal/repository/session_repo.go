package repository

import (
	"context"
	"fmt"
	"partyquest/internal/model"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionRepo interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error
	MarkSaved(ctx context.Context, id string, at time.Time) error
	ListSavedByUser(ctx context.Context, userID string) ([]*model.SessionSummary, error)
}

type sessionRepo struct {
	sessions *mongo.Collection
	players  *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		sessions: db.Collection(SessionsCollection),
		players:  db.Collection(PlayersCollection),
	}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	_, err := r.sessions.InsertOne(ctx, session)
	return err
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error {
	_, err := r.sessions.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now()},
	})
	return err
}

func (r *sessionRepo) MarkSaved(ctx context.Context, id string, at time.Time) error {
	res, err := r.sessions.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"isSaved": true, "updatedAt": at},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

func (r *sessionRepo) ListSavedByUser(ctx context.Context, userID string) ([]*model.SessionSummary, error) {
	ids, err := r.players.Distinct(ctx, "sessionId", bson.M{"userId": userID})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.SessionSummary{}, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := r.sessions.Find(ctx, bson.M{
		"_id":     bson.M{"$in": ids},
		"isSaved": true,
		"status":  model.SessionInGame,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}

	summaries := make([]*model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		count, err := r.players.CountDocuments(ctx, bson.M{"sessionId": s.ID})
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, &model.SessionSummary{
			SessionID:    s.ID,
			Code:         s.Code,
			CurrentStage: s.CurrentStage,
			UpdatedAt:    s.UpdatedAt,
			PlayerCount:  int(count),
		})
	}
	return summaries, nil
}
