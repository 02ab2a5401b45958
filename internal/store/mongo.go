package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sanadhr/askhr-backend/internal/models"
)

// MongoStore is the append-only results store: completed answers and risk
// analyses, scoped by tenant. Records are inserted once under a fresh
// request id and never updated.
type MongoStore struct {
	answers  *mongo.Collection
	analyses *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		answers:  db.Collection("answers"),
		analyses: db.Collection("analyses"),
	}
}

func (s *MongoStore) InsertAnswer(ctx context.Context, rec *models.AnswerRecord) (string, error) {
	rec.CreatedAt = time.Now()
	res, err := s.answers.InsertOne(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("mongo insert answer: %w", err)
	}
	oid := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *MongoStore) InsertAnalysis(ctx context.Context, result *models.RiskResult) (string, error) {
	result.CreatedAt = time.Now()
	res, err := s.analyses.InsertOne(ctx, result)
	if err != nil {
		return "", fmt.Errorf("mongo insert analysis: %w", err)
	}
	oid := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *MongoStore) ListAnswers(ctx context.Context, tenantID string) ([]models.AnswerRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.answers.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recs []models.AnswerRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *MongoStore) ListAnalyses(ctx context.Context, tenantID string) ([]models.RiskResult, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.analyses.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var results []models.RiskResult
	if err := cur.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *MongoStore) GetAnswer(ctx context.Context, tenantID, id string) (*models.AnswerRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	var rec models.AnswerRecord
	if err := s.answers.FindOne(ctx, bson.M{"_id": oid, "tenant_id": tenantID}).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) GetAnalysis(ctx context.Context, tenantID, id string) (*models.RiskResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	var result models.RiskResult
	if err := s.analyses.FindOne(ctx, bson.M{"_id": oid, "tenant_id": tenantID}).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
