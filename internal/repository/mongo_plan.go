package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/trainlink/trainlink/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPlanRepository implements domain.PlanRepository
type MongoPlanRepository struct {
	collection *mongo.Collection
}

func NewMongoPlanRepository(db *mongo.Database) *MongoPlanRepository {
	coll := db.Collection("training_plans")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "client_id", Value: 1}}},
		{Keys: bson.D{{Key: "pt_id", Value: 1}}},
		{Keys: bson.D{{Key: "completions.date", Value: -1}}},
	})

	return &MongoPlanRepository{collection: coll}
}

func (r *MongoPlanRepository) Create(ctx context.Context, plan *domain.TrainingPlan) error {
	plan.ID = ""
	plan.CreatedAt = time.Now()
	plan.UpdatedAt = plan.CreatedAt

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		plan.ID = oid.Hex()
	}
	return nil
}

func (r *MongoPlanRepository) GetByID(ctx context.Context, id string) (*domain.TrainingPlan, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid plan id %q: %w", id, domain.ErrValidation)
	}

	var plan domain.TrainingPlan
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&plan); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (r *MongoPlanRepository) Update(ctx context.Context, plan *domain.TrainingPlan) error {
	oid, err := primitive.ObjectIDFromHex(plan.ID)
	if err != nil {
		return fmt.Errorf("invalid plan id %q: %w", plan.ID, domain.ErrValidation)
	}

	plan.UpdatedAt = time.Now()
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"title":       plan.Title,
		"day_of_week": plan.DayOfWeek,
		"exercises":   plan.Exercises,
		"updated_at":  plan.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoPlanRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid plan id %q: %w", id, domain.ErrValidation)
	}
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoPlanRepository) GetByClient(ctx context.Context, clientID string) ([]*domain.TrainingPlan, error) {
	return r.find(ctx, bson.M{"client_id": clientID})
}

func (r *MongoPlanRepository) GetByPT(ctx context.Context, ptID string) ([]*domain.TrainingPlan, error) {
	return r.find(ctx, bson.M{"pt_id": ptID})
}

func (r *MongoPlanRepository) GetAll(ctx context.Context) ([]*domain.TrainingPlan, error) {
	return r.find(ctx, bson.M{})
}

// AppendCompletion appends atomically so concurrent submissions never
// clobber each other's history entries.
func (r *MongoPlanRepository) AppendCompletion(ctx context.Context, planID string, completion domain.Completion) error {
	oid, err := primitive.ObjectIDFromHex(planID)
	if err != nil {
		return fmt.Errorf("invalid plan id %q: %w", planID, domain.ErrValidation)
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"completions": completion},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to append completion: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoPlanRepository) find(ctx context.Context, filter bson.M) ([]*domain.TrainingPlan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "day_of_week", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer cursor.Close(ctx)

	var plans []*domain.TrainingPlan
	if err := cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}
