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

// MongoUserRepository implements domain.UserRepository
type MongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	coll := db.Collection("users")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "pt_id", Value: 1}}},
	})

	return &MongoUserRepository{collection: coll}
}

func (r *MongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	user.ID = ""
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid.Hex()
	}
	return nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", id, domain.ErrValidation)
	}

	var user domain.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *MongoUserRepository) Update(ctx context.Context, user *domain.User) error {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", user.ID, domain.ErrValidation)
	}

	user.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"name":       user.Name,
		"email":      user.Email,
		"password":   user.Password,
		"role":       user.Role,
		"validated":  user.Validated,
		"pt_id":      user.PTID,
		"updated_at": user.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", id, domain.ErrValidation)
	}
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoUserRepository) GetByRole(ctx context.Context, role string) ([]*domain.User, error) {
	return r.find(ctx, bson.M{"role": role})
}

func (r *MongoUserRepository) GetClientsByPT(ctx context.Context, ptID string) ([]*domain.User, error) {
	return r.find(ctx, bson.M{"role": domain.RoleClient, "pt_id": ptID})
}

func (r *MongoUserRepository) CountClientsByPT(ctx context.Context, ptID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"role": domain.RoleClient, "pt_id": ptID})
	if err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return count, nil
}

func (r *MongoUserRepository) SetValidated(ctx context.Context, ptID string, validated bool) error {
	oid, err := primitive.ObjectIDFromHex(ptID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", ptID, domain.ErrValidation)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "role": domain.RolePT},
		bson.M{"$set": bson.M{"validated": validated, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set validated: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) AssignPT(ctx context.Context, clientID, ptID string) error {
	oid, err := primitive.ObjectIDFromHex(clientID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", clientID, domain.ErrValidation)
	}

	update := bson.M{"$set": bson.M{"pt_id": ptID, "updated_at": time.Now()}}
	if ptID == "" {
		update = bson.M{
			"$unset": bson.M{"pt_id": ""},
			"$set":   bson.M{"updated_at": time.Now()},
		}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to assign pt: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// IncClientCount adjusts the denormalized counter with the store's
// atomic increment. Decrements only match documents with a positive
// count, so the counter floors at zero instead of going negative.
func (r *MongoUserRepository) IncClientCount(ctx context.Context, ptID string, delta int) error {
	oid, err := primitive.ObjectIDFromHex(ptID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", ptID, domain.ErrValidation)
	}

	filter := bson.M{"_id": oid}
	if delta < 0 {
		filter["client_count"] = bson.M{"$gt": 0}
	}

	_, err = r.collection.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"client_count": delta},
		"$set": bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to adjust client count: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) AddPTChangeRequest(ctx context.Context, clientID string, req domain.PTChangeRequest) error {
	return r.pushRequest(ctx, clientID, "pt_change_requests", req)
}

func (r *MongoUserRepository) UpdatePTChangeRequest(ctx context.Context, clientID string, req domain.PTChangeRequest) error {
	oid, err := primitive.ObjectIDFromHex(clientID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", clientID, domain.ErrValidation)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "pt_change_requests.id": req.ID},
		bson.M{"$set": bson.M{"pt_change_requests.$": req, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update pt change request: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RemovePTChangeRequest deletes the request entirely; cancellation is
// a removal, not a terminal state.
func (r *MongoUserRepository) RemovePTChangeRequest(ctx context.Context, clientID, requestID string) error {
	oid, err := primitive.ObjectIDFromHex(clientID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", clientID, domain.ErrValidation)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$pull": bson.M{"pt_change_requests": bson.M{"id": requestID}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to remove pt change request: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) GetPendingPTChangeRequests(ctx context.Context) ([]*domain.User, error) {
	filter := bson.M{
		"pt_change_requests": bson.M{
			"$elemMatch": bson.M{"status": domain.RequestStatusPending},
		},
	}
	return r.find(ctx, filter)
}

func (r *MongoUserRepository) AddClientRequest(ctx context.Context, clientID string, req domain.ClientRequest) error {
	return r.pushRequest(ctx, clientID, "client_requests", req)
}

func (r *MongoUserRepository) UpdateClientRequest(ctx context.Context, clientID string, req domain.ClientRequest) error {
	oid, err := primitive.ObjectIDFromHex(clientID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", clientID, domain.ErrValidation)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "client_requests.id": req.ID},
		bson.M{"$set": bson.M{"client_requests.$": req, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update client request: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) pushRequest(ctx context.Context, userID, field string, req interface{}) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, domain.ErrValidation)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$push": bson.M{field: req},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", field, err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) find(ctx context.Context, filter bson.M) ([]*domain.User, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
