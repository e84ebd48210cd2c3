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

// MongoRefreshTokenRepository implements domain.RefreshTokenRepository
type MongoRefreshTokenRepository struct {
	collection *mongo.Collection
}

func NewMongoRefreshTokenRepository(db *mongo.Database) *MongoRefreshTokenRepository {
	coll := db.Collection("refresh_tokens")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// TTL index removes expired tokens automatically.
	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})

	return &MongoRefreshTokenRepository{collection: coll}
}

func (r *MongoRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	token.ID = ""
	token.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		token.ID = oid.Hex()
	}
	return nil
}

func (r *MongoRefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	if err := r.collection.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&token); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return &token, nil
}

func (r *MongoRefreshTokenRepository) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"token_hash": tokenHash},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (r *MongoRefreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID string) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"user_id": userID, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}
