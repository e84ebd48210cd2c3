package repository

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/trainlink/trainlink/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMessageRepository implements domain.MessageRepository. Message
// ids are ULIDs so ids sort in creation order within a conversation.
type MongoMessageRepository struct {
	collection *mongo.Collection
	entropy    *ulid.MonotonicEntropy
}

func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	coll := db.Collection("messages")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read", Value: 1}}},
	})

	return &MongoMessageRepository{
		collection: coll,
		entropy:    ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (r *MongoMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.ID = ulid.MustNew(ulid.Timestamp(msg.CreatedAt), r.entropy).String()

	if _, err := r.collection.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *MongoMessageRepository) GetByConversation(ctx context.Context, conversationID string, limit int64) ([]*domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*domain.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	// Reverse to chronological order for the caller.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MongoMessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"receiver_id":     readerID,
			"read":            false,
		},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return result.ModifiedCount, nil
}

// GetConversationSummaries derives the conversation list from the
// messages collection: newest message and unread count per
// conversation id, most recently active first.
func (r *MongoMessageRepository) GetConversationSummaries(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": bson.A{
				bson.M{"sender_id": userID},
				bson.M{"receiver_id": userID},
			},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$conversation_id",
			"last_message": bson.M{"$first": "$$ROOT"},
			"unread_count": bson.M{"$sum": bson.M{
				"$cond": bson.A{
					bson.M{"$and": bson.A{
						bson.M{"$eq": bson.A{"$receiver_id", userID}},
						bson.M{"$eq": bson.A{"$read", false}},
					}},
					1,
					0,
				},
			}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message.created_at", Value: -1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ConversationID string         `bson:"_id"`
		LastMessage    domain.Message `bson:"last_message"`
		UnreadCount    int            `bson:"unread_count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	summaries := make([]*domain.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		last := row.LastMessage
		peerID := last.SenderID
		if peerID == userID {
			peerID = last.ReceiverID
		}
		summaries = append(summaries, &domain.ConversationSummary{
			ConversationID: row.ConversationID,
			PeerID:         peerID,
			LastMessage:    &last,
			UnreadCount:    row.UnreadCount,
		})
	}
	return summaries, nil
}
