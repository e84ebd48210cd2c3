package domain

import (
	"context"
	"strings"
	"time"
)

// Message is one chat message between two users. Messages are immutable
// once created except for the read flag, which only transitions
// false -> true.
type Message struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	ReceiverID     string    `bson:"receiver_id" json:"receiver_id"`
	Content        string    `bson:"content" json:"content"`
	Read           bool      `bson:"read" json:"read"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// ConversationID derives the deterministic conversation identifier for
// an unordered pair of user ids: the two ids sorted and joined with an
// underscore. Order-independent and collision-free for any pair, so no
// stored Conversation entity is needed.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// ConversationParticipants splits a conversation id back into its two
// participant ids. Returns false for malformed ids.
func ConversationParticipants(conversationID string) (string, string, bool) {
	parts := strings.SplitN(conversationID, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ConversationSummary is the derived per-conversation view: the other
// participant, the latest message and the caller's unread count.
type ConversationSummary struct {
	ConversationID string   `json:"conversation_id"`
	PeerID         string   `json:"peer_id"`
	PeerName       string   `json:"peer_name,omitempty"`
	LastMessage    *Message `json:"last_message,omitempty"`
	UnreadCount    int      `json:"unread_count"`
}

// MessageRepository defines persistence operations for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	GetByConversation(ctx context.Context, conversationID string, limit int64) ([]*Message, error)

	// MarkConversationRead flips the read flag on every unread message
	// addressed to readerID in the conversation. Returns the number of
	// messages updated.
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)

	// GetConversationSummaries groups the user's messages by
	// conversation and returns the latest message plus unread count per
	// conversation, most recent first.
	GetConversationSummaries(ctx context.Context, userID string) ([]*ConversationSummary, error)
}
