package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trainlink/trainlink/internal/domain"
	"github.com/trainlink/trainlink/internal/repository"
)

// conversationsCacheTTL bounds staleness of the cached conversation
// list; every write path invalidates eagerly anyway.
const conversationsCacheTTL = 2 * time.Minute

// ChatService persists chat messages and serves conversation views.
// Realtime fan-out (rooms, presence, notifications) is the socket
// layer's job; this service only touches mongo and the redis cache.
type ChatService struct {
	messageRepo domain.MessageRepository
	userRepo    domain.UserRepository
	cache       domain.CacheRepository
}

// NewChatService creates a new chat service. cache may be nil; the
// conversation list is then computed on every call.
func NewChatService(
	messageRepo domain.MessageRepository,
	userRepo domain.UserRepository,
	cache domain.CacheRepository,
) *ChatService {
	return &ChatService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		cache:       cache,
	}
}

// SendMessage persists a message from sender to receiver. The
// conversation id is derived from the pair, never supplied by the
// caller.
func (s *ChatService) SendMessage(ctx context.Context, senderID, receiverID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content is required: %w", domain.ErrValidation)
	}
	if receiverID == senderID {
		return nil, fmt.Errorf("cannot message yourself: %w", domain.ErrValidation)
	}

	if _, err := s.userRepo.GetByID(ctx, receiverID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: domain.ConversationID(senderID, receiverID),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		Read:           false,
		CreatedAt:      time.Now(),
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.invalidateConversations(ctx, senderID, receiverID)
	return msg, nil
}

// Conversation returns the message history between the caller and a
// peer in chronological order. limit <= 0 means no limit.
func (s *ChatService) Conversation(ctx context.Context, userID, peerID string, limit int64) ([]*domain.Message, error) {
	conversationID := domain.ConversationID(userID, peerID)
	return s.messageRepo.GetByConversation(ctx, conversationID, limit)
}

// CanAccessConversation reports whether the user is one of the two
// participants encoded in the conversation id.
func (s *ChatService) CanAccessConversation(userID, conversationID string) bool {
	a, b, ok := domain.ConversationParticipants(conversationID)
	return ok && (a == userID || b == userID)
}

// MarkRead flips every unread message addressed to the reader in the
// conversation and returns how many were updated.
func (s *ChatService) MarkRead(ctx context.Context, readerID, conversationID string) (int64, error) {
	if !s.CanAccessConversation(readerID, conversationID) {
		return 0, domain.ErrForbidden
	}

	updated, err := s.messageRepo.MarkConversationRead(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		a, b, _ := domain.ConversationParticipants(conversationID)
		s.invalidateConversations(ctx, a, b)
	}
	return updated, nil
}

// Conversations returns the caller's conversation list, newest first,
// with peer display names and unread counts. Served from the cache
// when warm.
func (s *ChatService) Conversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	cacheKey := repository.ConversationsKey(userID)
	if s.cache != nil {
		var cached []*domain.ConversationSummary
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	summaries, err := s.messageRepo.GetConversationSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, summary := range summaries {
		if peer, err := s.userRepo.GetByID(ctx, summary.PeerID); err == nil {
			summary.PeerName = peer.Name
		}
	}

	if s.cache != nil {
		// Best-effort; a failed write just means a recompute next time.
		_ = s.cache.Set(ctx, cacheKey, summaries, conversationsCacheTTL)
	}
	return summaries, nil
}

func (s *ChatService) invalidateConversations(ctx context.Context, userIDs ...string) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, repository.ConversationsKey(id))
	}
	_ = s.cache.Delete(ctx, keys...)
}
