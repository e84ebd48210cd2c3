package realtime

import (
	"sync"
	"time"
)

// DefaultTypingWindow is how long a user stays in a conversation's
// typing set after their last user:typing event.
const DefaultTypingWindow = 3 * time.Second

// RoomRouter groups connections by conversation id for targeted
// broadcast and tracks per-conversation typing indicators.
type RoomRouter struct {
	mu           sync.RWMutex
	rooms        map[string]map[Client]struct{}
	typing       map[string]map[string]struct{} // conversationID -> userIDs
	typingWindow time.Duration
}

func NewRoomRouter() *RoomRouter {
	return &RoomRouter{
		rooms:        make(map[string]map[Client]struct{}),
		typing:       make(map[string]map[string]struct{}),
		typingWindow: DefaultTypingWindow,
	}
}

// SetTypingWindow overrides the expiry window. Tests shorten it.
func (r *RoomRouter) SetTypingWindow(d time.Duration) { r.typingWindow = d }

// Join adds the connection to a named room. Multiple connections may
// share a room.
func (r *RoomRouter) Join(conversationID string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[conversationID]; !ok {
		r.rooms[conversationID] = make(map[Client]struct{})
	}
	r.rooms[conversationID][client] = struct{}{}
}

// Leave removes the connection from the room; empty rooms are dropped.
func (r *RoomRouter) Leave(conversationID string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.rooms[conversationID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(r.rooms, conversationID)
		}
	}
}

// LeaveAll removes a disconnecting client from every room it joined.
func (r *RoomRouter) LeaveAll(client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conversationID, members := range r.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(r.rooms, conversationID)
		}
	}
}

// Broadcast delivers an event to every member of the room except the
// sender (the sender already holds optimistic local state). Pass a nil
// except to reach everyone.
func (r *RoomRouter) Broadcast(conversationID string, env Envelope, except Client) {
	r.mu.RLock()
	var targets []Client
	for member := range r.rooms[conversationID] {
		if member != except {
			targets = append(targets, member)
		}
	}
	r.mu.RUnlock()

	for _, member := range targets {
		member.Send(env)
	}
}

// InRoom reports whether any of the user's connections joined the room.
// Used to decide between in-room delivery and a notification.
func (r *RoomRouter) InRoom(conversationID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for member := range r.rooms[conversationID] {
		if member.UserID() == userID {
			return true
		}
	}
	return false
}

// Typing records the user in the conversation's typing set, broadcasts
// the indicator immediately, and schedules removal after the typing
// window. Each event arms a fresh timer; overlapping timers are
// harmless because only presence in the set is observable and removal
// is idempotent.
func (r *RoomRouter) Typing(conversationID, userID string, sender Client) {
	r.mu.Lock()
	if _, ok := r.typing[conversationID]; !ok {
		r.typing[conversationID] = make(map[string]struct{})
	}
	r.typing[conversationID][userID] = struct{}{}
	r.mu.Unlock()

	r.Broadcast(conversationID, Envelope{
		Event: EventUserTyping,
		Data:  TypingPayload{ConversationID: conversationID, UserID: userID},
	}, sender)

	time.AfterFunc(r.typingWindow, func() {
		r.expireTyping(conversationID, userID)
	})
}

func (r *RoomRouter) expireTyping(conversationID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if users, ok := r.typing[conversationID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(r.typing, conversationID)
		}
	}
}

// TypingUsers returns the users currently typing in the conversation.
func (r *RoomRouter) TypingUsers(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.typing[conversationID]))
	for id := range r.typing[conversationID] {
		users = append(users, id)
	}
	return users
}
