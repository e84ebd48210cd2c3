package realtime

// Wire events, client -> server
const (
	EventUserConnected     = "user-connected"
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventMessageSend       = "message:send"
	EventUserTyping        = "user:typing"
	EventMessageRead       = "message:read"
	EventWorkoutCompleted  = "workout:completed"
)

// Wire events, server -> client
const (
	EventConnectionEstablished = "connection-established"
	EventUserStatus            = "user-status"
	EventMessageNew            = "message:new"
	EventNotificationNew       = "notification:new"
)

// Envelope is the JSON frame exchanged over the socket.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// UserStatusPayload announces a presence change to every connection.
type UserStatusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // "online" | "offline"
}

// TypingPayload identifies who is typing in which conversation.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// Client is one authenticated socket connection. Send must not block
// the caller; a send to a dead connection reports false and the
// transport cleans up on its side.
type Client interface {
	UserID() string
	Send(env Envelope) bool
	Close()
}
