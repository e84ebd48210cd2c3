package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trainlink/trainlink/internal/domain"
	"github.com/trainlink/trainlink/internal/middleware"
	"github.com/trainlink/trainlink/internal/realtime"
	"github.com/trainlink/trainlink/internal/service"
)

// ChatHandler serves the REST chat surface. Messages sent over REST get
// the same realtime fan-out as socket sends, so web and socket clients
// stay in sync.
type ChatHandler struct {
	chatService *service.ChatService
	rooms       *realtime.RoomRouter
	registry    *realtime.Registry
	dispatcher  *realtime.Dispatcher
}

func NewChatHandler(
	chatService *service.ChatService,
	rooms *realtime.RoomRouter,
	registry *realtime.Registry,
	dispatcher *realtime.Dispatcher,
) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		rooms:       rooms,
		registry:    registry,
		dispatcher:  dispatcher,
	}
}

// Conversations GET /v1/chat/conversations
func (h *ChatHandler) Conversations(c *fiber.Ctx) error {
	summaries, err := h.chatService.Conversations(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(summaries)
}

// Messages GET /v1/chat/conversations/:peerId/messages?limit=50
func (h *ChatHandler) Messages(c *fiber.Ctx) error {
	messages, err := h.chatService.Conversation(
		c.UserContext(),
		middleware.UserID(c),
		c.Params("peerId"),
		int64(c.QueryInt("limit")),
	)
	if err != nil {
		return err
	}
	return c.JSON(messages)
}

// SendMessage POST /v1/chat/messages
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		ReceiverID string `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	msg, err := h.chatService.SendMessage(c.UserContext(), middleware.UserID(c), req.ReceiverID, req.Content)
	if err != nil {
		return err
	}

	// Sender has no socket in the room for a REST send; exclude their
	// registered connection if they also hold one.
	var senderConn realtime.Client
	if conn, ok := h.registry.Lookup(msg.SenderID); ok {
		senderConn = conn
	}
	FanOutMessage(h.rooms, h.dispatcher, msg, middleware.UserName(c), senderConn)

	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkRead POST /v1/chat/conversations/:conversationId/read
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	updated, err := h.chatService.MarkRead(c.UserContext(), middleware.UserID(c), c.Params("conversationId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// OnlineUsers GET /v1/chat/online
func (h *ChatHandler) OnlineUsers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"online": h.registry.Online()})
}

// FanOutMessage delivers a persisted message to the conversation room
// and, when the receiver is not in the room, pushes a best-effort
// notification instead. Shared by the REST and socket send paths.
func FanOutMessage(
	rooms *realtime.RoomRouter,
	dispatcher *realtime.Dispatcher,
	msg *domain.Message,
	senderName string,
	senderConn realtime.Client,
) {
	rooms.Broadcast(msg.ConversationID, realtime.Envelope{
		Event: realtime.EventMessageNew,
		Data:  msg,
	}, senderConn)

	if !rooms.InRoom(msg.ConversationID, msg.ReceiverID) {
		dispatcher.NotifyNewMessage(msg.ReceiverID, senderName, msg.Content)
	}
}
