package handler

import (
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/trainlink/trainlink/internal/domain"
	"github.com/trainlink/trainlink/internal/realtime"
	"github.com/trainlink/trainlink/internal/service"
)

// sendBufferSize bounds the per-connection outbound queue. A client
// that stops reading loses events rather than stalling the sender.
const sendBufferSize = 32

// WSHandler upgrades authenticated connections and runs the per-socket
// event loop: presence, conversation rooms, chat relay and workout
// alerts.
type WSHandler struct {
	jwtSecret   string
	chatService *service.ChatService
	planService *service.PlanService
	registry    *realtime.Registry
	rooms       *realtime.RoomRouter
	dispatcher  *realtime.Dispatcher
}

func NewWSHandler(
	jwtSecret string,
	chatService *service.ChatService,
	planService *service.PlanService,
	registry *realtime.Registry,
	rooms *realtime.RoomRouter,
	dispatcher *realtime.Dispatcher,
) *WSHandler {
	return &WSHandler{
		jwtSecret:   jwtSecret,
		chatService: chatService,
		planService: planService,
		registry:    registry,
		rooms:       rooms,
		dispatcher:  dispatcher,
	}
}

// Upgrade gates the websocket route: the handshake carries the access
// token as a query parameter because browsers cannot set headers on
// websocket requests.
func (h *WSHandler) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		claims, err := service.VerifyAccessToken(c.Query("token"), h.jwtSecret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals("wsUserID", claims.UserID)
		c.Locals("wsUserName", claims.Name)
		return c.Next()
	}
}

// Handle runs one connection until the peer disconnects.
func (h *WSHandler) Handle() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("wsUserID").(string)
		userName, _ := conn.Locals("wsUserName").(string)
		if userID == "" {
			conn.Close()
			return
		}

		client := newWSClient(userID, conn)
		go client.writeLoop()

		h.registry.Register(userID, client)
		client.Send(realtime.Envelope{
			Event: realtime.EventConnectionEstablished,
			Data:  fiber.Map{"userId": userID, "online": h.registry.Online()},
		})
		h.registry.Broadcast(realtime.Envelope{
			Event: realtime.EventUserStatus,
			Data:  realtime.UserStatusPayload{UserID: userID, Status: "online"},
		})

		h.readLoop(client, userName)

		h.rooms.LeaveAll(client)
		h.registry.Unregister(userID, client)
		client.Close()

		// A replacement connection may already be registered; only a
		// real departure is announced.
		if !h.registry.IsOnline(userID) {
			h.registry.Broadcast(realtime.Envelope{
				Event: realtime.EventUserStatus,
				Data:  realtime.UserStatusPayload{UserID: userID, Status: "offline"},
			})
		}
	})
}

func (h *WSHandler) readLoop(client *wsClient, userName string) {
	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		h.dispatch(client, userName, frame.Event, frame.Data)
	}
}

// dispatch handles one inbound frame. A malformed or failing event is
// dropped; it must never take the connection down.
func (h *WSHandler) dispatch(client *wsClient, userName, event string, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ws: recovered from %s handler: %v", event, r)
		}
	}()

	ctx := client.ctx()

	switch event {
	case realtime.EventUserConnected:
		// Explicit presence re-announce; registration already happened
		// during the upgrade.
		h.registry.Broadcast(realtime.Envelope{
			Event: realtime.EventUserStatus,
			Data:  realtime.UserStatusPayload{UserID: client.UserID(), Status: "online"},
		})

	case realtime.EventConversationJoin:
		var payload struct {
			ConversationID string `json:"conversationId"`
		}
		if json.Unmarshal(data, &payload) != nil {
			return
		}
		if !h.chatService.CanAccessConversation(client.UserID(), payload.ConversationID) {
			return
		}
		h.rooms.Join(payload.ConversationID, client)

	case realtime.EventConversationLeave:
		var payload struct {
			ConversationID string `json:"conversationId"`
		}
		if json.Unmarshal(data, &payload) != nil {
			return
		}
		h.rooms.Leave(payload.ConversationID, client)

	case realtime.EventMessageSend:
		var payload struct {
			ReceiverID string `json:"receiverId"`
			Content    string `json:"content"`
		}
		if json.Unmarshal(data, &payload) != nil {
			return
		}
		msg, err := h.chatService.SendMessage(ctx, client.UserID(), payload.ReceiverID, payload.Content)
		if err != nil {
			log.Printf("ws: message:send from %s failed: %v", client.UserID(), err)
			return
		}
		FanOutMessage(h.rooms, h.dispatcher, msg, userName, client)

	case realtime.EventUserTyping:
		var payload struct {
			ConversationID string `json:"conversationId"`
		}
		if json.Unmarshal(data, &payload) != nil {
			return
		}
		if !h.chatService.CanAccessConversation(client.UserID(), payload.ConversationID) {
			return
		}
		h.rooms.Typing(payload.ConversationID, client.UserID(), client)

	case realtime.EventMessageRead:
		var payload struct {
			ConversationID string `json:"conversationId"`
		}
		if json.Unmarshal(data, &payload) != nil {
			return
		}
		if _, err := h.chatService.MarkRead(ctx, client.UserID(), payload.ConversationID); err != nil {
			log.Printf("ws: message:read from %s failed: %v", client.UserID(), err)
			return
		}
		h.rooms.Broadcast(payload.ConversationID, realtime.Envelope{
			Event: realtime.EventMessageRead,
			Data:  fiber.Map{"conversationId": payload.ConversationID, "readerId": client.UserID()},
		}, client)

	case realtime.EventWorkoutCompleted:
		// The completion itself is submitted over REST; this frame only
		// triggers the trainer's realtime alert.
		var payload struct {
			PlanID string `json:"planId"`
		}
		if json.Unmarshal(data, &payload) != nil {
			return
		}
		plan, err := h.planService.GetPlan(ctx, client.UserID(), domain.RoleClient, payload.PlanID)
		if err != nil {
			return
		}
		if trainer, ok := h.registry.Lookup(plan.PTID); ok {
			trainer.Send(realtime.Envelope{
				Event: realtime.EventWorkoutCompleted,
				Data:  fiber.Map{"clientName": userName, "planName": plan.Title},
			})
		}
		h.dispatcher.NotifyWorkoutCompleted(plan.PTID, userName, plan.Title)
	}
}
