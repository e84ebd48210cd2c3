package server

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/trainlink/trainlink/internal/config"
	"github.com/trainlink/trainlink/internal/domain"
	"github.com/trainlink/trainlink/internal/handler"
	"github.com/trainlink/trainlink/internal/middleware"
	"github.com/trainlink/trainlink/internal/realtime"
	"github.com/trainlink/trainlink/internal/repository"
	"github.com/trainlink/trainlink/internal/service"
	"github.com/trainlink/trainlink/internal/telemetry"
	"go.mongodb.org/mongo-driver/mongo"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	// Initialize repositories
	userRepo := repository.NewMongoUserRepository(deps.MongoDB)
	planRepo := repository.NewMongoPlanRepository(deps.MongoDB)
	messageRepo := repository.NewMongoMessageRepository(deps.MongoDB)
	refreshTokenRepo := repository.NewMongoRefreshTokenRepository(deps.MongoDB)
	cacheRepo := repository.NewRedisCacheRepository(deps.RedisClient)

	var media domain.MediaStore
	if deps.Config.S3.Endpoint != "" {
		s3Store, err := repository.NewS3MediaStore(context.Background(), deps.Config.S3)
		if err != nil {
			log.Printf("Warning: media store unavailable, proof uploads disabled: %v", err)
		} else {
			media = s3Store
		}
	}

	// Realtime plumbing
	registry := realtime.NewRegistry()
	rooms := realtime.NewRoomRouter()
	dispatcher := realtime.NewDispatcher(registry)

	// Initialize services
	tokenService := service.NewTokenService(deps.Config.JWT, refreshTokenRepo, userRepo)
	authService := service.NewAuthService(userRepo, tokenService)
	planService := service.NewPlanService(planRepo, userRepo, media, dispatcher)
	assignmentService := service.NewAssignmentService(userRepo)
	statsService := service.NewStatsService(planRepo, userRepo)
	chatService := service.NewChatService(messageRepo, userRepo, cacheRepo)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, tokenService, userRepo)
	adminHandler := handler.NewAdminHandler(userRepo, assignmentService, statsService)
	ptHandler := handler.NewPTHandler(userRepo, planService, assignmentService, statsService)
	clientHandler := handler.NewClientHandler(userRepo, planService, assignmentService, statsService)
	chatHandler := handler.NewChatHandler(chatService, rooms, registry, dispatcher)
	wsHandler := handler.NewWSHandler(deps.Config.JWT.Secret, chatService, planService, registry, rooms, dispatcher)

	app := fiber.New(fiber.Config{
		AppName:      "TrainLink API",
		BodyLimit:    int(deps.Config.Server.MaxUploadSizeMB * 1024 * 1024),
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	if deps.Config.OTEL.Enabled {
		app.Use(telemetry.FiberMiddleware())
	}
	app.Use(middleware.IdempotencyMiddleware(deps.RedisClient, 10*time.Minute))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "trainlink",
		})
	})

	v1 := app.Group("/v1")

	// Websocket (token carried as query parameter)
	v1.Get("/ws", wsHandler.Upgrade(), wsHandler.Handle())

	// Auth endpoints (public)
	auth := v1.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/me", middleware.VerifyToken(deps.Config.JWT.Secret), authHandler.Me)

	// ===========================================
	// ADMIN API - /v1/admin/*
	// ===========================================
	admin := v1.Group("/admin")
	admin.Use(middleware.VerifyToken(deps.Config.JWT.Secret))
	admin.Use(middleware.AuthorizeRole(domain.RoleAdmin))

	admin.Get("/users", adminHandler.ListUsers)
	admin.Delete("/users/:id", adminHandler.DeleteUser)
	admin.Get("/pts/pending", adminHandler.ListPendingPTs)
	admin.Post("/pts/:id/validate", adminHandler.ValidatePT)
	admin.Post("/pts/:id/reject", adminHandler.RejectPT)
	admin.Get("/requests/pt-changes", adminHandler.PendingPTChanges)
	admin.Post("/requests/pt-changes/:clientId/:requestId/approve", adminHandler.ApprovePTChange)
	admin.Post("/requests/pt-changes/:clientId/:requestId/reject", adminHandler.RejectPTChange)
	admin.Post("/requests/clients/:clientId/:requestId/approve", adminHandler.ApproveClientRequest)
	admin.Post("/requests/clients/:clientId/:requestId/reject", adminHandler.RejectClientRequest)
	admin.Get("/dashboard", adminHandler.Dashboard)
	admin.Get("/clients/:clientId/history", adminHandler.ClientHistory)

	// ===========================================
	// PT API - /v1/pt/*
	// ===========================================
	pt := v1.Group("/pt")
	pt.Use(middleware.VerifyToken(deps.Config.JWT.Secret))
	pt.Use(middleware.AuthorizeRole(domain.RolePT))

	pt.Get("/clients", ptHandler.ListClients)
	pt.Post("/clients", ptHandler.AddClient)
	pt.Post("/clients/:clientId/request", ptHandler.RequestClient)
	pt.Get("/clients/:clientId/plans", ptHandler.ClientPlans)
	pt.Get("/clients/:clientId/history", ptHandler.ClientHistory)
	pt.Get("/plans", ptHandler.ListPlans)
	pt.Post("/plans", ptHandler.CreatePlan)
	pt.Put("/plans/:id", ptHandler.UpdatePlan)
	pt.Delete("/plans/:id", ptHandler.DeletePlan)
	pt.Get("/dashboard", ptHandler.Dashboard)

	// ===========================================
	// CLIENT API - /v1/client/*
	// ===========================================
	client := v1.Group("/client")
	client.Use(middleware.VerifyToken(deps.Config.JWT.Secret))
	client.Use(middleware.AuthorizeRole(domain.RoleClient))

	client.Get("/plans", clientHandler.ListPlans)
	client.Get("/plans/:id", clientHandler.GetPlan)
	client.Post("/plans/:id/complete", clientHandler.CompletePlan)
	client.Get("/pt", clientHandler.MyPT)
	client.Get("/pts", clientHandler.ListPTs)
	client.Post("/pt-change", clientHandler.RequestPTChange)
	client.Delete("/pt-change/:requestId", clientHandler.CancelPTChange)
	client.Get("/dashboard", clientHandler.Dashboard)
	client.Get("/history", clientHandler.History)

	// ===========================================
	// CHAT API - /v1/chat/* (any authenticated role)
	// ===========================================
	chat := v1.Group("/chat")
	chat.Use(middleware.VerifyToken(deps.Config.JWT.Secret))

	chat.Get("/conversations", chatHandler.Conversations)
	chat.Get("/conversations/:peerId/messages", chatHandler.Messages)
	chat.Post("/conversations/:conversationId/read", chatHandler.MarkRead)
	chat.Post("/messages", chatHandler.SendMessage)
	chat.Get("/online", chatHandler.OnlineUsers)

	return app
}

// customErrorHandler maps domain sentinel errors onto HTTP status codes
// so handlers can return service errors directly.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	case errors.Is(err, domain.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		code = fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotValidated):
		code = fiber.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		code = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrStateConflict), errors.Is(err, domain.ErrEmailTaken):
		code = fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials):
		code = fiber.StatusUnauthorized
	}

	// Unexpected errors carry wrapped data-layer detail; log it but never
	// leak it to the caller.
	if code == fiber.StatusInternalServerError {
		log.Printf("Error: %v", err)
		return c.Status(code).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
