package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trainlink/trainlink/internal/domain"
	"github.com/trainlink/trainlink/internal/middleware"
	"github.com/trainlink/trainlink/internal/service"
)

type AuthHandler struct {
	authService  *service.AuthService
	tokenService *service.TokenService
	userRepo     domain.UserRepository
}

func NewAuthHandler(
	authService *service.AuthService,
	tokenService *service.TokenService,
	userRepo domain.UserRepository,
) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenService: tokenService,
		userRepo:     userRepo,
	}
}

// Register POST /v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	resp, err := h.authService.Register(c.UserContext(), req, c.Get("User-Agent"), c.IP())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Login POST /v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	resp, err := h.authService.Login(c.UserContext(), req.Email, req.Password, c.Get("User-Agent"), c.IP())
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// Refresh POST /v1/auth/refresh
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "refresh_token is required"})
	}

	tokens, err := h.tokenService.RefreshAccessToken(c.UserContext(), req.RefreshToken, c.Get("User-Agent"), c.IP())
	if err != nil {
		return err
	}
	return c.JSON(tokens)
}

// Logout POST /v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "refresh_token is required"})
	}

	if err := h.tokenService.RevokeRefreshToken(c.UserContext(), req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "logged out"})
}

// Me GET /v1/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.userRepo.GetByID(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(user)
}
