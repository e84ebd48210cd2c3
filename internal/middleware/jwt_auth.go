package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trainlink/trainlink/internal/service"
)

// Context keys for storing user info
const (
	UserIDKey   = "userID"
	UserNameKey = "userName"
	RoleKey     = "role"
)

// VerifyToken validates the JWT from the Authorization header and
// stores the claims in the request context.
func VerifyToken(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization token",
			})
		}

		// Extract token (format: "Bearer <token>")
		tokenString := authHeader
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenString = authHeader[7:]
		}

		claims, err := service.VerifyAccessToken(tokenString, jwtSecret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(UserIDKey, claims.UserID)
		c.Locals(UserNameKey, claims.Name)
		c.Locals(RoleKey, claims.Role)

		return c.Next()
	}
}

// AuthorizeRole checks if the user holds one of the required roles
func AuthorizeRole(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(RoleKey).(string)
		if !ok || role == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "No role found in token",
			})
		}

		for _, allowed := range allowedRoles {
			if role == allowed {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":          "Insufficient permissions",
			"required_roles": allowedRoles,
		})
	}
}

// UserID returns the authenticated user's id from the request context.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}

// UserName returns the authenticated user's display name.
func UserName(c *fiber.Ctx) string {
	name, _ := c.Locals(UserNameKey).(string)
	return name
}

// Role returns the authenticated user's role.
func Role(c *fiber.Ctx) string {
	role, _ := c.Locals(RoleKey).(string)
	return role
}
