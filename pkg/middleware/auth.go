package middleware

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"lifetrack/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	LocalUserID = "userID"
	LocalEmail  = "email"
	LocalRole   = "role"
)

var (
	ErrMissingToken = errors.New("missing authorization token")
	ErrInvalidToken = errors.New("invalid authorization token")
)

// Identify validates the bearer token of c and stores its claims in c.Locals.
func Identify(c *fiber.Ctx, jwtManager *auth.JWTManager) error {
	token := c.Get(fiber.HeaderAuthorization)
	if token == "" {
		return ErrMissingToken
	}

	claims, err := jwtManager.ValidateToken(strings.TrimPrefix(token, "Bearer "))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalEmail, claims.Email)
	c.Locals(LocalRole, claims.Role)
	return nil
}

func AuthMiddleware(jwtManager *auth.JWTManager, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := Identify(c, jwtManager)
		switch {
		case errors.Is(err, ErrMissingToken):
			logger.Debug("Missing authorization token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "No token, authorization denied",
			})
		case err != nil:
			logger.Warn("Invalid token", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Token is not valid",
			})
		}

		return c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(string)
		if !slices.Contains(roles, role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Access denied",
			})
		}
		return c.Next()
	}
}
