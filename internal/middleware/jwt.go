package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Canvas-Copilot/backend/internal/utils"
)

// JWTProtected returns a middleware that validates JWT bearer tokens. The
// token itself stays opaque to the grading pipeline; it is carried along as
// the task credential unchanged.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
			if sub, err := claims.GetSubject(); err == nil && sub != "" {
				c.Locals("user_id", sub)
			}
		}

		return c.Next()
	}
}

// BearerToken extracts the raw bearer token from the Authorization header, or
// returns "" when absent.
func BearerToken(c *fiber.Ctx) string {
	authorization := c.Get("Authorization")

	const bearer = "bearer "
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return ""
	}

	return strings.TrimSpace(authorization[len(bearer):])
}
