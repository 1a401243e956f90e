package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"

	"github.com/sdcpainting/referral_site/models"
)

const userKey = "user"

// Protected rejects requests without a valid bearer token and stores the
// parsed token in c.Locals("user").
func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		ContextKey:    userKey,
		ErrorHandler:  jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "code": fiber.StatusBadRequest, "message": "Missing or malformed JWT"})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "code": fiber.StatusUnauthorized, "message": "Invalid or expired JWT"})
}

// OptionalAuth attaches the token when a valid one is presented and lets
// anonymous requests through untouched.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || raw == "" {
			return c.Next()
		}
		if token, err := ParseToken(secret, raw); err == nil {
			c.Locals(userKey, token)
		}
		return c.Next()
	}
}

// ParseToken validates an HS256 token outside the middleware chain, e.g. for
// websocket handshakes.
func ParseToken(secret, raw string) (*jwt.Token, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return token, nil
}

func claims(c *fiber.Ctx) (jwt.MapClaims, bool) {
	token, ok := c.Locals(userKey).(*jwt.Token)
	if !ok || token == nil {
		return nil, false
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	return mc, ok
}

// CurrentUserID returns the authenticated user's id, if any.
func CurrentUserID(c *fiber.Ctx) (string, bool) {
	mc, ok := claims(c)
	if !ok {
		return "", false
	}
	id, ok := mc["user_id"].(string)
	return id, ok && id != ""
}

func CurrentRole(c *fiber.Ctx) string {
	mc, ok := claims(c)
	if !ok {
		return ""
	}
	role, _ := mc["role"].(string)
	return role
}

func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentRole(c) != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"code":    fiber.StatusForbidden,
				"message": "Forbidden: Admin access required",
			})
		}
		return c.Next()
	}
}
