package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-grader/internal/utils"
)

// JWTProtected returns a middleware that validates HMAC signed bearer tokens.
// The token subject is stored in the "subject" local for rate limiting and logs.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendFailure(c, fiber.StatusUnauthorized, "Unauthorized", "authorization header missing")
		}

		const bearer = "Bearer "
		if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendFailure(c, fiber.StatusUnauthorized, "Unauthorized", "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendFailure(c, fiber.StatusUnauthorized, "Unauthorized", "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendFailure(c, fiber.StatusUnauthorized, "Unauthorized", "invalid token")
		}

		if subject := subjectFromClaims(token.Claims); subject != "" {
			c.Locals("subject", subject)
		}

		return c.Next()
	}
}

// Subject returns the authenticated token subject, if any.
func Subject(c *fiber.Ctx) string {
	if value, ok := c.Locals("subject").(string); ok {
		return value
	}
	return ""
}

func subjectFromClaims(claims jwt.Claims) string {
	mapClaims, ok := claims.(jwt.MapClaims)
	if !ok {
		return ""
	}

	for _, key := range []string{"sub", "user_id", "id"} {
		switch v := mapClaims[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
