package middlewares

import (
	"strings"

	"bytetalk/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//TokenUserID caller id resolved from the token, set c.Locals name
	TokenUserID = "UserID"
)

// JWTMiddleware resolve the caller identity from query, cookie or Authorization header
// unauthenticated calls are rejected before reaching any handler
func JWTMiddleware(cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Query(QueryToken)
		if tokenStr == "" {
			tokenStr = c.Cookies(cookieName)
		}
		if tokenStr == "" {
			tokenStr = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized - No Token Provided",
			})
		}

		claims, err := token.ParseJWT(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized - Invalid Token",
			})
		}

		c.Locals(TokenUserID, claims.UserID)
		return c.Next()
	}
}

// CallerID return the caller id set by JWTMiddleware
func CallerID(c *fiber.Ctx) string {
	id, _ := c.Locals(TokenUserID).(string)
	return id
}
