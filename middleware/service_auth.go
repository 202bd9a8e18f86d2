// middleware/service_auth.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ServiceAuthMiddleware validates the shared service token on mutating routes.
// The trigger collaborator sends it either as a Bearer token or via
// X-Service-Token; public read routes skip this middleware entirely.
func ServiceAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("LEDGER_SERVICE_TOKEN")
	if expectedToken == "" {
		log.Fatal("❌ LEDGER_SERVICE_TOKEN is not set — service cannot authenticate the trigger source")
	}

	return func(c *fiber.Ctx) error {
		token := c.Get("X-Service-Token")
		if token == "" {
			authHeader := c.Get("Authorization")
			if authHeader == "" {
				log.Printf("🚫 [SERVICE_AUTH] Missing service token for %s", c.Path())
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "service authentication token missing",
				})
			}
			token = strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				// no "Bearer " prefix — try raw value
				token = authHeader
			}
		}

		if token != expectedToken {
			log.Printf("❌ [SERVICE_AUTH] Invalid token for %s (got prefix: %.10s...)", c.Path(), token)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid service authentication token",
			})
		}

		return c.Next()
	}
}
