package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// HeaderAPIKey is accepted in place of an Authorization bearer token.
const HeaderAPIKey = "X-API-Key"

// APIKeyAuth protects the control routes with one shared key. Clients
// send it as "Authorization: Bearer <key>" or in X-API-Key. An empty key
// disables the check.
func APIKeyAuth(key string) fiber.Handler {
	if key == "" {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	want := hashAPIKey(key)

	return func(c *fiber.Ctx) error {
		apiKey := extractBearerToken(c)
		if apiKey == "" {
			apiKey = strings.TrimSpace(c.Get(HeaderAPIKey))
		}
		if apiKey == "" {
			return domain.ErrUnauthorized
		}

		// compare digests so the comparison time does not depend on length
		got := hashAPIKey(apiKey)
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			return domain.ErrUnauthorized
		}

		return c.Next()
	}
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if auth == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func hashAPIKey(apiKey string) [sha256.Size]byte {
	return sha256.Sum256([]byte(apiKey))
}
