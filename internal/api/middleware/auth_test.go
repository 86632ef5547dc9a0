package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthApp(key string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(discardLogger()),
	})
	app.Use(APIKeyAuth(key))
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	return app
}

func TestAPIKeyAuth(t *testing.T) {
	const validAPIKey = "test-api-key-12345"

	tests := []struct {
		name           string
		authHeader     string
		apiKeyHeader   string
		expectedStatus int
	}{
		{
			name:           "valid bearer token",
			authHeader:     "Bearer " + validAPIKey,
			expectedStatus: 200,
		},
		{
			name:           "valid X-API-Key header",
			apiKeyHeader:   validAPIKey,
			expectedStatus: 200,
		},
		{
			name:           "missing credentials",
			expectedStatus: 401,
		},
		{
			name:           "wrong key",
			authHeader:     "Bearer wrong-key",
			expectedStatus: 401,
		},
		{
			name:           "invalid Authorization format",
			authHeader:     "Basic " + validAPIKey,
			expectedStatus: 401,
		},
		{
			name:           "key prefix is not enough",
			authHeader:     "Bearer test-api-key",
			expectedStatus: 401,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthApp(validAPIKey)

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.apiKeyHeader != "" {
				req.Header.Set(HeaderAPIKey, tt.apiKeyHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == 401 {
				body, _ := io.ReadAll(resp.Body)
				assert.Contains(t, string(body), "UNAUTHORIZED")
			}
		})
	}
}

func TestAPIKeyAuth_DisabledWithoutKey(t *testing.T) {
	app := newAuthApp("")

	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer   abc  ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			app := fiber.New()
			var got string
			app.Get("/", func(c *fiber.Ctx) error {
				got = extractBearerToken(c)
				return nil
			})

			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
