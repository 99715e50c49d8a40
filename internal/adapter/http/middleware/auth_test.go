package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citylistings/listing-service/internal/platform/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID, email string) string {
	t.Helper()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/rpc/:procedure", NewAuthMiddleware(testSecret, logger.NewLogger()), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"caller": CallerID(c), "email": CallerEmail(c)})
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	app := newTestApp()

	t.Run("protected procedure rejects anonymous callers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/rpc/listing.getMyListings", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("protected procedure rejects a tampered token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/rpc/listing.getMyListings", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "u1", "u1@example.com")+"x")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("protected procedure accepts a valid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/rpc/listing.getMyListings", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "u1", "u1@example.com"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("public procedure admits anonymous callers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/rpc/listing.getPublicListings", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("public procedure still attributes a signed-in caller", func(t *testing.T) {
		app := fiber.New()
		var captured string
		app.Get("/rpc/:procedure", NewAuthMiddleware(testSecret, logger.NewLogger()), func(c *fiber.Ctx) error {
			captured = CallerID(c)
			return c.SendStatus(fiber.StatusOK)
		})

		req := httptest.NewRequest("GET", "/rpc/listing.revealPhone", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "u7", "u7@example.com"))
		_, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "u7", captured)
	})
}
