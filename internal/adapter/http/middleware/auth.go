package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/citylistings/listing-service/internal/platform/logger"
)

// Locals keys populated by the auth middleware.
const (
	LocalsUserID = "userID"
	LocalsEmail  = "userEmail"
)

type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// publicProcedures are reachable without a token. A valid token on a public
// procedure still populates the caller identity, so phone reveals by
// signed-in users are attributed.
var publicProcedures = map[string]bool{
	"listing.getPublicListings": true,
	"listing.getListingById":    true,
	"listing.revealPhone":       true,
	"postcodes.random":          true,
	"postcodes.lookup":          true,
}

// NewAuthMiddleware validates Bearer tokens on /rpc/:procedure routes and
// rejects protected procedures without a verified caller.
func NewAuthMiddleware(jwtSecret string, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		procedure := c.Params("procedure")
		isPublic := publicProcedures[procedure]

		claims, err := parseToken(c.Get(fiber.HeaderAuthorization), jwtSecret)
		if err != nil {
			if isPublic {
				return c.Next()
			}
			log.Warn("auth: rejected request", "procedure", procedure, "error", err.Error())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}

		c.Locals(LocalsUserID, claims.UserID)
		c.Locals(LocalsEmail, claims.Email)
		return c.Next()
	}
}

var errMissingToken = errors.New("missing bearer token")

func parseToken(header, secret string) (*Claims, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, errMissingToken
	}
	raw := strings.TrimPrefix(header, prefix)

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// CallerID returns the authenticated caller, or "" for anonymous requests on
// public procedures.
func CallerID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalsUserID).(string)
	return id
}

func CallerEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(LocalsEmail).(string)
	return email
}
