package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/citylistings/listing-service/internal/platform/logger"
)

// NewRequestLogger logs one line per request with method, path, status and
// latency.
func NewRequestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		log.Info("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		)
		return err
	}
}
