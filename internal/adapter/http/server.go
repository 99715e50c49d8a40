package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/citylistings/listing-service/internal/adapter/http/middleware"
	"github.com/citylistings/listing-service/internal/platform/logger"
)

const serviceName = "listing-service"

// NewServer assembles the Fiber app. Procedures live under /rpc/:procedure;
// queries are GETs, mutations are POSTs.
func NewServer(h *Handler, jwtSecret string, log *logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   serviceName,
		BodyLimit: 64 << 20, // five base64 photos plus headroom
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.NewTracing(serviceName))
	app.Use(middleware.NewRequestLogger(log))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	rpc := app.Group("/rpc/:procedure", middleware.NewAuthMiddleware(jwtSecret, log))

	queries := map[string]fiber.Handler{
		"listing.getPublicListings":      h.GetPublicListings,
		"listing.getListingById":         h.GetListingByID,
		"listing.getMyListings":          h.GetMyListings,
		"listing.getEditableListingById": h.GetEditableListingByID,
		"listingPhoto.list":              h.ListPhotos,
		"postcodes.random":               h.RandomPostcode,
		"postcodes.lookup":               h.LookupPostcode,
	}
	mutations := map[string]fiber.Handler{
		"listing.createListing": h.CreateListing,
		"listing.updateListing": h.UpdateListing,
		"listing.deleteListing": h.DeleteListing,
		"listing.revealPhone":   h.RevealPhone,
		"listingPhoto.upload":   h.UploadPhotos,
		"listingPhoto.delete":   h.DeletePhoto,
		"listingPhoto.setMain":  h.SetMainPhoto,
	}

	rpc.Get("", func(c *fiber.Ctx) error {
		if handler, ok := queries[c.Params("procedure")]; ok {
			return handler(c)
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown procedure"})
	})
	rpc.Post("", func(c *fiber.Ctx) error {
		if handler, ok := mutations[c.Params("procedure")]; ok {
			return handler(c)
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown procedure"})
	})

	return app
}
