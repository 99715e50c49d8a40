package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/citylistings/listing-service/internal/adapter/http/middleware"
	"github.com/citylistings/listing-service/internal/adapter/messaging/nats"
	"github.com/citylistings/listing-service/internal/adapter/repository/cache"
	"github.com/citylistings/listing-service/internal/listing/domain"
	"github.com/citylistings/listing-service/internal/listing/usecase"
	"github.com/citylistings/listing-service/internal/mailer"
	"github.com/citylistings/listing-service/internal/platform/logger"
	"github.com/citylistings/listing-service/internal/postcode"
)

type Handler struct {
	listings  *usecase.ListingUsecase
	photos    *usecase.PhotoUsecase
	cache     *cache.ListingCache
	publisher *nats.Publisher
	mailer    mailer.Mailer
	postcodes *postcode.Client
	logger    *logger.Logger
}

func NewHandler(
	listings *usecase.ListingUsecase,
	photos *usecase.PhotoUsecase,
	listingCache *cache.ListingCache,
	publisher *nats.Publisher,
	m mailer.Mailer,
	postcodes *postcode.Client,
	log *logger.Logger,
) *Handler {
	return &Handler{
		listings:  listings,
		photos:    photos,
		cache:     listingCache,
		publisher: publisher,
		mailer:    m,
		postcodes: postcodes,
		logger:    log,
	}
}

type listingDetailResponse struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Location        string              `json:"location"`
	City            string              `json:"city"`
	PostcodeOutcode string              `json:"postcodeOutcode"`
	PostcodeIncode  string              `json:"postcodeIncode"`
	InCall          bool                `json:"incall"`
	OutCall         bool                `json:"outcall"`
	Phone           string              `json:"phone,omitempty"`
	Pricing         []pricingPayload    `json:"pricing"`
	Photos          []usecase.PhotoView `json:"photos"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// toDetailResponse shapes a detail view for clients. The phone number is
// omitted unless includePhone is set; anonymous readers go through
// listing.revealPhone so every disclosure is audited.
func toDetailResponse(detail *usecase.ListingDetail, includePhone bool) listingDetailResponse {
	l := detail.Listing
	resp := listingDetailResponse{
		ID:              l.ID,
		Title:           l.Title,
		Description:     l.Description,
		Location:        l.Location,
		City:            l.City,
		PostcodeOutcode: l.PostcodeOutcode,
		PostcodeIncode:  l.PostcodeIncode,
		InCall:          l.InCall,
		OutCall:         l.OutCall,
		Pricing:         make([]pricingPayload, 0, len(l.Pricing)),
		Photos:          detail.Photos,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if includePhone {
		resp.Phone = l.Phone
	}
	for _, tier := range l.Pricing {
		resp.Pricing = append(resp.Pricing, pricingPayload{Duration: tier.Duration, Price: tier.Price})
	}
	return resp
}

func (h *Handler) GetPublicListings(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if cards, err := h.cache.GetPublic(ctx); err == nil && cards != nil {
		return c.JSON(cards)
	}

	cards, err := h.listings.GetPublicListings(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.cache.SetPublic(ctx, cards); err != nil {
		h.logger.Warn("handler: failed to cache public listings", "error", err.Error())
	}
	return c.JSON(cards)
}

func (h *Handler) GetListingByID(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Query("id")
	if id == "" {
		return h.badRequest(c, "id is required")
	}

	if detail, err := h.cache.GetDetail(ctx, id); err == nil && detail != nil {
		return c.JSON(toDetailResponse(detail, false))
	}

	detail, err := h.listings.GetListingByID(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.cache.SetDetail(ctx, detail); err != nil {
		h.logger.Warn("handler: failed to cache listing detail", "listing_id", id, "error", err.Error())
	}
	return c.JSON(toDetailResponse(detail, false))
}

func (h *Handler) GetMyListings(c *fiber.Ctx) error {
	cards, err := h.listings.GetMyListings(c.UserContext(), middleware.CallerID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cards)
}

func (h *Handler) GetEditableListingByID(c *fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return h.badRequest(c, "id is required")
	}
	detail, err := h.listings.GetEditableListingByID(c.UserContext(), id, middleware.CallerID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(toDetailResponse(detail, true))
}

func (h *Handler) CreateListing(c *fiber.Ctx) error {
	var req createListingRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "malformed request body")
	}

	ownerID := middleware.CallerID(c)
	listing, err := h.listings.CreateListing(c.UserContext(), ownerID, req.toInput(), req.PhotoIDs, req.MainPhotoID)
	if err != nil {
		return h.fail(c, err)
	}

	h.invalidate(c.UserContext(), listing.ID)
	h.publish(nats.SubjectListingCreated, nats.ListingEvent{
		ListingID: listing.ID, OwnerID: ownerID, Title: listing.Title, City: listing.City,
	})
	h.notifyCreated(middleware.CallerEmail(c), listing.Title)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": listing.ID})
}

func (h *Handler) UpdateListing(c *fiber.Ctx) error {
	var req updateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "malformed request body")
	}
	if req.ID == "" {
		return h.badRequest(c, "id is required")
	}
	newFiles, err := decodeFiles(req.NewFiles)
	if err != nil {
		return h.fail(c, err)
	}

	callerID := middleware.CallerID(c)
	if err := h.listings.UpdateListing(c.UserContext(), req.ID, callerID, req.toInput(), req.KeepImages, newFiles, req.mainSelection()); err != nil {
		return h.fail(c, err)
	}

	h.invalidate(c.UserContext(), req.ID)
	h.publish(nats.SubjectListingUpdated, nats.ListingEvent{ListingID: req.ID, OwnerID: callerID})

	return c.JSON(fiber.Map{"id": req.ID})
}

func (h *Handler) DeleteListing(c *fiber.Ctx) error {
	var req deleteListingRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "malformed request body")
	}
	if req.ID == "" {
		return h.badRequest(c, "id is required")
	}

	callerID := middleware.CallerID(c)
	if err := h.listings.DeleteListing(c.UserContext(), req.ID, callerID); err != nil {
		return h.fail(c, err)
	}

	h.invalidate(c.UserContext(), req.ID)
	h.publish(nats.SubjectListingDeleted, nats.ListingEvent{ListingID: req.ID, OwnerID: callerID})

	return c.JSON(fiber.Map{"deleted": true})
}

func (h *Handler) RevealPhone(c *fiber.Ctx) error {
	var req revealPhoneRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "malformed request body")
	}
	if req.ListingID == "" {
		return h.badRequest(c, "listingId is required")
	}

	phone, err := h.listings.RevealPhone(c.UserContext(), req.ListingID, middleware.CallerID(c), c.IP())
	if err != nil {
		return h.fail(c, err)
	}

	h.publish(nats.SubjectPhoneRevealed, nats.ListingEvent{ListingID: req.ListingID})
	return c.JSON(fiber.Map{"phone": phone})
}

func (h *Handler) UploadPhotos(c *fiber.Ctx) error {
	var req uploadPhotosRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "malformed request body")
	}
	files, err := decodeFiles(req.Files)
	if err != nil {
		return h.fail(c, err)
	}
	if len(files) == 0 {
		return h.badRequest(c, "files is required")
	}

	saved, err := h.photos.UploadPhotos(c.UserContext(), middleware.CallerID(c), req.ListingID, files)
	if err != nil {
		return h.fail(c, err)
	}

	if req.ListingID != "" {
		h.invalidate(c.UserContext(), req.ListingID)
	}

	uploaded := make([]fiber.Map, 0, len(saved))
	for _, p := range saved {
		uploaded = append(uploaded, fiber.Map{"id": p.ID, "isMain": p.IsMain})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"photos": uploaded})
}

func (h *Handler) ListPhotos(c *fiber.Ctx) error {
	views, err := h.photos.ListPhotos(c.UserContext(), middleware.CallerID(c), c.Query("listingId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(views)
}

func (h *Handler) DeletePhoto(c *fiber.Ctx) error {
	var req photoIDRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "malformed request body")
	}
	if req.ID == "" {
		return h.badRequest(c, "id is required")
	}

	photo, err := h.photos.DeletePhoto(c.UserContext(), req.ID, middleware.CallerID(c))
	if err != nil {
		return h.fail(c, err)
	}

	if photo.ListingID != "" {
		h.invalidate(c.UserContext(), photo.ListingID)
		h.publish(nats.SubjectPhotoDeleted, nats.ListingEvent{ListingID: photo.ListingID})
	}
	return c.JSON(fiber.Map{"deleted": true})
}

func (h *Handler) SetMainPhoto(c *fiber.Ctx) error {
	var req photoIDRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "malformed request body")
	}
	if req.ID == "" {
		return h.badRequest(c, "id is required")
	}

	photo, err := h.photos.SetMainPhoto(c.UserContext(), req.ID, middleware.CallerID(c))
	if err != nil {
		return h.fail(c, err)
	}

	if photo.ListingID != "" {
		h.invalidate(c.UserContext(), photo.ListingID)
	}
	return c.JSON(fiber.Map{"id": photo.ID, "isMain": true})
}

func (h *Handler) RandomPostcode(c *fiber.Ctx) error {
	result, err := h.postcodes.Random(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) LookupPostcode(c *fiber.Ctx) error {
	raw := c.Query("postcode")
	if raw == "" {
		return h.badRequest(c, "postcode is required")
	}
	result, err := h.postcodes.Lookup(c.UserContext(), raw)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) invalidate(ctx context.Context, listingID string) {
	if err := h.cache.Invalidate(ctx, listingID); err != nil {
		h.logger.Warn("handler: cache invalidation failed", "listing_id", listingID, "error", err.Error())
	}
}

func (h *Handler) publish(subject string, event nats.ListingEvent) {
	if err := h.publisher.Publish(context.Background(), subject, event); err != nil {
		h.logger.Warn("handler: event publish failed", "subject", subject, "error", err.Error())
	}
}

// notifyCreated sends the confirmation off the request path. A send failure
// is logged and otherwise ignored.
func (h *Handler) notifyCreated(email, title string) {
	if email == "" {
		return
	}
	go func() {
		if err := h.mailer.SendListingCreatedEmail(email, title); err != nil {
			h.logger.Warn("handler: listing-created email failed", "error", err.Error())
		}
	}()
}

func (h *Handler) badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// fail maps domain and upstream errors onto HTTP statuses. Anything
// unclassified is a 500 with a generic body; details stay in the logs.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	}

	switch {
	case errors.Is(err, domain.ErrListingNotFound),
		errors.Is(err, domain.ErrPhotoNotFound),
		errors.Is(err, postcode.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	case errors.Is(err, domain.ErrPhotoLimitReached):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "photo limit reached"})
	case errors.Is(err, domain.ErrUnsupportedImage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported image format"})
	case errors.Is(err, domain.ErrInvalidObjectURL):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid image url"})
	case errors.Is(err, errTooManyFiles),
		errors.Is(err, errFileTooLarge),
		errors.Is(err, errBadEncoding):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, postcode.ErrInvalidPostcode):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid postcode"})
	case errors.Is(err, postcode.ErrTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "postcode service timed out"})
	case errors.Is(err, postcode.ErrConnection),
		errors.Is(err, postcode.ErrMalformedResponse):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "postcode service unavailable"})
	}

	h.logger.Error("handler: internal error", "path", c.Path(), "error", err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
