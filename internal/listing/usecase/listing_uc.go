package usecase

import (
	"context"
	"time"

	"github.com/citylistings/listing-service/internal/listing/domain"
	"github.com/citylistings/listing-service/internal/platform/logger"
)

// ListingCard is the browse-view projection: identity, headline fields, and
// the main photo's signed URL when one exists.
type ListingCard struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Location string `json:"location"`
	City     string `json:"city"`
	ImageURL string `json:"image,omitempty"`
}

// ListingDetail is the full read projection: the listing plus its photos
// resolved to signed URLs.
type ListingDetail struct {
	Listing *domain.Listing
	Photos  []PhotoView
}

type ListingUsecase struct {
	listings   domain.ListingRepository
	photos     domain.PhotoRepository
	phoneViews domain.PhoneViewRepository
	storage    Storage
	logger     *logger.Logger
	urlTTL     time.Duration
}

func NewListingUsecase(
	listings domain.ListingRepository,
	photos domain.PhotoRepository,
	phoneViews domain.PhoneViewRepository,
	storage Storage,
	log *logger.Logger,
	urlTTL time.Duration,
) *ListingUsecase {
	return &ListingUsecase{
		listings:   listings,
		photos:     photos,
		phoneViews: phoneViews,
		storage:    storage,
		logger:     log,
		urlTTL:     urlTTL,
	}
}

// CreateListing validates the input, inserts the listing, and attaches the
// caller's pre-uploaded photos. Photos that are not owned by the caller or
// are already attached elsewhere are silently skipped; the per-scope cap
// applies at attach time too. The created listing ends with exactly one main
// photo whenever any photo was attached.
func (uc *ListingUsecase) CreateListing(ctx context.Context, ownerID string, in ListingInput, photoIDs []string, mainPhotoID string) (*domain.Listing, error) {
	uc.logger.Info("ListingUsecase.CreateListing: creating new listing", "user_id", ownerID, "title", in.Title)

	if err := validateListingInput(in); err != nil {
		uc.logger.Warn("ListingUsecase.CreateListing: validation failed", "user_id", ownerID, "error", err.Error())
		return nil, err
	}

	listing := &domain.Listing{
		OwnerID:         ownerID,
		Title:           in.Title,
		Description:     in.Description,
		Location:        in.Location,
		Phone:           in.Phone,
		City:            in.City,
		PostcodeOutcode: in.PostcodeOutcode,
		PostcodeIncode:  in.PostcodeIncode,
		InCall:          in.InCall,
		OutCall:         in.OutCall,
		Pricing:         in.pricingTiers(),
	}
	if err := uc.listings.Create(ctx, listing); err != nil {
		uc.logger.Error("ListingUsecase.CreateListing: failed to create listing", "user_id", ownerID, "error", err.Error())
		return nil, err
	}

	scope := domain.PhotoScope{OwnerID: ownerID, ListingID: listing.ID}
	attached := make(map[string]bool, len(photoIDs))
	for _, photoID := range photoIDs {
		if len(attached) >= domain.MaxPhotosPerScope {
			uc.logger.Warn("ListingUsecase.CreateListing: attach cap reached, skipping remaining photos",
				"listing_id", listing.ID, "skipped_from", photoID)
			break
		}
		photo, err := uc.photos.FindOwned(ctx, photoID, ownerID)
		if err != nil || photo.ListingID != "" {
			// Not the caller's photo, or already attached elsewhere.
			continue
		}
		if err := uc.photos.SetListing(ctx, photo.ID, listing.ID); err != nil {
			uc.logger.Error("ListingUsecase.CreateListing: attach failed", "photo_id", photoID, "error", err.Error())
			return nil, err
		}
		attached[photoID] = true
	}

	if mainPhotoID != "" && attached[mainPhotoID] {
		if err := uc.photos.SetMainInScope(ctx, scope, mainPhotoID); err != nil {
			uc.logger.Error("ListingUsecase.CreateListing: set main failed", "photo_id", mainPhotoID, "error", err.Error())
			return nil, err
		}
	} else if len(attached) > 0 {
		if err := uc.photos.PromoteFirstInScope(ctx, scope); err != nil {
			uc.logger.Error("ListingUsecase.CreateListing: main promotion failed", "listing_id", listing.ID, "error", err.Error())
			return nil, err
		}
	}

	uc.logger.Info("ListingUsecase.CreateListing: successful", "listing_id", listing.ID, "user_id", ownerID, "photos_attached", len(attached))
	return listing, nil
}

// UpdateListing reconciles the listing's photo set against the kept URLs and
// new uploads, re-resolves the main photo, and replaces the scalar fields
// and pricing tiers. Object-store deletes happen before row deletes, and new
// objects are uploaded before rows reference them, so a partial failure
// never leaves a row pointing at a missing object.
func (uc *ListingUsecase) UpdateListing(ctx context.Context, listingID, callerID string, in ListingInput, keepImages []string, newFiles [][]byte, main *MainSelection) error {
	uc.logger.Info("ListingUsecase.UpdateListing: updating listing", "listing_id", listingID, "user_id", callerID)

	listing, err := uc.listings.FindByID(ctx, listingID)
	if err != nil {
		uc.logger.Warn("ListingUsecase.UpdateListing: listing not found", "listing_id", listingID)
		return err
	}
	if listing.OwnerID != callerID {
		uc.logger.Warn("ListingUsecase.UpdateListing: forbidden",
			"listing_id", listingID, "owner_id", listing.OwnerID, "user_id", callerID)
		return domain.ErrForbidden
	}

	if err := validateListingInput(in); err != nil {
		uc.logger.Warn("ListingUsecase.UpdateListing: validation failed", "listing_id", listingID, "error", err.Error())
		return err
	}

	keepKeys := make(map[string]bool, len(keepImages))
	for _, raw := range keepImages {
		key, err := uc.storage.ExtractKey(raw)
		if err != nil {
			uc.logger.Warn("ListingUsecase.UpdateListing: bad keep-image url", "listing_id", listingID, "url", raw)
			return err
		}
		keepKeys[key] = true
	}

	current, err := uc.photos.ListByListing(ctx, listingID)
	if err != nil {
		return err
	}
	for _, photo := range current {
		if keepKeys[photo.ObjectKey] {
			continue
		}
		if err := uc.storage.Delete(ctx, photo.ObjectKey); err != nil {
			uc.logger.Error("ListingUsecase.UpdateListing: object delete failed", "object_key", photo.ObjectKey, "error", err.Error())
			return err
		}
		if err := uc.photos.Delete(ctx, photo.ID); err != nil {
			uc.logger.Error("ListingUsecase.UpdateListing: row delete failed", "photo_id", photo.ID, "error", err.Error())
			return err
		}
	}

	scope := domain.PhotoScope{OwnerID: callerID, ListingID: listingID}
	newKeys := make([]string, 0, len(newFiles))
	for _, data := range newFiles {
		objectKey, err := uc.storage.Upload(ctx, scope, data)
		if err != nil {
			uc.logger.Error("ListingUsecase.UpdateListing: upload failed", "listing_id", listingID, "error", err.Error())
			return err
		}
		photo := &domain.ListingPhoto{OwnerID: callerID, ListingID: listingID, ObjectKey: objectKey}
		if err := uc.photos.Insert(ctx, photo); err != nil {
			if delErr := uc.storage.Delete(ctx, objectKey); delErr != nil {
				uc.logger.Warn("ListingUsecase.UpdateListing: orphan cleanup failed", "object_key", objectKey, "error", delErr.Error())
			}
			uc.logger.Error("ListingUsecase.UpdateListing: insert failed", "listing_id", listingID, "error", err.Error())
			return err
		}
		newKeys = append(newKeys, objectKey)
	}

	if main != nil {
		if err := uc.applyMainSelection(ctx, scope, main, newKeys); err != nil {
			return err
		}
	}
	if err := uc.ensureMainExists(ctx, scope); err != nil {
		return err
	}

	listing.Title = in.Title
	listing.Description = in.Description
	listing.Location = in.Location
	listing.Phone = in.Phone
	listing.City = in.City
	listing.PostcodeOutcode = in.PostcodeOutcode
	listing.PostcodeIncode = in.PostcodeIncode
	listing.InCall = in.InCall
	listing.OutCall = in.OutCall
	if in.Pricing != nil {
		// Pricing is replaced wholesale, never diffed.
		listing.Pricing = in.pricingTiers()
	}
	if err := uc.listings.Update(ctx, listing); err != nil {
		uc.logger.Error("ListingUsecase.UpdateListing: failed to update listing", "listing_id", listingID, "error", err.Error())
		return err
	}

	uc.logger.Info("ListingUsecase.UpdateListing: successful", "listing_id", listingID, "user_id", callerID)
	return nil
}

func (uc *ListingUsecase) applyMainSelection(ctx context.Context, scope domain.PhotoScope, main *MainSelection, newKeys []string) error {
	var targetKey string
	if main.IsNewFile {
		if main.NewFileIndex >= 0 && main.NewFileIndex < len(newKeys) {
			targetKey = newKeys[main.NewFileIndex]
		}
	} else if main.URL != "" {
		key, err := uc.storage.ExtractKey(main.URL)
		if err != nil {
			uc.logger.Warn("ListingUsecase: bad main-image url", "listing_id", scope.ListingID, "url", main.URL)
			return err
		}
		targetKey = key
	}
	if targetKey == "" {
		return nil
	}

	photos, err := uc.photos.ListByListing(ctx, scope.ListingID)
	if err != nil {
		return err
	}
	for _, photo := range photos {
		if photo.ObjectKey == targetKey {
			return uc.photos.SetMainInScope(ctx, scope, photo.ID)
		}
	}
	uc.logger.Warn("ListingUsecase: selected main image not in listing, leaving main unchanged",
		"listing_id", scope.ListingID, "object_key", targetKey)
	return nil
}

// ensureMainExists repairs the exactly-one-main invariant after photo
// deletions removed the previous main without a replacement selection.
func (uc *ListingUsecase) ensureMainExists(ctx context.Context, scope domain.PhotoScope) error {
	main, err := uc.photos.FindMainByListing(ctx, scope.ListingID)
	if err != nil {
		return err
	}
	if main != nil {
		return nil
	}
	count, err := uc.photos.CountByScope(ctx, scope)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	return uc.photos.PromoteFirstInScope(ctx, scope)
}

// DeleteListing removes the listing with its photos (objects first) and its
// embedded pricing.
func (uc *ListingUsecase) DeleteListing(ctx context.Context, listingID, callerID string) error {
	uc.logger.Info("ListingUsecase.DeleteListing: deleting listing", "listing_id", listingID, "user_id", callerID)

	listing, err := uc.listings.FindByID(ctx, listingID)
	if err != nil {
		uc.logger.Warn("ListingUsecase.DeleteListing: listing not found", "listing_id", listingID)
		return err
	}
	if listing.OwnerID != callerID {
		uc.logger.Warn("ListingUsecase.DeleteListing: forbidden",
			"listing_id", listingID, "owner_id", listing.OwnerID, "user_id", callerID)
		return domain.ErrForbidden
	}

	photos, err := uc.photos.ListByListing(ctx, listingID)
	if err != nil {
		return err
	}
	for _, photo := range photos {
		if err := uc.storage.Delete(ctx, photo.ObjectKey); err != nil {
			uc.logger.Error("ListingUsecase.DeleteListing: object delete failed", "object_key", photo.ObjectKey, "error", err.Error())
			return err
		}
		if err := uc.photos.Delete(ctx, photo.ID); err != nil {
			uc.logger.Error("ListingUsecase.DeleteListing: row delete failed", "photo_id", photo.ID, "error", err.Error())
			return err
		}
	}

	if err := uc.listings.Delete(ctx, listingID); err != nil {
		uc.logger.Error("ListingUsecase.DeleteListing: failed to delete listing", "listing_id", listingID, "error", err.Error())
		return err
	}

	uc.logger.Info("ListingUsecase.DeleteListing: successful", "listing_id", listingID, "user_id", callerID)
	return nil
}

// GetPublicListings materializes the browse view for everyone: one card per
// listing with the main photo resolved to a signed URL. A listing whose URL
// cannot be signed still appears, without an image.
func (uc *ListingUsecase) GetPublicListings(ctx context.Context) ([]ListingCard, error) {
	listings, err := uc.listings.FindAll(ctx)
	if err != nil {
		uc.logger.Error("ListingUsecase.GetPublicListings: find failed", "error", err.Error())
		return nil, err
	}
	return uc.buildCards(ctx, listings)
}

// GetMyListings is the owner's variant of the browse view.
func (uc *ListingUsecase) GetMyListings(ctx context.Context, ownerID string) ([]ListingCard, error) {
	listings, err := uc.listings.FindByOwner(ctx, ownerID)
	if err != nil {
		uc.logger.Error("ListingUsecase.GetMyListings: find failed", "user_id", ownerID, "error", err.Error())
		return nil, err
	}
	return uc.buildCards(ctx, listings)
}

func (uc *ListingUsecase) buildCards(ctx context.Context, listings []*domain.Listing) ([]ListingCard, error) {
	mainKeys := make(map[string]string, len(listings)) // listing id -> object key
	keys := make([]string, 0, len(listings))
	for _, l := range listings {
		main, err := uc.photos.FindMainByListing(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		if main != nil {
			mainKeys[l.ID] = main.ObjectKey
			keys = append(keys, main.ObjectKey)
		}
	}

	urls := uc.storage.SignedURLs(ctx, keys, uc.urlTTL)

	cards := make([]ListingCard, 0, len(listings))
	for _, l := range listings {
		card := ListingCard{ID: l.ID, Title: l.Title, Location: l.Location, City: l.City}
		if key, ok := mainKeys[l.ID]; ok {
			card.ImageURL = urls[key]
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// GetListingByID materializes the detail view. The HTTP layer decides which
// fields are public-safe.
func (uc *ListingUsecase) GetListingByID(ctx context.Context, listingID string) (*ListingDetail, error) {
	listing, err := uc.listings.FindByID(ctx, listingID)
	if err != nil {
		uc.logger.Warn("ListingUsecase.GetListingByID: listing not found", "listing_id", listingID)
		return nil, err
	}
	return uc.buildDetail(ctx, listing)
}

// GetEditableListingByID is the owner-only detail view; the ownership filter
// is part of the row lookup itself.
func (uc *ListingUsecase) GetEditableListingByID(ctx context.Context, listingID, ownerID string) (*ListingDetail, error) {
	listing, err := uc.listings.FindOwned(ctx, listingID, ownerID)
	if err != nil {
		uc.logger.Warn("ListingUsecase.GetEditableListingByID: listing not found or not owned",
			"listing_id", listingID, "user_id", ownerID)
		return nil, err
	}
	return uc.buildDetail(ctx, listing)
}

func (uc *ListingUsecase) buildDetail(ctx context.Context, listing *domain.Listing) (*ListingDetail, error) {
	photos, err := uc.photos.ListByListing(ctx, listing.ID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(photos))
	for _, p := range photos {
		keys = append(keys, p.ObjectKey)
	}
	urls := uc.storage.SignedURLs(ctx, keys, uc.urlTTL)

	views := make([]PhotoView, 0, len(photos))
	for _, p := range photos {
		url, ok := urls[p.ObjectKey]
		if !ok {
			continue
		}
		views = append(views, PhotoView{ID: p.ID, IsMain: p.IsMain, SignedURL: url})
	}
	return &ListingDetail{Listing: listing, Photos: views}, nil
}

// RevealPhone returns the listing's phone number and unconditionally appends
// an audit row. Repeated reveals are all logged; there is no deduplication.
func (uc *ListingUsecase) RevealPhone(ctx context.Context, listingID, viewerID, ipAddress string) (string, error) {
	listing, err := uc.listings.FindByID(ctx, listingID)
	if err != nil {
		uc.logger.Warn("ListingUsecase.RevealPhone: listing not found", "listing_id", listingID)
		return "", err
	}

	view := &domain.PhoneView{
		ListingID: listingID,
		ViewerID:  viewerID,
		IPAddress: ipAddress,
	}
	if err := uc.phoneViews.Append(ctx, view); err != nil {
		uc.logger.Error("ListingUsecase.RevealPhone: audit append failed", "listing_id", listingID, "error", err.Error())
		return "", err
	}

	uc.logger.Info("ListingUsecase.RevealPhone: revealed", "listing_id", listingID, "viewer_id", viewerID, "ip", ipAddress)
	return listing.Phone, nil
}
