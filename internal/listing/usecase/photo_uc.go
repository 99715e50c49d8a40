package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/citylistings/listing-service/internal/listing/domain"
	"github.com/citylistings/listing-service/internal/platform/logger"
)

// Storage is the object storage gateway consumed by the usecases. Upload
// re-encodes the payload and returns a bare object key; callers only ever
// hand clients the disposable signed URLs.
type Storage interface {
	Upload(ctx context.Context, scope domain.PhotoScope, data []byte) (string, error)
	SignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
	// SignedURLs resolves keys concurrently; failing keys are omitted from
	// the result, never failing the batch.
	SignedURLs(ctx context.Context, objectKeys []string, ttl time.Duration) map[string]string
	Delete(ctx context.Context, objectKey string) error
	ExtractKey(rawurl string) (string, error)
}

// PhotoView is a photo shaped for clients: identity, main flag, and a
// time-limited URL instead of the stable key.
type PhotoView struct {
	ID        string `json:"id"`
	IsMain    bool   `json:"isMain"`
	SignedURL string `json:"signedUrl"`
}

type PhotoUsecase struct {
	storage  Storage
	photos   domain.PhotoRepository
	listings domain.ListingRepository
	logger   *logger.Logger
	urlTTL   time.Duration
}

func NewPhotoUsecase(storage Storage, photos domain.PhotoRepository, listings domain.ListingRepository, log *logger.Logger, urlTTL time.Duration) *PhotoUsecase {
	return &PhotoUsecase{
		storage:  storage,
		photos:   photos,
		listings: listings,
		logger:   log,
		urlTTL:   urlTTL,
	}
}

// UploadPhotos stores each payload and inserts a photo row in the given
// scope. The first photo landing in an empty scope becomes main. The
// per-scope cap is checked up front and enforced again inside the insert, so
// racing uploads cannot overshoot it.
func (uc *PhotoUsecase) UploadPhotos(ctx context.Context, ownerID, listingID string, files [][]byte) ([]*domain.ListingPhoto, error) {
	scope := domain.PhotoScope{OwnerID: ownerID, ListingID: listingID}
	uc.logger.Info("PhotoUsecase.UploadPhotos: uploading photos",
		"user_id", ownerID, "listing_id", listingID, "count", len(files))

	if listingID != "" {
		if _, err := uc.listings.FindOwned(ctx, listingID, ownerID); err != nil {
			uc.logger.Warn("PhotoUsecase.UploadPhotos: listing not owned by caller", "listing_id", listingID, "user_id", ownerID)
			return nil, err
		}
	}

	existing, err := uc.photos.CountByScope(ctx, scope)
	if err != nil {
		uc.logger.Error("PhotoUsecase.UploadPhotos: count failed", "user_id", ownerID, "error", err.Error())
		return nil, err
	}
	if existing >= domain.MaxPhotosPerScope {
		return nil, domain.ErrPhotoLimitReached
	}

	isFirstInScope := existing == 0
	saved := make([]*domain.ListingPhoto, 0, len(files))
	for i, data := range files {
		objectKey, err := uc.storage.Upload(ctx, scope, data)
		if err != nil {
			uc.logger.Error("PhotoUsecase.UploadPhotos: upload failed", "user_id", ownerID, "error", err.Error())
			return saved, err
		}

		photo := &domain.ListingPhoto{
			OwnerID:   ownerID,
			ListingID: listingID,
			ObjectKey: objectKey,
			IsMain:    isFirstInScope && i == 0,
		}
		if err := uc.photos.Insert(ctx, photo); err != nil {
			if errors.Is(err, domain.ErrPhotoLimitReached) {
				// The row never landed; reclaim the stored object.
				if delErr := uc.storage.Delete(ctx, objectKey); delErr != nil {
					uc.logger.Warn("PhotoUsecase.UploadPhotos: orphan cleanup failed", "object_key", objectKey, "error", delErr.Error())
				}
			}
			uc.logger.Error("PhotoUsecase.UploadPhotos: insert failed", "user_id", ownerID, "error", err.Error())
			return saved, err
		}
		saved = append(saved, photo)
	}

	uc.logger.Info("PhotoUsecase.UploadPhotos: successful", "user_id", ownerID, "saved", len(saved))
	return saved, nil
}

// ListPhotos returns the caller's photos in the scope, main first, with
// signed URLs. Photos whose URL could not be signed are omitted.
func (uc *PhotoUsecase) ListPhotos(ctx context.Context, ownerID, listingID string) ([]PhotoView, error) {
	scope := domain.PhotoScope{OwnerID: ownerID, ListingID: listingID}
	photos, err := uc.photos.ListByScope(ctx, scope)
	if err != nil {
		uc.logger.Error("PhotoUsecase.ListPhotos: list failed", "user_id", ownerID, "error", err.Error())
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
	return views, nil
}

// DeletePhoto removes the stored object before the row so a failure can
// never leave a row pointing at a deleted object. If the deleted photo was
// main and the scope still has photos, the oldest remaining one is promoted.
// The deleted photo is returned so callers can react to its scope.
func (uc *PhotoUsecase) DeletePhoto(ctx context.Context, photoID, callerID string) (*domain.ListingPhoto, error) {
	photo, err := uc.photos.FindOwned(ctx, photoID, callerID)
	if err != nil {
		uc.logger.Warn("PhotoUsecase.DeletePhoto: photo not found or not owned", "photo_id", photoID, "user_id", callerID)
		return nil, err
	}

	if err := uc.storage.Delete(ctx, photo.ObjectKey); err != nil {
		uc.logger.Error("PhotoUsecase.DeletePhoto: object delete failed", "object_key", photo.ObjectKey, "error", err.Error())
		return nil, err
	}
	if err := uc.photos.Delete(ctx, photo.ID); err != nil {
		uc.logger.Error("PhotoUsecase.DeletePhoto: row delete failed", "photo_id", photo.ID, "error", err.Error())
		return nil, err
	}

	if photo.IsMain {
		if err := uc.photos.PromoteFirstInScope(ctx, photo.Scope()); err != nil {
			uc.logger.Error("PhotoUsecase.DeletePhoto: promotion failed", "photo_id", photo.ID, "error", err.Error())
			return nil, err
		}
	}

	uc.logger.Info("PhotoUsecase.DeletePhoto: successful", "photo_id", photoID, "user_id", callerID)
	return photo, nil
}

// SetMainPhoto makes the target the only main photo in its scope. Clear and
// set run in one transaction so concurrent callers cannot leave the scope
// with zero or two mains.
func (uc *PhotoUsecase) SetMainPhoto(ctx context.Context, photoID, callerID string) (*domain.ListingPhoto, error) {
	photo, err := uc.photos.FindOwned(ctx, photoID, callerID)
	if err != nil {
		uc.logger.Warn("PhotoUsecase.SetMainPhoto: photo not found or not owned", "photo_id", photoID, "user_id", callerID)
		return nil, err
	}

	if err := uc.photos.SetMainInScope(ctx, photo.Scope(), photo.ID); err != nil {
		uc.logger.Error("PhotoUsecase.SetMainPhoto: set main failed", "photo_id", photoID, "error", err.Error())
		return nil, err
	}

	uc.logger.Info("PhotoUsecase.SetMainPhoto: successful", "photo_id", photoID, "user_id", callerID)
	return photo, nil
}
