package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/citylistings/listing-service/internal/listing/domain"
	"github.com/citylistings/listing-service/internal/platform/logger"
)

type PhotoRepository struct {
	collection *mongo.Collection
	client     *mongo.Client
	logger     *logger.Logger
}

func NewPhotoRepository(db *mongo.Database, log *logger.Logger) *PhotoRepository {
	return &PhotoRepository{
		collection: db.Collection("listing_photos"),
		client:     db.Client(),
		logger:     log,
	}
}

func (r *PhotoRepository) EnsureIndexes(ctx context.Context) error {
	unique := true
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "listing_id", Value: 1}}},
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "is_main", Value: 1}}},
		{Keys: bson.D{{Key: "object_key", Value: 1}}, Options: &options.IndexOptions{Unique: &unique}},
	})
	if err != nil {
		return &domain.StorageError{Op: "photos.ensure_indexes", Err: err}
	}
	return nil
}

// scopeFilter selects the photos sharing the at-most-one-main invariant:
// everything attached to the listing, or the owner's unattached uploads.
func scopeFilter(scope domain.PhotoScope) bson.M {
	if scope.ListingID != "" {
		return bson.M{"listing_id": scope.ListingID}
	}
	return bson.M{"user_id": scope.OwnerID, "listing_id": nil}
}

// Insert enforces the per-scope cap and the insert in one transaction so
// racing uploads cannot overshoot the cap.
func (r *PhotoRepository) Insert(ctx context.Context, photo *domain.ListingPhoto) error {
	photo.ID = uuid.NewString()
	photo.UploadedAt = time.Now().UTC()
	doc := toPhotoDocument(photo)

	err := r.withTransaction(ctx, "photos.insert", func(sc mongo.SessionContext) error {
		count, err := r.collection.CountDocuments(sc, scopeFilter(photo.Scope()))
		if err != nil {
			return err
		}
		if count >= domain.MaxPhotosPerScope {
			return domain.ErrPhotoLimitReached
		}
		_, err = r.collection.InsertOne(sc, doc)
		return err
	})
	if err != nil {
		r.logger.Error("PhotoRepository.Insert: failed", "user_id", photo.OwnerID, "error", err)
	}
	return err
}

func (r *PhotoRepository) ListByScope(ctx context.Context, scope domain.PhotoScope) ([]*domain.ListingPhoto, error) {
	filter := scopeFilter(scope)
	filter["user_id"] = scope.OwnerID
	return r.findMany(ctx, filter, "photos.list_by_scope")
}

func (r *PhotoRepository) ListByListing(ctx context.Context, listingID string) ([]*domain.ListingPhoto, error) {
	return r.findMany(ctx, bson.M{"listing_id": listingID}, "photos.list_by_listing")
}

func (r *PhotoRepository) findMany(ctx context.Context, filter bson.M, op string) ([]*domain.ListingPhoto, error) {
	findOptions := options.Find().SetSort(bson.D{
		{Key: "is_main", Value: -1},
		{Key: "uploaded_at", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		r.logger.Error("PhotoRepository: Find failed", "op", op, "error", err)
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	defer cursor.Close(ctx)

	var docs []*photoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("PhotoRepository: cursor decode failed", "op", op, "error", err)
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	return toDomainPhotos(docs), nil
}

func (r *PhotoRepository) CountByScope(ctx context.Context, scope domain.PhotoScope) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, scopeFilter(scope))
	if err != nil {
		r.logger.Error("PhotoRepository.CountByScope: failed", "error", err)
		return 0, &domain.StorageError{Op: "photos.count_by_scope", Err: err}
	}
	return count, nil
}

func (r *PhotoRepository) FindOwned(ctx context.Context, id, ownerID string) (*domain.ListingPhoto, error) {
	var doc photoDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "user_id": ownerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrPhotoNotFound
	}
	if err != nil {
		r.logger.Error("PhotoRepository.FindOwned: FindOne failed", "photo_id", id, "error", err)
		return nil, &domain.StorageError{Op: "photos.find_owned", Err: err}
	}
	return toDomainPhoto(&doc), nil
}

// FindMainByListing returns (nil, nil) when the listing has no main photo.
func (r *PhotoRepository) FindMainByListing(ctx context.Context, listingID string) (*domain.ListingPhoto, error) {
	var doc photoDocument
	err := r.collection.FindOne(ctx, bson.M{"listing_id": listingID, "is_main": true}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("PhotoRepository.FindMainByListing: FindOne failed", "listing_id", listingID, "error", err)
		return nil, &domain.StorageError{Op: "photos.find_main", Err: err}
	}
	return toDomainPhoto(&doc), nil
}

// SetListing attaches the photo and clears its main flag; the lifecycle
// service re-elects a main for the target scope afterwards.
func (r *PhotoRepository) SetListing(ctx context.Context, id, listingID string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"listing_id": listingID, "is_main": false}},
	)
	if err != nil {
		r.logger.Error("PhotoRepository.SetListing: UpdateOne failed", "photo_id", id, "error", err)
		return &domain.StorageError{Op: "photos.set_listing", Err: err}
	}
	if res.MatchedCount == 0 {
		return domain.ErrPhotoNotFound
	}
	return nil
}

func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("PhotoRepository.Delete: DeleteOne failed", "photo_id", id, "error", err)
		return &domain.StorageError{Op: "photos.delete", Err: err}
	}
	if res.DeletedCount == 0 {
		return domain.ErrPhotoNotFound
	}
	return nil
}

// SetMainInScope clears every main flag in the scope and sets the target
// inside one transaction. Concurrent writers conflict and retry at the
// driver level, so a completed pair of writes is never interleaved.
func (r *PhotoRepository) SetMainInScope(ctx context.Context, scope domain.PhotoScope, id string) error {
	err := r.withTransaction(ctx, "photos.set_main_in_scope", func(sc mongo.SessionContext) error {
		if _, err := r.collection.UpdateMany(sc, scopeFilter(scope), bson.M{"$set": bson.M{"is_main": false}}); err != nil {
			return err
		}
		res, err := r.collection.UpdateOne(sc, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_main": true}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return domain.ErrPhotoNotFound
		}
		return nil
	})
	if err != nil {
		r.logger.Error("PhotoRepository.SetMainInScope: failed", "photo_id", id, "error", err)
	}
	return err
}

// PromoteFirstInScope marks the oldest photo in the scope as main. A scope
// with no photos left is not an error.
func (r *PhotoRepository) PromoteFirstInScope(ctx context.Context, scope domain.PhotoScope) error {
	err := r.withTransaction(ctx, "photos.promote_first_in_scope", func(sc mongo.SessionContext) error {
		findOptions := options.FindOne().SetSort(bson.D{{Key: "uploaded_at", Value: 1}})
		var doc photoDocument
		err := r.collection.FindOne(sc, scopeFilter(scope), findOptions).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = r.collection.UpdateOne(sc, bson.M{"_id": doc.ID}, bson.M{"$set": bson.M{"is_main": true}})
		return err
	})
	if err != nil {
		r.logger.Error("PhotoRepository.PromoteFirstInScope: failed", "listing_id", scope.ListingID, "error", err)
	}
	return err
}

func (r *PhotoRepository) withTransaction(ctx context.Context, op string, fn func(mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return &domain.StorageError{Op: op, Err: err}
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil {
		if errors.Is(err, domain.ErrPhotoLimitReached) || errors.Is(err, domain.ErrPhotoNotFound) {
			return err
		}
		return &domain.StorageError{Op: op, Err: err}
	}
	return nil
}
