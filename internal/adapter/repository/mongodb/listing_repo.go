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

type ListingRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

func NewListingRepository(db *mongo.Database, log *logger.Logger) *ListingRepository {
	return &ListingRepository{
		collection: db.Collection("listings"),
		logger:     log,
	}
}

// EnsureIndexes creates the lookup indexes, including the composite postcode
// index used by area browsing.
func (r *ListingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "postcode_outcode", Value: 1}, {Key: "postcode_incode", Value: 1}}},
	})
	if err != nil {
		return &domain.StorageError{Op: "listings.ensure_indexes", Err: err}
	}
	return nil
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	listing.ID = uuid.NewString()
	listing.CreatedAt = time.Now().UTC()
	listing.UpdatedAt = listing.CreatedAt

	if _, err := r.collection.InsertOne(ctx, toListingDocument(listing)); err != nil {
		r.logger.Error("ListingRepository.Create: InsertOne failed", "user_id", listing.OwnerID, "error", err)
		return &domain.StorageError{Op: "listings.create", Err: err}
	}
	return nil
}

func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	listing.UpdatedAt = time.Now().UTC()

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": listing.ID}, toListingDocument(listing))
	if err != nil {
		r.logger.Error("ListingRepository.Update: ReplaceOne failed", "listing_id", listing.ID, "error", err)
		return &domain.StorageError{Op: "listings.update", Err: err}
	}
	if res.MatchedCount == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("ListingRepository.Delete: DeleteOne failed", "listing_id", id, "error", err)
		return &domain.StorageError{Op: "listings.delete", Err: err}
	}
	if res.DeletedCount == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	var doc listingDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		r.logger.Error("ListingRepository.FindByID: FindOne failed", "listing_id", id, "error", err)
		return nil, &domain.StorageError{Op: "listings.find_by_id", Err: err}
	}
	return toDomainListing(&doc), nil
}

func (r *ListingRepository) FindOwned(ctx context.Context, id, ownerID string) (*domain.Listing, error) {
	var doc listingDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "user_id": ownerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		r.logger.Error("ListingRepository.FindOwned: FindOne failed", "listing_id", id, "user_id", ownerID, "error", err)
		return nil, &domain.StorageError{Op: "listings.find_owned", Err: err}
	}
	return toDomainListing(&doc), nil
}

func (r *ListingRepository) FindByOwner(ctx context.Context, ownerID string) ([]*domain.Listing, error) {
	return r.findMany(ctx, bson.M{"user_id": ownerID}, "listings.find_by_owner")
}

func (r *ListingRepository) FindAll(ctx context.Context) ([]*domain.Listing, error) {
	return r.findMany(ctx, bson.M{}, "listings.find_all")
}

func (r *ListingRepository) findMany(ctx context.Context, filter bson.M, op string) ([]*domain.Listing, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		r.logger.Error("ListingRepository: Find failed", "op", op, "error", err)
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	defer cursor.Close(ctx)

	var docs []*listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("ListingRepository: cursor decode failed", "op", op, "error", err)
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	return toDomainListings(docs), nil
}
