package mongodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/citylistings/listing-service/internal/listing/domain"
	"github.com/citylistings/listing-service/internal/platform/logger"
)

// PhoneViewRepository is append-only; disclosure events are never updated or
// deleted, even when the listing they reference is removed.
type PhoneViewRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

func NewPhoneViewRepository(db *mongo.Database, log *logger.Logger) *PhoneViewRepository {
	return &PhoneViewRepository{
		collection: db.Collection("listing_phone_views"),
		logger:     log,
	}
}

func (r *PhoneViewRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "viewed_at", Value: -1}},
	})
	if err != nil {
		return &domain.StorageError{Op: "phone_views.ensure_indexes", Err: err}
	}
	return nil
}

func (r *PhoneViewRepository) Append(ctx context.Context, view *domain.PhoneView) error {
	view.ID = uuid.NewString()
	view.ViewedAt = time.Now().UTC()

	if _, err := r.collection.InsertOne(ctx, toPhoneViewDocument(view)); err != nil {
		r.logger.Error("PhoneViewRepository.Append: InsertOne failed", "listing_id", view.ListingID, "error", err)
		return &domain.StorageError{Op: "phone_views.append", Err: err}
	}
	return nil
}
