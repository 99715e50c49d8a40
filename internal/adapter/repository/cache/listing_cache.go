package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/citylistings/listing-service/internal/listing/usecase"
)

// Cached materializations embed signed URLs, so the TTL stays well under the
// URL expiry; a cache hit must never serve a URL that has already lapsed.
const cacheTTL = 10 * time.Minute

const (
	publicListingsKey = "listings:public"
	detailKeyPrefix   = "listings:detail:"
)

type ListingCache struct {
	client *redis.Client
}

func NewListingCache(addr string) (*ListingCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &ListingCache{client: client}, nil
}

// GetPublic returns the cached public browse page, or (nil, nil) on a miss.
func (c *ListingCache) GetPublic(ctx context.Context) ([]usecase.ListingCard, error) {
	data, err := c.client.Get(ctx, publicListingsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cards []usecase.ListingCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (c *ListingCache) SetPublic(ctx context.Context, cards []usecase.ListingCard) error {
	data, err := json.Marshal(cards)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, publicListingsKey, data, cacheTTL).Err()
}

// GetDetail returns the cached public detail view, or (nil, nil) on a miss.
func (c *ListingCache) GetDetail(ctx context.Context, listingID string) (*usecase.ListingDetail, error) {
	data, err := c.client.Get(ctx, detailKeyPrefix+listingID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var detail usecase.ListingDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *ListingCache) SetDetail(ctx context.Context, detail *usecase.ListingDetail) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, detailKeyPrefix+detail.Listing.ID, data, cacheTTL).Err()
}

// Invalidate drops both the detail entry and the browse page; any mutation of
// a listing or its photos changes what anonymous visitors should see.
func (c *ListingCache) Invalidate(ctx context.Context, listingID string) error {
	return c.client.Del(ctx, detailKeyPrefix+listingID, publicListingsKey).Err()
}

func (c *ListingCache) Close() error {
	return c.client.Close()
}
