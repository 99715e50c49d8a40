package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/citylistings/listing-service/internal/listing/domain"
	"github.com/citylistings/listing-service/internal/platform/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger()
}

// memListingRepo is an in-memory domain.ListingRepository.
type memListingRepo struct {
	listings map[string]*domain.Listing
	nextID   int
}

func newMemListingRepo() *memListingRepo {
	return &memListingRepo{listings: make(map[string]*domain.Listing)}
}

func (r *memListingRepo) Create(_ context.Context, l *domain.Listing) error {
	r.nextID++
	l.ID = fmt.Sprintf("listing-%d", r.nextID)
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	clone := *l
	r.listings[l.ID] = &clone
	return nil
}

func (r *memListingRepo) Update(_ context.Context, l *domain.Listing) error {
	if _, ok := r.listings[l.ID]; !ok {
		return domain.ErrListingNotFound
	}
	l.UpdatedAt = time.Now().UTC()
	clone := *l
	r.listings[l.ID] = &clone
	return nil
}

func (r *memListingRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.listings[id]; !ok {
		return domain.ErrListingNotFound
	}
	delete(r.listings, id)
	return nil
}

func (r *memListingRepo) FindByID(_ context.Context, id string) (*domain.Listing, error) {
	l, ok := r.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	clone := *l
	return &clone, nil
}

func (r *memListingRepo) FindOwned(_ context.Context, id, ownerID string) (*domain.Listing, error) {
	l, ok := r.listings[id]
	if !ok || l.OwnerID != ownerID {
		return nil, domain.ErrListingNotFound
	}
	clone := *l
	return &clone, nil
}

func (r *memListingRepo) FindByOwner(_ context.Context, ownerID string) ([]*domain.Listing, error) {
	var out []*domain.Listing
	for _, l := range r.listings {
		if l.OwnerID == ownerID {
			clone := *l
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memListingRepo) FindAll(_ context.Context) ([]*domain.Listing, error) {
	var out []*domain.Listing
	for _, l := range r.listings {
		clone := *l
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memPhotoRepo is an in-memory domain.PhotoRepository with the same cap and
// main-flag semantics as the real one.
type memPhotoRepo struct {
	photos map[string]*domain.ListingPhoto
	seq    int
}

func newMemPhotoRepo() *memPhotoRepo {
	return &memPhotoRepo{photos: make(map[string]*domain.ListingPhoto)}
}

func (r *memPhotoRepo) inScope(p *domain.ListingPhoto, scope domain.PhotoScope) bool {
	if scope.ListingID != "" {
		return p.ListingID == scope.ListingID
	}
	return p.OwnerID == scope.OwnerID && p.ListingID == ""
}

func (r *memPhotoRepo) Insert(_ context.Context, p *domain.ListingPhoto) error {
	count := 0
	for _, existing := range r.photos {
		if r.inScope(existing, p.Scope()) {
			count++
		}
	}
	if count >= domain.MaxPhotosPerScope {
		return domain.ErrPhotoLimitReached
	}
	r.seq++
	p.ID = fmt.Sprintf("photo-%d", r.seq)
	p.UploadedAt = time.Unix(int64(r.seq), 0).UTC()
	clone := *p
	r.photos[p.ID] = &clone
	return nil
}

func (r *memPhotoRepo) scoped(scope domain.PhotoScope) []*domain.ListingPhoto {
	var out []*domain.ListingPhoto
	for _, p := range r.photos {
		if r.inScope(p, scope) {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsMain != out[j].IsMain {
			return out[i].IsMain
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out
}

func (r *memPhotoRepo) ListByScope(_ context.Context, scope domain.PhotoScope) ([]*domain.ListingPhoto, error) {
	return r.scoped(scope), nil
}

func (r *memPhotoRepo) ListByListing(_ context.Context, listingID string) ([]*domain.ListingPhoto, error) {
	return r.scoped(domain.PhotoScope{ListingID: listingID}), nil
}

func (r *memPhotoRepo) CountByScope(_ context.Context, scope domain.PhotoScope) (int64, error) {
	return int64(len(r.scoped(scope))), nil
}

func (r *memPhotoRepo) FindOwned(_ context.Context, id, ownerID string) (*domain.ListingPhoto, error) {
	p, ok := r.photos[id]
	if !ok || p.OwnerID != ownerID {
		return nil, domain.ErrPhotoNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memPhotoRepo) FindMainByListing(_ context.Context, listingID string) (*domain.ListingPhoto, error) {
	for _, p := range r.photos {
		if p.ListingID == listingID && p.IsMain {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memPhotoRepo) SetListing(_ context.Context, id, listingID string) error {
	p, ok := r.photos[id]
	if !ok {
		return domain.ErrPhotoNotFound
	}
	p.ListingID = listingID
	p.IsMain = false
	return nil
}

func (r *memPhotoRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.photos[id]; !ok {
		return domain.ErrPhotoNotFound
	}
	delete(r.photos, id)
	return nil
}

func (r *memPhotoRepo) SetMainInScope(_ context.Context, scope domain.PhotoScope, id string) error {
	target, ok := r.photos[id]
	if !ok {
		return domain.ErrPhotoNotFound
	}
	for _, p := range r.photos {
		if r.inScope(p, scope) {
			p.IsMain = false
		}
	}
	target.IsMain = true
	return nil
}

func (r *memPhotoRepo) PromoteFirstInScope(_ context.Context, scope domain.PhotoScope) error {
	var oldest *domain.ListingPhoto
	for _, p := range r.photos {
		if !r.inScope(p, scope) {
			continue
		}
		if oldest == nil || p.UploadedAt.Before(oldest.UploadedAt) {
			oldest = p
		}
	}
	if oldest != nil {
		oldest.IsMain = true
	}
	return nil
}

func (r *memPhotoRepo) mains(scope domain.PhotoScope) []*domain.ListingPhoto {
	var out []*domain.ListingPhoto
	for _, p := range r.scoped(scope) {
		if p.IsMain {
			out = append(out, p)
		}
	}
	return out
}

// memPhoneViewRepo records appended phone disclosure rows.
type memPhoneViewRepo struct {
	views []*domain.PhoneView
}

func (r *memPhoneViewRepo) Append(_ context.Context, v *domain.PhoneView) error {
	v.ID = fmt.Sprintf("view-%d", len(r.views)+1)
	v.ViewedAt = time.Now().UTC()
	clone := *v
	r.views = append(r.views, &clone)
	return nil
}

// memStorage is an in-memory Storage. It records the order of uploads and
// deletes so tests can assert ordering against row operations.
type memStorage struct {
	objects map[string][]byte
	ops     []string // "upload:<key>" / "delete:<key>"
	nextKey int
	failTTL bool
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Upload(_ context.Context, scope domain.PhotoScope, data []byte) (string, error) {
	s.nextKey++
	var key string
	if scope.ListingID != "" {
		key = fmt.Sprintf("listings/%s/%d.webp", scope.ListingID, s.nextKey)
	} else {
		key = fmt.Sprintf("photos/user-%s/%d.webp", scope.OwnerID, s.nextKey)
	}
	s.objects[key] = data
	s.ops = append(s.ops, "upload:"+key)
	return key, nil
}

func (s *memStorage) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.test/bucket/" + key + "?sig=x", nil
}

func (s *memStorage) SignedURLs(ctx context.Context, keys []string, ttl time.Duration) map[string]string {
	urls := make(map[string]string, len(keys))
	if s.failTTL {
		return urls
	}
	for _, key := range keys {
		url, _ := s.SignedURL(ctx, key, ttl)
		urls[key] = url
	}
	return urls
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	s.ops = append(s.ops, "delete:"+key)
	return nil
}

func (s *memStorage) ExtractKey(rawurl string) (string, error) {
	if rawurl == "" {
		return "", domain.ErrInvalidObjectURL
	}
	if !strings.HasPrefix(rawurl, "http") {
		return rawurl, nil
	}
	trimmed := strings.TrimPrefix(rawurl, "https://cdn.test/bucket/")
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed, nil
}
