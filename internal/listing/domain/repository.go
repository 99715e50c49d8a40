package domain

import "context"

type ListingRepository interface {
	Create(ctx context.Context, listing *Listing) error
	Update(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Listing, error)
	// FindOwned scopes the lookup to the owner in the query itself and
	// reports ErrListingNotFound for both absent and foreign listings.
	FindOwned(ctx context.Context, id, ownerID string) (*Listing, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*Listing, error)
	FindAll(ctx context.Context) ([]*Listing, error)
}

type PhotoRepository interface {
	// Insert persists the photo and enforces the per-scope cap atomically,
	// returning ErrPhotoLimitReached when the scope is full.
	Insert(ctx context.Context, photo *ListingPhoto) error
	ListByScope(ctx context.Context, scope PhotoScope) ([]*ListingPhoto, error)
	ListByListing(ctx context.Context, listingID string) ([]*ListingPhoto, error)
	CountByScope(ctx context.Context, scope PhotoScope) (int64, error)
	FindOwned(ctx context.Context, id, ownerID string) (*ListingPhoto, error)
	FindMainByListing(ctx context.Context, listingID string) (*ListingPhoto, error)
	SetListing(ctx context.Context, id, listingID string) error
	Delete(ctx context.Context, id string) error
	// SetMainInScope clears every main flag in the scope and sets the target
	// in one transaction.
	SetMainInScope(ctx context.Context, scope PhotoScope, id string) error
	// PromoteFirstInScope marks the oldest photo in the scope as main, if any
	// photo remains. Used after the main photo was deleted.
	PromoteFirstInScope(ctx context.Context, scope PhotoScope) error
}

type PhoneViewRepository interface {
	Append(ctx context.Context, view *PhoneView) error
}
