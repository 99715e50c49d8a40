package domain

import "time"

// Listing is a location-tagged service advert owned by a single user.
// Pricing tiers are part of the listing and are replaced wholesale on update.
type Listing struct {
	ID              string
	OwnerID         string
	Title           string
	Description     string
	Location        string
	Phone           string // normalized UK format: "+44" followed by 10 digits
	City            string
	PostcodeOutcode string
	PostcodeIncode  string
	InCall          bool
	OutCall         bool
	Pricing         []PricingTier
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PricingTier is a duration label with a price in the smallest currency unit.
type PricingTier struct {
	Duration string
	Price    int64
}

// ListingPhoto is a stored photo record. ListingID is empty while the photo
// is uploaded but not yet attached to any listing.
type ListingPhoto struct {
	ID         string
	OwnerID    string
	ListingID  string
	ObjectKey  string
	IsMain     bool
	UploadedAt time.Time
}

// PhoneView is one phone-number disclosure event. ViewerID is empty for
// anonymous visitors. Rows are append-only.
type PhoneView struct {
	ID        string
	ListingID string
	ViewerID  string
	IPAddress string
	ViewedAt  time.Time
}

// PhotoScope identifies the set of photos sharing the at-most-one-main
// invariant: a listing's photos, or a user's unattached uploads when
// ListingID is empty.
type PhotoScope struct {
	OwnerID   string
	ListingID string
}

// Scope returns the photo's invariant scope.
func (p *ListingPhoto) Scope() PhotoScope {
	return PhotoScope{OwnerID: p.OwnerID, ListingID: p.ListingID}
}

// MaxPhotosPerScope caps photos per listing and unattached uploads per user.
const MaxPhotosPerScope = 5
