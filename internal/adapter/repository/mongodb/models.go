package mongodb

import (
	"time"

	"github.com/citylistings/listing-service/internal/listing/domain"
)

// listingDocument is the stored shape of a Listing. Pricing tiers are
// embedded so the wholesale replace on update is one atomic document write.
type listingDocument struct {
	ID              string            `bson:"_id"`
	UserID          string            `bson:"user_id"`
	Title           string            `bson:"title"`
	Description     string            `bson:"description"`
	Location        string            `bson:"location"`
	Phone           string            `bson:"phone"`
	City            string            `bson:"city"`
	PostcodeOutcode string            `bson:"postcode_outcode"`
	PostcodeIncode  string            `bson:"postcode_incode"`
	InCall          bool              `bson:"in_call"`
	OutCall         bool              `bson:"out_call"`
	Pricing         []pricingDocument `bson:"pricing,omitempty"`
	CreatedAt       time.Time         `bson:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at"`
}

type pricingDocument struct {
	Duration string `bson:"duration"`
	Price    int64  `bson:"price"`
}

// photoDocument is the stored shape of a ListingPhoto. ListingID is nil for
// unattached uploads.
type photoDocument struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	ListingID  *string   `bson:"listing_id"`
	ObjectKey  string    `bson:"object_key"`
	IsMain     bool      `bson:"is_main"`
	UploadedAt time.Time `bson:"uploaded_at"`
}

// phoneViewDocument is one append-only phone disclosure event.
type phoneViewDocument struct {
	ID        string    `bson:"_id"`
	ListingID string    `bson:"listing_id"`
	UserID    *string   `bson:"user_id"`
	IPAddress string    `bson:"ip_address"`
	ViewedAt  time.Time `bson:"viewed_at"`
}

func toListingDocument(l *domain.Listing) *listingDocument {
	if l == nil {
		return nil
	}
	var pricing []pricingDocument
	for _, tier := range l.Pricing {
		pricing = append(pricing, pricingDocument{Duration: tier.Duration, Price: tier.Price})
	}
	return &listingDocument{
		ID:              l.ID,
		UserID:          l.OwnerID,
		Title:           l.Title,
		Description:     l.Description,
		Location:        l.Location,
		Phone:           l.Phone,
		City:            l.City,
		PostcodeOutcode: l.PostcodeOutcode,
		PostcodeIncode:  l.PostcodeIncode,
		InCall:          l.InCall,
		OutCall:         l.OutCall,
		Pricing:         pricing,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func toDomainListing(d *listingDocument) *domain.Listing {
	if d == nil {
		return nil
	}
	var pricing []domain.PricingTier
	for _, tier := range d.Pricing {
		pricing = append(pricing, domain.PricingTier{Duration: tier.Duration, Price: tier.Price})
	}
	return &domain.Listing{
		ID:              d.ID,
		OwnerID:         d.UserID,
		Title:           d.Title,
		Description:     d.Description,
		Location:        d.Location,
		Phone:           d.Phone,
		City:            d.City,
		PostcodeOutcode: d.PostcodeOutcode,
		PostcodeIncode:  d.PostcodeIncode,
		InCall:          d.InCall,
		OutCall:         d.OutCall,
		Pricing:         pricing,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func toDomainListings(docs []*listingDocument) []*domain.Listing {
	listings := make([]*domain.Listing, 0, len(docs))
	for _, doc := range docs {
		listings = append(listings, toDomainListing(doc))
	}
	return listings
}

func toPhotoDocument(p *domain.ListingPhoto) *photoDocument {
	if p == nil {
		return nil
	}
	var listingID *string
	if p.ListingID != "" {
		id := p.ListingID
		listingID = &id
	}
	return &photoDocument{
		ID:         p.ID,
		UserID:     p.OwnerID,
		ListingID:  listingID,
		ObjectKey:  p.ObjectKey,
		IsMain:     p.IsMain,
		UploadedAt: p.UploadedAt,
	}
}

func toDomainPhoto(d *photoDocument) *domain.ListingPhoto {
	if d == nil {
		return nil
	}
	listingID := ""
	if d.ListingID != nil {
		listingID = *d.ListingID
	}
	return &domain.ListingPhoto{
		ID:         d.ID,
		OwnerID:    d.UserID,
		ListingID:  listingID,
		ObjectKey:  d.ObjectKey,
		IsMain:     d.IsMain,
		UploadedAt: d.UploadedAt,
	}
}

func toDomainPhotos(docs []*photoDocument) []*domain.ListingPhoto {
	photos := make([]*domain.ListingPhoto, 0, len(docs))
	for _, doc := range docs {
		photos = append(photos, toDomainPhoto(doc))
	}
	return photos
}

func toPhoneViewDocument(v *domain.PhoneView) *phoneViewDocument {
	if v == nil {
		return nil
	}
	var userID *string
	if v.ViewerID != "" {
		id := v.ViewerID
		userID = &id
	}
	return &phoneViewDocument{
		ID:        v.ID,
		ListingID: v.ListingID,
		UserID:    userID,
		IPAddress: v.IPAddress,
		ViewedAt:  v.ViewedAt,
	}
}
