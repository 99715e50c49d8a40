package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/citylistings/listing-service/internal/listing/domain"
	"github.com/citylistings/listing-service/internal/listing/usecase"
)

const (
	maxPhotoBytes       = 10 << 20 // decoded size per photo
	maxPhotosPerRequest = domain.MaxPhotosPerScope
)

var (
	errTooManyFiles = errors.New("too many files in one request")
	errFileTooLarge = errors.New("file exceeds the size limit")
	errBadEncoding  = errors.New("file payload is not valid base64")
)

type pricingPayload struct {
	Duration string `json:"duration"`
	Price    int64  `json:"price"`
}

type listingPayload struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Location        string           `json:"location"`
	Phone           string           `json:"phone"`
	City            string           `json:"city"`
	PostcodeOutcode string           `json:"postcodeOutcode"`
	PostcodeIncode  string           `json:"postcodeIncode"`
	InCall          bool             `json:"incall"`
	OutCall         bool             `json:"outcall"`
	Pricing         []pricingPayload `json:"pricing"`
}

func (p listingPayload) toInput() usecase.ListingInput {
	in := usecase.ListingInput{
		Title:           strings.TrimSpace(p.Title),
		Description:     strings.TrimSpace(p.Description),
		Location:        strings.TrimSpace(p.Location),
		Phone:           strings.TrimSpace(p.Phone),
		City:            strings.TrimSpace(p.City),
		PostcodeOutcode: strings.ToUpper(strings.TrimSpace(p.PostcodeOutcode)),
		PostcodeIncode:  strings.ToUpper(strings.TrimSpace(p.PostcodeIncode)),
		InCall:          p.InCall,
		OutCall:         p.OutCall,
	}
	if p.Pricing != nil {
		in.Pricing = make([]usecase.PricingInput, 0, len(p.Pricing))
		for _, tier := range p.Pricing {
			in.Pricing = append(in.Pricing, usecase.PricingInput{Duration: tier.Duration, Price: tier.Price})
		}
	}
	return in
}

type createListingRequest struct {
	listingPayload
	PhotoIDs    []string `json:"photoIds"`
	MainPhotoID string   `json:"mainPhotoId"`
}

type mainImagePayload struct {
	URL          string `json:"url"`
	IsNewFile    bool   `json:"isNewFile"`
	NewFileIndex int    `json:"newFileIndex"`
}

type updateListingRequest struct {
	listingPayload
	ID         string            `json:"id"`
	KeepImages []string          `json:"keepImages"`
	NewFiles   []string          `json:"newFiles"` // base64-encoded payloads
	MainImage  *mainImagePayload `json:"mainImage"`
}

func (r updateListingRequest) mainSelection() *usecase.MainSelection {
	if r.MainImage == nil {
		return nil
	}
	return &usecase.MainSelection{
		URL:          r.MainImage.URL,
		IsNewFile:    r.MainImage.IsNewFile,
		NewFileIndex: r.MainImage.NewFileIndex,
	}
}

type deleteListingRequest struct {
	ID string `json:"id"`
}

type uploadPhotosRequest struct {
	ListingID string   `json:"listingId"`
	Files     []string `json:"files"` // base64-encoded payloads
}

type photoIDRequest struct {
	ID string `json:"id"`
}

type revealPhoneRequest struct {
	ListingID string `json:"listingId"`
}

// decodeFiles turns base64 payloads into raw bytes, bounding count and
// decoded size before any of them hits object storage. A data URL prefix is
// tolerated and stripped; the real content type is sniffed later anyway.
func decodeFiles(encoded []string) ([][]byte, error) {
	if len(encoded) > maxPhotosPerRequest {
		return nil, fmt.Errorf("%w: got %d, limit %d", errTooManyFiles, len(encoded), maxPhotosPerRequest)
	}
	files := make([][]byte, 0, len(encoded))
	for _, raw := range encoded {
		if idx := strings.Index(raw, ";base64,"); idx >= 0 {
			raw = raw[idx+len(";base64,"):]
		}
		if base64.StdEncoding.DecodedLen(len(raw)) > maxPhotoBytes {
			return nil, errFileTooLarge
		}
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, errBadEncoding
		}
		if len(data) > maxPhotoBytes {
			return nil, errFileTooLarge
		}
		files = append(files, data)
	}
	return files, nil
}
