package usecase

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/citylistings/listing-service/internal/listing/domain"
)

// ListingInput carries the scalar listing fields accepted by create/update.
// A nil Pricing slice means pricing is not part of the payload.
type ListingInput struct {
	Title           string `validate:"required"`
	Description     string `validate:"required"`
	Location        string `validate:"required"`
	Phone           string `validate:"required,ukphone"`
	City            string `validate:"required"`
	PostcodeOutcode string `validate:"required"`
	PostcodeIncode  string `validate:"required"`
	InCall          bool
	OutCall         bool
	Pricing         []PricingInput `validate:"omitempty,dive"`
}

type PricingInput struct {
	Duration string `validate:"required"`
	Price    int64  `validate:"gte=0"`
}

// MainSelection resolves which photo becomes main after an update: either an
// existing photo referenced by its (signed or bare-key) URL, or an index into
// the newly uploaded files of the same request.
type MainSelection struct {
	URL          string
	IsNewFile    bool
	NewFileIndex int
}

// Phone numbers are stored normalized: "+44" followed by exactly 10 digits.
var ukPhonePattern = regexp.MustCompile(`^\+44\d{10}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("ukphone", func(fl validator.FieldLevel) bool {
		return ukPhonePattern.MatchString(fl.Field().String())
	})
	return v
}

var fieldMessages = map[string]string{
	"required": "is required",
	"ukphone":  "must be +44 followed by 10 digits",
	"gte":      "must not be negative",
}

// validateListingInput runs before any storage call and reports every failing
// field at once.
func validateListingInput(in ListingInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &domain.ValidationError{Fields: map[string]string{"input": "is invalid"}}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		fields[fe.Field()] = msg
	}
	return &domain.ValidationError{Fields: fields}
}

func (in ListingInput) pricingTiers() []domain.PricingTier {
	if in.Pricing == nil {
		return nil
	}
	tiers := make([]domain.PricingTier, 0, len(in.Pricing))
	for _, p := range in.Pricing {
		tiers = append(tiers, domain.PricingTier{Duration: p.Duration, Price: p.Price})
	}
	return tiers
}
