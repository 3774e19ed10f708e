package ledger

import (
	"strings"
	"unicode/utf8"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/shopspring/decimal"
)

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return model.ErrInvalidAmount
	}
	return nil
}

// ValidateRating rejects ratings outside [MinRating, MaxRating].
func ValidateRating(rating int) error {
	if rating < model.MinRating || rating > model.MaxRating {
		return model.ErrInvalidRating
	}
	return nil
}

// NormalizeReview trims the review text. Blank text becomes absent.
// Length is counted in characters, not bytes.
func NormalizeReview(review *string) (*string, error) {
	if review == nil {
		return nil, nil
	}
	text := strings.TrimSpace(*review)
	if text == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(text) > model.MaxReviewLength {
		return nil, model.ErrReviewTooLong
	}
	return &text, nil
}

// CustomerOrAnonymous substitutes the anonymous customer for a blank name.
func CustomerOrAnonymous(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.AnonymousCustomer
	}
	return name
}
