package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of these so callers can
// branch with errors.Is on either the kind or the specific error.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrUpstream   = errors.New("upstream failure")
)

// Specific errors.
var (
	ErrWorkerNotFound      = fmt.Errorf("worker %w", ErrNotFound)
	ErrOwnerNotFound       = fmt.Errorf("business owner %w", ErrNotFound)
	ErrTipNotFound         = fmt.Errorf("tip %w", ErrNotFound)
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrInvalidRating       = fmt.Errorf("%w: rating must be between %d and %d", ErrValidation, MinRating, MaxRating)
	ErrReviewTooLong       = fmt.Errorf("%w: review exceeds %d characters", ErrValidation, MaxReviewLength)
	ErrInvalidProfile      = fmt.Errorf("%w: invalid profile", ErrValidation)
	ErrDuplicateMembership = fmt.Errorf("%w: worker already belongs to this business", ErrConflict)
	ErrDuplicateEmail      = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrDuplicatePayment    = fmt.Errorf("%w: payment already recorded", ErrConflict)
	ErrPaymentDeclined     = fmt.Errorf("%w: payment declined", ErrUpstream)
	ErrPublishFailed       = fmt.Errorf("%w: review publication failed", ErrUpstream)
)

// Kind returns the kind sentinel err wraps, or nil when it wraps none.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrUpstream} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Upstream wraps a storage or directory failure with op. Errors that already
// carry a kind keep it; anything else becomes ErrUpstream.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
