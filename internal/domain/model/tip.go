package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnonymousCustomer is recorded when a tip or review carries no customer name.
const AnonymousCustomer = "Anonymous"

// Rating bounds and review length, in characters.
const (
	MinRating       = 1
	MaxRating       = 5
	MaxReviewLength = 200
)

// TipState is the lifecycle state of a tip record.
type TipState string

const (
	TipCreated TipState = "created"
	TipRated   TipState = "rated"
)

// Tip is a single ledger record. Amount and CreatedAt never change after
// creation; Rating and Review are filled in by a later review.
type Tip struct {
	ID           string
	WorkerID     string
	Amount       decimal.Decimal
	CustomerName string
	PaymentRef   string
	CreatedAt    time.Time
	Rating       *int
	Review       *string
}

// State derives the lifecycle state from the presence of a rating.
func (t Tip) State() TipState {
	if t.Rating != nil {
		return TipRated
	}
	return TipCreated
}

// NewTip carries the input of a ledger append.
type NewTip struct {
	WorkerID     string
	Amount       decimal.Decimal
	CustomerName string
	PaymentRef   string
}

// ReviewUpdate is the amendment applied to a tip.
type ReviewUpdate struct {
	Rating int
	Review *string
}

// PublicationRequest asks the publisher to post a promoted review publicly.
type PublicationRequest struct {
	TipID        string
	WorkerID     string
	CustomerName string
	Rating       int
	Review       string
	RequestedAt  time.Time
}
