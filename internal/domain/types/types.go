// Package types contains the read models shared by the aggregation engine and the API.
package types

import (
	"bytes"
	"time"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/shopspring/decimal"
)

// AverageRating is a mean rating rounded to one decimal.
// The zero value means "no rating" and is never reported as 0.
type AverageRating struct {
	Value decimal.Decimal
	Valid bool
}

// NoRating returns the sentinel for an entity without ratings.
func NoRating() AverageRating { return AverageRating{} }

// RatingOf wraps d as a present rating.
func RatingOf(d decimal.Decimal) AverageRating { return AverageRating{Value: d, Valid: true} }

// String renders the rating with one decimal, or "no rating".
func (a AverageRating) String() string {
	if !a.Valid {
		return "no rating"
	}
	return a.Value.StringFixed(1)
}

// MarshalJSON encodes the rating as a number with one decimal, or null.
func (a AverageRating) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Value.StringFixed(1)), nil
}

// UnmarshalJSON accepts null, a number, or a quoted number.
func (a *AverageRating) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*a = AverageRating{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = RatingOf(d)
	return nil
}

// WorkerAggregate is derived from a worker's tips on every read.
type WorkerAggregate struct {
	WorkerID      string          `json:"worker_id"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalTips     int             `json:"total_tips"`
	RatedTips     int             `json:"rated_tips"`
	AverageRating AverageRating   `json:"average_rating"`
	TipsToday     int             `json:"tips_today"`
}

// BusinessAggregate combines the aggregates of every rostered worker.
type BusinessAggregate struct {
	OwnerID       string          `json:"owner_id"`
	TotalWorkers  int             `json:"total_workers"`
	RatedWorkers  int             `json:"rated_workers"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalTips     int             `json:"total_tips"`
	AverageRating AverageRating   `json:"average_rating"`
}

// Profile is the public shape of a directory identity.
type Profile struct {
	ID           string     `json:"id"`
	Role         model.Role `json:"role"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PayoutID     string     `json:"payout_id,omitempty"`
	BusinessName string     `json:"business_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewProfile converts a domain profile.
func NewProfile(p model.Profile) Profile {
	return Profile{
		ID:           p.ID,
		Role:         p.Role,
		Name:         p.Name,
		Email:        p.Email,
		PayoutID:     p.PayoutID,
		BusinessName: p.BusinessName,
		CreatedAt:    p.CreatedAt,
	}
}

// Tip is the public shape of a ledger record.
type Tip struct {
	ID           string          `json:"id"`
	WorkerID     string          `json:"worker_id"`
	Amount       decimal.Decimal `json:"amount"`
	CustomerName string          `json:"customer_name"`
	PaymentRef   string          `json:"payment_ref,omitempty"`
	State        model.TipState  `json:"state"`
	Rating       *int            `json:"rating"`
	Review       *string         `json:"review"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewTip converts a domain tip.
func NewTip(t model.Tip) Tip {
	return Tip{
		ID:           t.ID,
		WorkerID:     t.WorkerID,
		Amount:       t.Amount,
		CustomerName: t.CustomerName,
		PaymentRef:   t.PaymentRef,
		State:        t.State(),
		Rating:       t.Rating,
		Review:       t.Review,
		CreatedAt:    t.CreatedAt,
	}
}

// NewTips converts a slice of domain tips, preserving order.
func NewTips(tips []model.Tip) []Tip {
	out := make([]Tip, len(tips))
	for i, t := range tips {
		out[i] = NewTip(t)
	}
	return out
}

// LeaderboardEntry is one ranked row of a business roster.
type LeaderboardEntry struct {
	Rank          int             `json:"rank"`
	WorkerID      string          `json:"worker_id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	PayoutID      string          `json:"payout_id,omitempty"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalTips     int             `json:"total_tips"`
	AverageRating AverageRating   `json:"average_rating"`
}

// WorkerDashboard is everything a worker sees about their own tips.
type WorkerDashboard struct {
	Worker     Profile         `json:"worker"`
	Aggregate  WorkerAggregate `json:"aggregate"`
	RecentTips []Tip           `json:"recent_tips"`
	TipLink    string          `json:"tip_link"`
}

// BusinessDashboard is everything an owner sees about their roster.
type BusinessDashboard struct {
	Owner     Profile            `json:"owner"`
	Aggregate BusinessAggregate  `json:"aggregate"`
	Workers   []LeaderboardEntry `json:"workers"`
}
