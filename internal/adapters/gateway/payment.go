package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/internal/domain/review"
)

// PaymentOption configures a SimulatedPayments.
type PaymentOption func(*SimulatedPayments)

// WithPaymentLatency sets the simulated authorization latency range.
func WithPaymentLatency(minLatency, maxLatency time.Duration) PaymentOption {
	return func(p *SimulatedPayments) { p.latency.set(minLatency, maxLatency) }
}

// WithDeclineRate declines the given fraction of authorizations.
func WithDeclineRate(rate float64) PaymentOption {
	return func(p *SimulatedPayments) { p.declineRate = rate }
}

// WithDecider lets a caller decide each authorization. A non-nil error declines.
func WithDecider(fn func(review.PaymentRequest) error) PaymentOption {
	return func(p *SimulatedPayments) { p.decide = fn }
}

// SimulatedPayments approves payments after a short delay.
type SimulatedPayments struct {
	latency     *latency
	declineRate float64
	decide      func(review.PaymentRequest) error
	now         func() time.Time
}

var _ review.PaymentAuthorizer = (*SimulatedPayments)(nil)

// NewSimulatedPayments creates a payment simulator. By default every
// authorization succeeds after 50 to 200ms.
func NewSimulatedPayments(opts ...PaymentOption) *SimulatedPayments {
	p := &SimulatedPayments{
		latency: newLatency(50*time.Millisecond, 200*time.Millisecond),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authorize implements review.PaymentAuthorizer. The request reference is
// echoed back; a fresh one is minted when it is empty.
func (p *SimulatedPayments) Authorize(ctx context.Context, req review.PaymentRequest) (review.PaymentReceipt, error) {
	if err := p.latency.wait(ctx); err != nil {
		return review.PaymentReceipt{}, err
	}
	if p.decide != nil {
		if err := p.decide(req); err != nil {
			return review.PaymentReceipt{}, fmt.Errorf("%w: %w", model.ErrPaymentDeclined, err)
		}
	}
	if p.latency.chance(p.declineRate) {
		return review.PaymentReceipt{}, fmt.Errorf("%w: simulated decline", model.ErrPaymentDeclined)
	}
	ref := req.Reference
	if ref == "" {
		ref = "pay_" + uuid.NewString()
	}
	return review.PaymentReceipt{Reference: ref, AuthorizedAt: p.now().UTC()}, nil
}
