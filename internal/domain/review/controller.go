package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tipjar/internal/domain/idempotency"
	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/pkg/logger"
	"github.com/okian/tipjar/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Ledger is the subset of the ledger the controller drives.
type Ledger interface {
	ResolveWorker(ctx context.Context, workerID string) (model.Profile, error)
	RecordTip(ctx context.Context, in model.NewTip) (model.Tip, error)
	AttachReview(ctx context.Context, workerID, customerName string, rating int, review *string) (model.Tip, error)
	AttachReviewToTip(ctx context.Context, tipID string, rating int, review *string) (model.Tip, error)
}

// PaymentRequest asks the payment collaborator to authorize a tip.
type PaymentRequest struct {
	WorkerID     string
	PayoutID     string
	Amount       decimal.Decimal
	CustomerName string
	Reference    string
}

// PaymentReceipt confirms an authorization.
type PaymentReceipt struct {
	Reference    string
	AuthorizedAt time.Time
}

// PaymentAuthorizer authorizes a payment before it is recorded.
// A non-nil error means the payment did not happen.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, req PaymentRequest) (PaymentReceipt, error)
}

// Publisher posts a promoted rating to a public review site.
type Publisher interface {
	Publish(ctx context.Context, req model.PublicationRequest) error
}

// TipSubmission is a customer's tip.
type TipSubmission struct {
	WorkerID     string
	Amount       decimal.Decimal
	CustomerName string
	// PaymentRef is optional. When set, the same reference is recorded once.
	PaymentRef string
}

// ReviewSubmission is a customer's rating. When TipID is set it selects the
// tip directly; otherwise the customer's most recent tip to the worker is rated.
type ReviewSubmission struct {
	TipID        string
	WorkerID     string
	CustomerName string
	Rating       int
	Review       *string
}

// ReviewOutcome reports what happened to a rating.
type ReviewOutcome struct {
	Tip        model.Tip
	Visibility Visibility
	// Published is true when the publisher accepted a promotion candidate.
	Published    bool
	PublishError error
}

// Controller runs the tip lifecycle: authorize, record, rate, route.
type Controller struct {
	ledger    Ledger
	payments  PaymentAuthorizer
	publisher Publisher
	guard     idempotency.Guard
	log       logger.Logger
	now       func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithIdempotencyGuard rejects replayed payment references before payment.
func WithIdempotencyGuard(g idempotency.Guard) Option {
	return func(c *Controller) { c.guard = g }
}

// WithClock overrides the clock stamped on publication requests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController wires a Controller to its collaborators.
func NewController(ledger Ledger, payments PaymentAuthorizer, publisher Publisher, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		ledger:    ledger,
		payments:  payments,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitTip authorizes the payment and records the tip.
// Nothing is charged for an invalid amount, an unknown worker or a replay.
func (c *Controller) SubmitTip(ctx context.Context, sub TipSubmission) (model.Tip, error) {
	if !sub.Amount.IsPositive() {
		return model.Tip{}, model.ErrInvalidAmount
	}
	worker, err := c.ledger.ResolveWorker(ctx, sub.WorkerID)
	if err != nil {
		return model.Tip{}, err
	}

	claimed := false
	if sub.PaymentRef != "" && c.guard != nil {
		if !c.guard.Claim(ctx, sub.PaymentRef) {
			metrics.RecordDuplicatePayment()
			return model.Tip{}, fmt.Errorf("%w: %s", model.ErrDuplicatePayment, sub.PaymentRef)
		}
		claimed = true
	}
	release := func() {
		if claimed {
			c.guard.Release(ctx, sub.PaymentRef)
		}
	}

	start := time.Now()
	receipt, err := c.payments.Authorize(ctx, PaymentRequest{
		WorkerID:     worker.ID,
		PayoutID:     worker.PayoutID,
		Amount:       sub.Amount,
		CustomerName: sub.CustomerName,
		Reference:    sub.PaymentRef,
	})
	metrics.RecordPaymentLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		release()
		metrics.RecordPaymentFailure()
		if !errors.Is(err, model.ErrUpstream) {
			err = fmt.Errorf("%w: %w", model.ErrPaymentDeclined, err)
		}
		c.log.Warn(ctx, "payment not authorized", logger.String("worker_id", worker.ID), logger.Error(err))
		return model.Tip{}, err
	}

	tip, err := c.ledger.RecordTip(ctx, model.NewTip{
		WorkerID:     worker.ID,
		Amount:       sub.Amount,
		CustomerName: sub.CustomerName,
		PaymentRef:   receipt.Reference,
	})
	if err != nil {
		if errors.Is(err, model.ErrDuplicatePayment) {
			metrics.RecordDuplicatePayment()
		} else {
			release()
		}
		return model.Tip{}, err
	}
	return tip, nil
}

// SubmitReview attaches the rating and hands promotion candidates to the publisher.
// A failed publication does not undo the rating.
func (c *Controller) SubmitReview(ctx context.Context, sub ReviewSubmission) (ReviewOutcome, error) {
	var (
		tip model.Tip
		err error
	)
	if sub.TipID != "" {
		tip, err = c.ledger.AttachReviewToTip(ctx, sub.TipID, sub.Rating, sub.Review)
	} else {
		tip, err = c.ledger.AttachReview(ctx, sub.WorkerID, sub.CustomerName, sub.Rating, sub.Review)
	}
	if err != nil {
		return ReviewOutcome{}, err
	}

	out := ReviewOutcome{Tip: tip, Visibility: Classify(tip.Rating)}
	metrics.RecordReviewAttached(string(out.Visibility))
	if out.Visibility != PromotionCandidate {
		return out, nil
	}

	req := model.PublicationRequest{
		TipID:        tip.ID,
		WorkerID:     tip.WorkerID,
		CustomerName: tip.CustomerName,
		Rating:       *tip.Rating,
		RequestedAt:  c.now().UTC(),
	}
	if tip.Review != nil {
		req.Review = *tip.Review
	}
	if err := c.publisher.Publish(ctx, req); err != nil {
		out.PublishError = err
		c.log.Warn(ctx, "review not published",
			logger.String("tip_id", tip.ID),
			logger.Error(err))
		return out, nil
	}
	out.Published = true
	return out, nil
}
