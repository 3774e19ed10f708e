// Package ledger is the validation boundary in front of tip storage.
// Every write passes through here; storage adapters may assume valid input.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/pkg/logger"
	"github.com/okian/tipjar/pkg/metrics"
)

// Store is the tip storage the ledger writes through.
type Store interface {
	AppendTip(ctx context.Context, in model.NewTip) (model.Tip, error)
	AmendLatest(ctx context.Context, workerID, customerName string, upd model.ReviewUpdate) (model.Tip, error)
	AmendTip(ctx context.Context, tipID string, upd model.ReviewUpdate) (model.Tip, error)
	GetTip(ctx context.Context, tipID string) (model.Tip, error)
	ListTipsForWorker(ctx context.Context, workerID string) ([]model.Tip, error)
}

// Directory resolves workers.
type Directory interface {
	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

// Ledger records tips and attaches reviews.
type Ledger struct {
	store Store
	dir   Directory
	log   logger.Logger
}

// New creates a Ledger.
func New(store Store, dir Directory, log logger.Logger) *Ledger {
	return &Ledger{store: store, dir: dir, log: log}
}

// ResolveWorker returns the worker profile or model.ErrWorkerNotFound.
func (l *Ledger) ResolveWorker(ctx context.Context, workerID string) (model.Profile, error) {
	p, err := l.dir.GetProfile(ctx, workerID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && p.Role != model.RoleWorker) {
		return model.Profile{}, fmt.Errorf("%w: %s", model.ErrWorkerNotFound, workerID)
	}
	if err != nil {
		return model.Profile{}, model.Upstream("resolve worker "+workerID, err)
	}
	return p, nil
}

// RecordTip appends an unrated tip. A blank customer name is stored as Anonymous.
func (l *Ledger) RecordTip(ctx context.Context, in model.NewTip) (model.Tip, error) {
	if err := ValidateAmount(in.Amount); err != nil {
		return model.Tip{}, err
	}
	if _, err := l.ResolveWorker(ctx, in.WorkerID); err != nil {
		return model.Tip{}, err
	}
	in.CustomerName = CustomerOrAnonymous(in.CustomerName)

	tip, err := l.store.AppendTip(ctx, in)
	if err != nil {
		metrics.RecordErrorByComponent("ledger", "append_tip")
		return model.Tip{}, model.Upstream("record tip", err)
	}
	amount, _ := tip.Amount.Float64()
	metrics.RecordTipRecorded(amount)
	l.log.Debug(ctx, "tip recorded",
		logger.String("tip_id", tip.ID),
		logger.String("worker_id", tip.WorkerID),
		logger.String("amount", tip.Amount.String()))
	return tip, nil
}

// AttachReview rates the most recent tip the customer gave the worker.
// Submitting again overwrites the earlier rating and review.
func (l *Ledger) AttachReview(ctx context.Context, workerID, customerName string, rating int, review *string) (model.Tip, error) {
	upd, err := reviewUpdate(rating, review)
	if err != nil {
		return model.Tip{}, err
	}
	tip, err := l.store.AmendLatest(ctx, workerID, CustomerOrAnonymous(customerName), upd)
	if err != nil {
		return model.Tip{}, model.Upstream("attach review", err)
	}
	return tip, nil
}

// AttachReviewToTip rates the tip with the given id.
func (l *Ledger) AttachReviewToTip(ctx context.Context, tipID string, rating int, review *string) (model.Tip, error) {
	upd, err := reviewUpdate(rating, review)
	if err != nil {
		return model.Tip{}, err
	}
	tip, err := l.store.AmendTip(ctx, tipID, upd)
	if err != nil {
		return model.Tip{}, model.Upstream("attach review to tip", err)
	}
	return tip, nil
}

// GetTip returns one tip.
func (l *Ledger) GetTip(ctx context.Context, tipID string) (model.Tip, error) {
	tip, err := l.store.GetTip(ctx, tipID)
	if err != nil {
		return model.Tip{}, model.Upstream("get tip", err)
	}
	return tip, nil
}

// ListTipsForWorker returns the worker's tips newest first.
func (l *Ledger) ListTipsForWorker(ctx context.Context, workerID string) ([]model.Tip, error) {
	if _, err := l.ResolveWorker(ctx, workerID); err != nil {
		return nil, err
	}
	tips, err := l.store.ListTipsForWorker(ctx, workerID)
	if err != nil {
		return nil, model.Upstream("list tips", err)
	}
	return tips, nil
}

func reviewUpdate(rating int, review *string) (model.ReviewUpdate, error) {
	if err := ValidateRating(rating); err != nil {
		return model.ReviewUpdate{}, err
	}
	text, err := NormalizeReview(review)
	if err != nil {
		return model.ReviewUpdate{}, err
	}
	return model.ReviewUpdate{Rating: rating, Review: text}, nil
}
