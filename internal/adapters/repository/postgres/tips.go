package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/okian/tipjar/internal/domain/model"
)

const (
	tipColumns = `id, worker_id, amount::text, customer_name, payment_ref, created_at, rating, review`

	insertTipQuery = `
INSERT INTO tips(id, worker_id, amount, customer_name, payment_ref, created_at)
VALUES ($1, $2, $3::numeric, $4, $5, $6)`

	selectTipQuery      = `SELECT ` + tipColumns + ` FROM tips WHERE id=$1`
	selectTipsForWorker = `SELECT ` + tipColumns + ` FROM tips WHERE worker_id=$1 ORDER BY created_at DESC, seq DESC`
	updateReviewQuery   = `UPDATE tips SET rating=$2, review=$3 WHERE id=$1 RETURNING ` + tipColumns

	lockCustomerQuery = `SELECT pg_advisory_xact_lock(hashtext($1 || '/' || $2))`

	selectLatestForReview = `
SELECT id FROM tips
WHERE worker_id=$1 AND customer_name=$2
ORDER BY created_at DESC, seq DESC
LIMIT 1
FOR UPDATE`
)

// AppendTip implements repository.Ledger.
func (s *Store) AppendTip(ctx context.Context, in model.NewTip) (model.Tip, error) {
	defer observe("append_tip", time.Now())

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Tip{}, model.Upstream("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var role string
	if err := tx.QueryRow(ctx, selectRoleLockQuery, in.WorkerID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Tip{}, fmt.Errorf("%w: %s", model.ErrWorkerNotFound, in.WorkerID)
		}
		return model.Tip{}, model.Upstream("worker lookup", err)
	}
	if model.Role(role) != model.RoleWorker {
		return model.Tip{}, fmt.Errorf("%w: %s", model.ErrWorkerNotFound, in.WorkerID)
	}

	if _, err := tx.Exec(ctx, lockCustomerQuery, in.WorkerID, in.CustomerName); err != nil {
		return model.Tip{}, model.Upstream("lock customer", err)
	}

	tip := model.Tip{
		ID:           s.newID(),
		WorkerID:     in.WorkerID,
		Amount:       in.Amount,
		CustomerName: in.CustomerName,
		PaymentRef:   in.PaymentRef,
		CreatedAt:    s.stamp(),
	}
	var paymentRef *string
	if in.PaymentRef != "" {
		paymentRef = &tip.PaymentRef
	}
	if _, err := tx.Exec(ctx, insertTipQuery,
		tip.ID, tip.WorkerID, tip.Amount.String(), tip.CustomerName, paymentRef, tip.CreatedAt); err != nil {
		err = translate("insert tip", err)
		if errors.Is(err, model.ErrDuplicatePayment) {
			return model.Tip{}, fmt.Errorf("%w: %s", model.ErrDuplicatePayment, in.PaymentRef)
		}
		return model.Tip{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Tip{}, model.Upstream("commit tip", err)
	}
	return tip, nil
}

// AmendLatest implements repository.Ledger. It holds the same
// (worker, customer) advisory lock as AppendTip, then locks the newest row.
func (s *Store) AmendLatest(ctx context.Context, workerID, customerName string, upd model.ReviewUpdate) (model.Tip, error) {
	defer observe("amend_latest", time.Now())

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Tip{}, model.Upstream("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, lockCustomerQuery, workerID, customerName); err != nil {
		return model.Tip{}, model.Upstream("lock customer", err)
	}

	var tipID string
	if err := tx.QueryRow(ctx, selectLatestForReview, workerID, customerName).Scan(&tipID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Tip{}, fmt.Errorf("%w: worker %s, customer %q", model.ErrTipNotFound, workerID, customerName)
		}
		return model.Tip{}, model.Upstream("latest tip", err)
	}

	tip, err := scanTip(tx.QueryRow(ctx, updateReviewQuery, tipID, int16(upd.Rating), upd.Review))
	if err != nil {
		return model.Tip{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Tip{}, model.Upstream("commit review", err)
	}
	return tip, nil
}

// AmendTip implements repository.Ledger.
func (s *Store) AmendTip(ctx context.Context, tipID string, upd model.ReviewUpdate) (model.Tip, error) {
	defer observe("amend_tip", time.Now())

	tip, err := scanTip(s.db.QueryRow(ctx, updateReviewQuery, tipID, int16(upd.Rating), upd.Review))
	if errors.Is(err, model.ErrTipNotFound) {
		return model.Tip{}, fmt.Errorf("%w: %s", model.ErrTipNotFound, tipID)
	}
	return tip, err
}

// GetTip implements repository.Ledger.
func (s *Store) GetTip(ctx context.Context, tipID string) (model.Tip, error) {
	tip, err := scanTip(s.db.QueryRow(ctx, selectTipQuery, tipID))
	if errors.Is(err, model.ErrTipNotFound) {
		return model.Tip{}, fmt.Errorf("%w: %s", model.ErrTipNotFound, tipID)
	}
	return tip, err
}

// ListTipsForWorker implements repository.Ledger.
func (s *Store) ListTipsForWorker(ctx context.Context, workerID string) ([]model.Tip, error) {
	defer observe("list_tips", time.Now())

	rows, err := s.db.Query(ctx, selectTipsForWorker, workerID)
	if err != nil {
		return nil, model.Upstream("list tips", err)
	}
	defer rows.Close()

	out := make([]model.Tip, 0)
	for rows.Next() {
		tip, err := scanTip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tip)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Upstream("iterate tips", err)
	}
	return out, nil
}

func scanTip(row pgx.Row) (model.Tip, error) {
	var (
		t          model.Tip
		amount     string
		paymentRef *string
		rating     *int16
	)
	err := row.Scan(&t.ID, &t.WorkerID, &amount, &t.CustomerName, &paymentRef, &t.CreatedAt, &rating, &t.Review)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Tip{}, model.ErrTipNotFound
		}
		return model.Tip{}, model.Upstream("scan tip", err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.Tip{}, model.Upstream("scan tip amount", err)
	}
	if paymentRef != nil {
		t.PaymentRef = *paymentRef
	}
	if rating != nil {
		r := int(*rating)
		t.Rating = &r
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
