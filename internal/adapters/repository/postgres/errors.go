package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/pkg/metrics"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// translate maps constraint violations onto domain errors. Anything else is
// an upstream failure wrapped with op.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return model.Upstream(op, err)
	}
	switch {
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == "profiles_email_key":
		return model.ErrDuplicateEmail
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == "business_workers_pkey":
		return model.ErrDuplicateMembership
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == "tips_payment_ref_key":
		return model.ErrDuplicatePayment
	case pgErr.Code == uniqueViolation:
		return fmt.Errorf("%s: %w: %s", op, model.ErrConflict, pgErr.ConstraintName)
	case pgErr.Code == foreignKeyViolation && pgErr.ConstraintName == "tips_worker_id_fkey":
		return model.ErrWorkerNotFound
	default:
		return model.Upstream(op, err)
	}
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
