package queue

import (
	"context"
	"fmt"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/pkg/metrics"
)

// Outbox publishes by enqueuing; the worker pool delivers asynchronously.
type Outbox struct {
	q Queue
}

// NewOutbox wraps q.
func NewOutbox(q Queue) *Outbox {
	return &Outbox{q: q}
}

// Publish accepts req for later delivery. It fails when the queue is full or closed.
func (o *Outbox) Publish(ctx context.Context, req model.PublicationRequest) error {
	if !o.q.Enqueue(ctx, req) {
		metrics.RecordPublication("dropped")
		return fmt.Errorf("%w: outbox rejected tip %s", model.ErrPublishFailed, req.TipID)
	}
	return nil
}
