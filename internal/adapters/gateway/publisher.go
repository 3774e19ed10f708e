package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/pkg/metrics"
)

// PublisherOption configures a SimulatedPublisher.
type PublisherOption func(*SimulatedPublisher)

// WithPublishLatency sets the simulated posting latency range.
func WithPublishLatency(minLatency, maxLatency time.Duration) PublisherOption {
	return func(p *SimulatedPublisher) { p.latency.set(minLatency, maxLatency) }
}

// WithFailureRate fails the given fraction of postings.
func WithFailureRate(rate float64) PublisherOption {
	return func(p *SimulatedPublisher) { p.failureRate = rate }
}

// SimulatedPublisher posts reviews to an in-memory public board.
type SimulatedPublisher struct {
	latency     *latency
	failureRate float64

	mu    sync.RWMutex
	board []model.PublicationRequest
}

// NewSimulatedPublisher creates a publisher that takes 200ms to 1s per post.
func NewSimulatedPublisher(opts ...PublisherOption) *SimulatedPublisher {
	p := &SimulatedPublisher{latency: newLatency(200*time.Millisecond, time.Second)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish posts req to the board.
func (p *SimulatedPublisher) Publish(ctx context.Context, req model.PublicationRequest) error {
	start := time.Now()
	defer func() {
		metrics.RecordPublicationLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := p.latency.wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", model.ErrPublishFailed, err)
	}
	if p.latency.chance(p.failureRate) {
		return fmt.Errorf("%w: simulated outage", model.ErrPublishFailed)
	}

	p.mu.Lock()
	p.board = append(p.board, req)
	p.mu.Unlock()
	return nil
}

// Published returns every review posted so far, oldest first.
func (p *SimulatedPublisher) Published() []model.PublicationRequest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.PublicationRequest, len(p.board))
	copy(out, p.board)
	return out
}
