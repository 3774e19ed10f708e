// Package worker delivers queued review publications to the public review site.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/pkg/logger"
	"github.com/okian/tipjar/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultMaxAttempts      = 3
	defaultRetryBackoff     = 100 * time.Millisecond
	metricsUpdateInterval   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Request is what workers read off the queue.
type Request = model.PublicationRequest

// Publisher posts a review to the public site.
type Publisher interface {
	Publish(ctx context.Context, req model.PublicationRequest) error
}

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Request
}

// Worker delivers publication requests until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker after its in-flight request.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue       Queue
	publisher   Publisher
	name        string
	maxAttempts int
	backoff     time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	// set by the pool
	active *atomic.Int64

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, publisher Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       queue,
		publisher:   publisher,
		name:        "worker",
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultRetryBackoff,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Get().Named("publisher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if err := w.deliver(ctx, req); err != nil {
				w.logger.Error(ctx, "review publication abandoned",
					logger.String("tip_id", req.TipID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
}

// deliver publishes req, retrying failures with a linear backoff.
func (w *InMemoryWorker) deliver(ctx context.Context, req Request) error {
	start := time.Now()
	if w.active != nil {
		w.active.Add(1)
		defer w.active.Add(-1)
	}
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	var err error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err = w.publisher.Publish(ctx, req); err == nil {
			metrics.RecordPublication("published")
			w.logger.Debug(ctx, "review published",
				logger.String("tip_id", req.TipID),
				logger.Int("attempt", attempt))
			return nil
		}
		if errors.Is(err, context.Canceled) || attempt == w.maxAttempts {
			break
		}
		w.logger.Warn(ctx, "publication attempt failed",
			logger.String("tip_id", req.TipID),
			logger.Int("attempt", attempt),
			logger.Error(err))

		select {
		case <-ctx.Done():
			err = ctx.Err()
			attempt = w.maxAttempts
		case <-w.shutdown:
			attempt = w.maxAttempts
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}

	metrics.RecordPublication("failed")
	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", "publication_failed")
	metrics.RecordErrorByType("publication_failed", "medium")
	return fmt.Errorf("publish tip %s: %w", req.TipID, err)
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64
	started atomic.Bool

	shutdown     chan struct{}
	shutdownOnce sync.Once

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. Options apply to every worker.
func NewPool(workerCount int, queue Queue, publisher Publisher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("publisher-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(queue, publisher, workerOpts...)
		w.active = &p.active
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers delivering a request right now.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	active := p.Active()
	metrics.UpdateWorkerActiveCount(active)
	metrics.UpdateWorkerIdleCount(len(p.workers) - active)
}

// Stop signals every worker to stop without draining the queue.
func (p *Pool) Stop() {
	p.shutdownOnce.Do(func() { close(p.shutdown) })
	for _, w := range p.workers {
		w.stop()
	}
	if !p.started.Load() {
		return
	}
	for _, w := range p.workers {
		<-w.done
	}
}

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx (or the pool timeout) expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })
	if !p.started.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			w.stop()
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker", i))
		}
	}
	p.updateMetrics()
	if timedOut {
		return fmt.Errorf("publisher pool drain: %w", shutdownCtx.Err())
	}
	return nil
}
