// Package service assembles the tipping ledger from configuration and
// exposes it as an http.Handler.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/okian/tipjar/internal/adapters/gateway"
	"github.com/okian/tipjar/internal/adapters/http/api"
	"github.com/okian/tipjar/internal/adapters/http/swagger"
	"github.com/okian/tipjar/internal/adapters/mq/queue"
	"github.com/okian/tipjar/internal/adapters/mq/worker"
	"github.com/okian/tipjar/internal/adapters/repository"
	"github.com/okian/tipjar/internal/adapters/repository/postgres"
	"github.com/okian/tipjar/internal/config"
	"github.com/okian/tipjar/internal/domain/aggregate"
	"github.com/okian/tipjar/internal/domain/idempotency"
	"github.com/okian/tipjar/internal/domain/ledger"
	"github.com/okian/tipjar/internal/domain/review"
	"github.com/okian/tipjar/internal/domain/roster"
	"github.com/okian/tipjar/pkg/logger"
	"github.com/okian/tipjar/pkg/metrics"
)

const (
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// ErrNotStarted is returned by Handler before Start succeeds.
var ErrNotStarted = errors.New("service not started")

// Service owns every component of the running ledger.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	store     repository.Store
	guard     idempotency.Guard
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	publisher *gateway.SimulatedPublisher
	payments  review.PaymentAuthorizer
	handler   http.Handler

	// background context for the publisher pool; it outlives request contexts
	poolCancel context.CancelFunc

	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects a ready store instead of opening the configured one.
// The service takes ownership and closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithPayments replaces the simulated payment gateway.
func WithPayments(p review.PaymentAuthorizer) Option {
	return func(s *Service) { s.payments = p }
}

// New constructs a Service. A nil cfg means defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Start opens storage, starts the publisher pool and builds the HTTP handler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting tipjar service...", logger.String("store", s.cfg.Store))

	if s.store == nil {
		store, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}

	s.guard = idempotency.NewInMemoryGuard(idempotency.WithMaxSize(s.cfg.IdempotencySize))
	if s.payments == nil {
		s.payments = gateway.NewSimulatedPayments(
			gateway.WithPaymentLatency(ms(s.cfg.PaymentLatencyMinMS), ms(s.cfg.PaymentLatencyMaxMS)),
		)
	}
	s.publisher = gateway.NewSimulatedPublisher(
		gateway.WithPublishLatency(ms(s.cfg.PublishLatencyMinMS), ms(s.cfg.PublishLatencyMaxMS)),
	)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.PublishQueueSize))
	s.pool = worker.NewPool(s.cfg.PublishWorkerCount, s.queue, s.publisher)
	poolCtx, cancel := context.WithCancel(context.Background())
	s.poolCancel = cancel
	s.pool.Start(poolCtx)

	l := ledger.New(s.store, s.store, s.logger.Named("ledger"))
	controller := review.NewController(l, s.payments, queue.NewOutbox(s.queue), s.logger.Named("review"),
		review.WithIdempotencyGuard(s.guard))

	apiServer := api.NewServer(api.Dependencies{
		Directory:  s.store,
		Roster:     roster.NewManager(s.store, s.store, s.logger.Named("roster")),
		Tips:       controller,
		Ledger:     l,
		Aggregates: aggregate.NewEngine(s.store, s.store, s.store),
		Stats:      s,
		Pinger:     s.store,
	},
		api.WithMaxLeaderboardLimit(s.cfg.MaxLeaderboardLimit),
		api.WithRecentTipsLimit(s.cfg.RecentTipsLimit),
	)

	mux := http.NewServeMux()
	swagger.Register(mux)
	apiServer.Register(mux)
	s.handler = apiServer.Handler(mux)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "tipjar service started",
		logger.Int("publish_workers", s.pool.Size()),
		logger.Int("publish_queue_size", s.cfg.PublishQueueSize),
		logger.Int("idempotency_size", s.cfg.IdempotencySize),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	switch s.cfg.Store {
	case config.StorePostgres:
		store, err := postgres.Open(ctx, postgres.Config{
			DSN:            s.cfg.PostgresDSN,
			MaxConns:       int32(s.cfg.PostgresMaxConns), //nolint:gosec // validated config
			MinConns:       int32(s.cfg.PostgresMinConns), //nolint:gosec // validated config
			ConnectTimeout: ms(s.cfg.PostgresConnectTimeoutMS),
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return repository.NewMemoryStore(ctx), nil
	}
}

// Handler returns the HTTP handler built by Start.
func (s *Service) Handler() (http.Handler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.handler, nil
}

// Stop drains pending publications and closes storage.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping tipjar service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "publisher pool did not drain", logger.Error(err))
	}
	s.poolCancel()

	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "tipjar service stopped")
}

// Published returns the reviews delivered to the public board so far.
func (s *Service) Published() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.publisher == nil {
		return 0
	}
	return len(s.publisher.Published())
}

// GetStats returns service statistics for monitoring and refreshes the
// matching gauges.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started": s.started,
		"store":   s.cfg.Store,
	}
	if !s.started {
		return stats
	}

	if counts, err := s.store.Counts(ctx); err != nil {
		s.logger.Warn(ctx, "counting records failed", logger.Error(err))
	} else {
		stats["profiles"] = counts.Profiles
		stats["rosterEntries"] = counts.Roster
		stats["tips"] = counts.Tips
		metrics.UpdateRepositoryCounts(counts.Profiles, counts.Roster, counts.Tips)
	}

	queueLen := s.queue.Len(ctx)
	stats["publishQueueLength"] = queueLen
	stats["publishQueueCapacity"] = s.cfg.PublishQueueSize
	stats["publishWorkers"] = s.pool.Size()
	stats["publishWorkersActive"] = s.pool.Active()
	stats["published"] = len(s.publisher.Published())
	stats["idempotencyKeys"] = s.guard.Size()
	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	goroutines := runtime.NumGoroutine()
	stats["goroutines"] = goroutines
	stats["memoryAllocBytes"] = m.Alloc

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(goroutines)
	if m.NumGC > 0 {
		metrics.RecordSystemGCPauseTime(float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond)
	}
	return stats
}
