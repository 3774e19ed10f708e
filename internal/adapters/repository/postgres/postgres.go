// Package postgres implements the repository ports against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // goose runs on database/sql
	"github.com/pressly/goose/v3"

	"github.com/okian/tipjar/internal/adapters/repository"
	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/pkg/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNoDSN is returned by Open when no connection string is configured.
var ErrNoDSN = errors.New("postgres dsn is empty")

// Config holds connection settings.
type Config struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
}

// Store implements repository.Store on a pgx pool.
type Store struct {
	db    *pgxpool.Pool
	now   func() time.Time
	newID func() string
	log   logger.Logger
}

var _ repository.Store = (*Store)(nil)

// Open connects, applies pending migrations and returns a ready store.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	s := &Store{
		now:   time.Now,
		newID: uuidString,
		log:   logger.Get().Named("repo.postgres"),
	}
	for _, opt := range opts {
		opt(s)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, model.Upstream("open pool", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, model.Upstream("ping pool", err)
	}
	if err := migrate(connectCtx, cfg.DSN); err != nil {
		pool.Close()
		return nil, err
	}

	s.db = pool
	s.log.Info(ctx, "postgres ready",
		logger.Int("max_conns", int(poolCfg.MaxConns)))
	return s, nil
}

func migrate(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return model.Upstream("open sql", err)
	}
	defer func() { _ = sqlDB.Close() }()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return model.Upstream("migrate dialect", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return model.Upstream("migrate", err)
	}
	return nil
}

// Counts implements repository.Store.
func (s *Store) Counts(ctx context.Context) (repository.Counts, error) {
	var c repository.Counts
	err := s.db.QueryRow(ctx, countsQuery).Scan(&c.Profiles, &c.Roster, &c.Tips)
	if err != nil {
		return repository.Counts{}, model.Upstream("counts", err)
	}
	return c, nil
}

// Ping implements repository.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases pool connections.
func (s *Store) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

const countsQuery = `
SELECT (SELECT count(*) FROM profiles),
       (SELECT count(*) FROM business_workers),
       (SELECT count(*) FROM tips)`
