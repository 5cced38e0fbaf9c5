// Package postgres provides the PostgreSQL molecule archive: a durable,
// queryable record of every molecule a run produced, layered on top of the
// CSV ledger.
package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Pool wraps a pgx connection pool with lifecycle management.
type Pool struct {
	pool   *pgxpool.Pool
	cfg    config.ArchiveConfig
	logger logging.Logger
	mu     sync.Mutex
	closed bool
}

// Connect opens and verifies a connection pool for the archive database.
func Connect(ctx context.Context, cfg config.ArchiveConfig, log logging.Logger) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "invalid archive connection configuration")
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.ConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create archive connection pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "archive database unreachable")
	}

	log.Info("Archive database connected",
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.Database),
	)
	return &Pool{pool: pool, cfg: cfg, logger: log}, nil
}

// DSN renders the archive configuration as a PostgreSQL connection string.
func DSN(cfg config.ArchiveConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode)
}

// Ping verifies the pool is alive.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Pgx exposes the underlying pool for repositories.
func (p *Pool) Pgx() *pgxpool.Pool { return p.pool }

// Close shuts the pool down idempotently.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.pool.Close()
	p.logger.Info("Archive database connection closed")
}
