// Package dbmanager manages the PostgreSQL connection pool used by the
// record store.
package dbmanager

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/routesrv/config"
)

// Pool wraps the sql.DB pool with the query timeout every store call uses.
type Pool struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewPool opens the pool with the "pgx" driver and verifies connectivity
// with a ping.
func NewPool(cfg *config.PostgresConfig) (*Pool, error) {
	sqlDB, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("failed to open db")
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		log.Error().Err(err).Msg("failed to ping db")
		sqlDB.Close()
		return nil, err
	}

	return &Pool{
		db:           sqlDB,
		queryTimeout: time.Duration(cfg.QueryTimeout) * time.Second,
	}, nil
}

// DB exposes the underlying pool for the store layer.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// QueryContext derives a context bounded by the configured query timeout.
func (p *Pool) QueryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.queryTimeout)
}

// Stats reports pool usage for the readiness probe.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Ping verifies connectivity within the query timeout.
func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := p.QueryContext(ctx)
	defer cancel()
	return p.db.PingContext(ctx)
}

// Close shuts down the pool.
func (p *Pool) Close() error {
	return p.db.Close()
}
