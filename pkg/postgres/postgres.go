// Package postgres opens the pgx connection pool the repositories run on.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolSettings bounds the connection pool. Zero values keep the pgx defaults.
type PoolSettings struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type Config interface {
	GetDSN() string
	PoolSettings() PoolSettings
}

// Client holds the shared pool. Repositories take the pool directly; the
// wrapper exists so app wiring owns open and close in one place.
type Client struct {
	Pool *pgxpool.Pool
}

// New parses the DSN, applies the pool bounds and verifies the database
// answers before handing the pool out.
func New(ctx context.Context, cfg Config) (*Client, error) {
	pc, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	s := cfg.PoolSettings()
	if s.MaxConns > 0 {
		pc.MaxConns = s.MaxConns
	}
	if s.MinConns > 0 {
		pc.MinConns = s.MinConns
	}
	if s.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = s.MaxConnLifetime
	}
	if s.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = s.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Client{Pool: pool}, nil
}
