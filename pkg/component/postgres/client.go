// Package postgres provides the pgx connection pool backing the pgvector index.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kart-io/legal-rag/pkg/component/storage"
	options "github.com/kart-io/legal-rag/pkg/options/postgres"
)

var _ storage.Client = (*Client)(nil)

// Client wraps a pgxpool.Pool.
type Client struct {
	pool *pgxpool.Pool
	opts *options.Options
}

// New opens a pool from opts and pings the server.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("postgres options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid postgres options: %v", errs)
	}

	cfg, err := pgxpool.ParseConfig(opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres at %s:%d: %w", opts.Host, opts.Port, err)
	}

	return &Client{pool: pool, opts: opts}, nil
}

func (c *Client) Name() string {
	return "postgres"
}

func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *Client) Close() error {
	c.pool.Close()
	return nil
}

// Pool returns the underlying pool.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}
