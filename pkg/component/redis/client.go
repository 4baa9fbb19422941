// Package redis provides the Redis client used by the result cache.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/legal-rag/pkg/component/storage"
	options "github.com/kart-io/legal-rag/pkg/options/redis"
)

var _ storage.Client = (*Client)(nil)

// Client wraps a go-redis client.
type Client struct {
	client *goredis.Client
	opts   *options.Options
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		opts = options.NewOptions()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr(), err)
	}

	return &Client{client: rdb, opts: opts}, nil
}

// NewFromClient wraps an existing go-redis client without pinging it.
func NewFromClient(rdb *goredis.Client) *Client {
	return &Client{client: rdb, opts: options.NewOptions()}
}

func (c *Client) Name() string {
	return "redis"
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Client returns the underlying go-redis client.
func (c *Client) Client() *goredis.Client {
	return c.client
}

// Options returns the options the client was built from.
func (c *Client) Options() *options.Options {
	return c.opts
}
