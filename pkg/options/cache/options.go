// Package cache provides result-cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/legal-rag/pkg/options"
	redisopts "github.com/kart-io/legal-rag/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options configures the search result cache.
type Options struct {
	// Enabled turns the cache on.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Backend is memory or redis.
	Backend string `json:"backend" mapstructure:"backend"`

	// TTL is the maximum age of a cached result set.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix namespaces redis keys.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// EmbeddingTTL caches query embeddings on the same backend. Zero disables it.
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`

	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions returns an in-memory cache with a 30 minute TTL.
func NewOptions() *Options {
	return &Options{
		Enabled:      true,
		Backend:      BackendMemory,
		TTL:          30 * time.Minute,
		KeyPrefix:    "legal-rag:search:",
		EmbeddingTTL: 24 * time.Hour,
		Redis:        redisopts.NewOptions(),
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable the search result cache.")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Cache backend (memory|redis).")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Cache entry time-to-live.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Redis key prefix.")
	fs.DurationVar(&o.EmbeddingTTL, p+"embedding-ttl", o.EmbeddingTTL, "Query embedding cache time-to-live. Zero disables it.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, append(prefixes, "cache")...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendMemory:
	case BackendRedis:
		errs = append(errs, o.Redis.Validate()...)
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, redis", o.Backend))
	}
	if o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive"))
	}
	if o.EmbeddingTTL < 0 {
		errs = append(errs, fmt.Errorf("cache.embedding-ttl must not be negative"))
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	if o.Backend == "" {
		o.Backend = BackendMemory
	}
	return o.Redis.Complete()
}
