package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type identifies what a pool is used for.
type Type string

const (
	// BatchPool runs batch question items, one pool per batch job.
	BatchPool Type = "batch"
	// BackgroundPool runs fire-and-forget work such as telemetry.
	BackgroundPool Type = "background"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity is the maximum number of concurrently running tasks.
	Capacity int
	// ExpiryDuration is how long an idle worker goroutine is kept.
	ExpiryDuration time.Duration
	// PreAlloc pre-allocates the worker queue.
	PreAlloc bool
	// Nonblocking makes Submit fail with ErrPoolOverload instead of waiting.
	Nonblocking bool
	// MaxBlockingTasks bounds the number of blocked submitters (0 = unlimited).
	MaxBlockingTasks int
	// PanicHandler is called with the recovered value of a panicking task.
	PanicHandler func(interface{})
}

// BatchPoolConfig returns the config of a batch pool with the given parallelism.
// Submitters block until a worker frees up, so items are pulled in input order.
func BatchPoolConfig(parallelism int) *Config {
	return &Config{
		Capacity:       parallelism,
		ExpiryDuration: 10 * time.Second,
		Nonblocking:    false,
	}
}

// BackgroundPoolConfig returns the config of the background pool.
func BackgroundPoolConfig() *Config {
	return &Config{
		Capacity:         50,
		ExpiryDuration:   60 * time.Second,
		Nonblocking:      true,
		MaxBlockingTasks: 100,
	}
}

// Pool is a named, bounded worker pool.
type Pool struct {
	name     string
	typ      Type
	pool     *ants.Pool
	config   *Config
	stats    *statsCounter
	closed   atomic.Bool
	closedMu sync.Mutex
}

type statsCounter struct {
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
	waitNs    atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	SubmittedTasks  int64 `json:"submitted_tasks"`
	CompletedTasks  int64 `json:"completed_tasks"`
	RejectedTasks   int64 `json:"rejected_tasks"`
	PanicRecovered  int64 `json:"panic_recovered"`
	TotalWaitTimeNs int64 `json:"total_wait_time_ns"`
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil {
		config = BackgroundPoolConfig()
	}
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d", ErrInvalidPoolConfig, config.Capacity)
	}

	p := &Pool{
		name:   name,
		typ:    typ,
		config: config,
		stats:  &statsCounter{},
	}

	ap, err := ants.NewPool(config.Capacity, buildAntsOptions(p)...)
	if err != nil {
		return nil, fmt.Errorf("create ants pool: %w", err)
	}
	p.pool = ap

	logger.Debugw("Worker pool created",
		"name", name,
		"type", string(typ),
		"capacity", config.Capacity,
	)
	return p, nil
}

func buildAntsOptions(p *Pool) []ants.Option {
	opts := []ants.Option{
		ants.WithExpiryDuration(p.config.ExpiryDuration),
		ants.WithPreAlloc(p.config.PreAlloc),
		ants.WithNonblocking(p.config.Nonblocking),
		ants.WithMaxBlockingTasks(p.config.MaxBlockingTasks),
	}

	handler := p.config.PanicHandler
	if handler == nil {
		handler = func(v interface{}) {
			logger.Errorw("Worker panic recovered", "pool", p.name, "panic", v)
		}
	}
	opts = append(opts, ants.WithPanicHandler(func(v interface{}) {
		p.stats.panics.Add(1)
		handler(v)
	}))
	return opts
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Type returns the pool type.
func (p *Pool) Type() Type { return p.typ }

// Cap returns the pool capacity.
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int { return p.pool.Running() }

// Submit hands a task to the pool. With a blocking pool the call waits for a
// free worker.
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	enqueued := time.Now()
	err := p.pool.Submit(func() {
		p.stats.waitNs.Add(int64(time.Since(enqueued)))
		defer p.stats.completed.Add(1)
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.rejected.Add(1)
			return ErrPoolOverload
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	p.stats.submitted.Add(1)
	return nil
}

// SubmitWithContext submits a task that is skipped if ctx is done before it starts.
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// Release closes the pool. Running tasks finish; queued tasks are dropped.
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return
	}
	p.closed.Store(true)
	p.pool.Release()
	logger.Debugw("Worker pool released", "name", p.name)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		SubmittedTasks:  p.stats.submitted.Load(),
		CompletedTasks:  p.stats.completed.Load(),
		RejectedTasks:   p.stats.rejected.Load(),
		PanicRecovered:  p.stats.panics.Load(),
		TotalWaitTimeNs: p.stats.waitNs.Load(),
	}
}
