package pool

import (
	"sync"

	"github.com/kart-io/logger"
)

var (
	background     *Pool
	backgroundOnce sync.Once
)

func backgroundPool() *Pool {
	backgroundOnce.Do(func() {
		p, err := NewPool("background", BackgroundPool, BackgroundPoolConfig())
		if err != nil {
			logger.Warnw("background pool unavailable, falling back to goroutines", "error", err.Error())
			return
		}
		background = p
	})
	return background
}

// Go runs task on the shared background pool. When the pool is unavailable or
// saturated the task runs on a plain goroutine with panic recovery, so callers
// never block and never lose the task.
func Go(task func()) {
	if p := backgroundPool(); p != nil {
		if err := p.Submit(task); err == nil {
			return
		}
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("background task panic recovered", "panic", r)
			}
		}()
		task()
	}()
}

// BackgroundStats returns the stats of the shared background pool.
func BackgroundStats() Stats {
	if p := backgroundPool(); p != nil {
		return p.Stats()
	}
	return Stats{}
}
