// Package storage tracks the backing clients of the service for health
// checks and shutdown.
package storage

import (
	"context"
	"time"
)

// Client is a connection to a backing service.
type Client interface {
	// Name identifies the backend, e.g. "redis".
	Name() string
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close() error
}

// HealthStatus is the result of pinging one client.
type HealthStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}
