package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/legal-rag/pkg/errors"
	"github.com/kart-io/legal-rag/pkg/infra/pool"
)

// Manager holds named clients.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]Client),
	}
}

// Register adds a client under name.
func (m *Manager) Register(name string, client Client) error {
	if name == "" {
		return errors.ErrInvalidParam.WithMessage("client name cannot be empty")
	}
	if client == nil {
		return errors.ErrInvalidParam.WithMessage("client cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[name]; exists {
		return errors.ErrInvalidParam.WithMessagef("client '%s' is already registered", name)
	}
	m.clients[name] = client
	return nil
}

// Get returns the named client.
func (m *Manager) Get(name string) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, exists := m.clients[name]
	if !exists {
		return nil, errors.ErrNotFound.WithMessagef("client '%s' not found", name)
	}
	return client, nil
}

// List returns the registered names, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll pings every client concurrently on the background pool.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	m.mu.RLock()
	clients := make(map[string]Client, len(m.clients))
	for name, client := range m.clients {
		clients[name] = client
	}
	m.mu.RUnlock()

	statuses := make(map[string]HealthStatus, len(clients))
	var statusMu sync.Mutex
	var wg sync.WaitGroup

	for name, client := range clients {
		wg.Add(1)
		n, c := name, client
		pool.Go(func() {
			defer wg.Done()

			start := time.Now()
			err := c.Ping(ctx)
			status := HealthStatus{Name: n, Healthy: err == nil, Latency: time.Since(start)}
			if err != nil {
				status.Error = err.Error()
			}

			statusMu.Lock()
			statuses[n] = status
			statusMu.Unlock()
		})
	}

	wg.Wait()
	return statuses
}

// AllHealthy reports whether every client answered.
func (m *Manager) AllHealthy(ctx context.Context) bool {
	for _, status := range m.HealthCheckAll(ctx) {
		if !status.Healthy {
			return false
		}
	}
	return true
}

// CloseAll closes and removes every client, returning the first error.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, client := range m.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close client '%s': %w", name, err)
		}
		delete(m.clients, name)
	}
	return firstErr
}
