// Package system defines the background service contract and the manager
// that starts and stops registered services in order.
package system

import (
	"context"
	"fmt"
	"sync"
)

// Service is a long-running background component with a managed lifecycle.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager registers services and runs them as a group. Start launches them
// in registration order and rolls back already-started services when one
// fails; Stop walks the running set in reverse.
type Manager struct {
	mu       sync.Mutex
	services []Service
	running  []Service
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds a service. Duplicate names are rejected.
func (m *Manager) Register(svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.services {
		if existing.Name() == svc.Name() {
			return fmt.Errorf("service %q already registered", svc.Name())
		}
	}
	m.services = append(m.services, svc)
	return nil
}

// Start launches all registered services. On failure the services started
// so far are stopped in reverse order before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			for i := len(m.running) - 1; i >= 0; i-- {
				_ = m.running[i].Stop(ctx)
			}
			m.running = nil
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.running = append(m.running, svc)
	}
	return nil
}

// Stop shuts down running services in reverse start order. The first error
// is returned after all services have been given the chance to stop.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for i := len(m.running) - 1; i >= 0; i-- {
		if err := m.running[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", m.running[i].Name(), err)
		}
	}
	m.running = nil
	return firstErr
}
