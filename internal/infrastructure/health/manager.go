package health

import (
	"sync"

	"pair_trader/internal/core"
)

// Check probes a single component and returns nil when it is healthy.
type Check func() error

// Manager aggregates liveness checks from pipeline components.
type Manager struct {
	logger core.ILogger
	mu     sync.RWMutex
	checks map[string]Check
}

func NewManager(logger core.ILogger) *Manager {
	m := &Manager{checks: make(map[string]Check)}
	if logger != nil {
		m.logger = logger.WithField("component", "health_manager")
	}
	return m
}

// Register adds a named check. Re-registering a name replaces the check.
func (m *Manager) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Status runs every registered check and returns the per-component
// statuses plus whether all of them passed.
func (m *Manager) Status() (map[string]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	healthy := true
	status := make(map[string]string, len(m.checks))
	for name, check := range m.checks {
		if err := check(); err != nil {
			status[name] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			status[name] = "healthy"
		}
	}
	return status, healthy
}
