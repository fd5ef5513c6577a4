// Package health aggregates liveness and readiness checks for the worker
// and serves them on the admin port.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckStatus is the result class of one health check.
type CheckStatus int

const (
	StatusHealthy CheckStatus = iota
	StatusDegraded
	StatusUnhealthy
	StatusUnknown
)

func (s CheckStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// CheckResult is one component's verdict.
type CheckResult struct {
	Component string        `json:"component"`
	Status    CheckStatus   `json:"-"`
	StatusStr string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
	Critical  bool          `json:"critical"`
}

// Checker is one component health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
	// IsCritical marks checks whose failure makes the service not ready.
	IsCritical() bool
}

// Manager runs registered checkers on an interval and caches the latest
// results for the HTTP handlers.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	latest   map[string]CheckResult

	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewManager creates a manager polling at the given interval.
func NewManager(interval time.Duration, logger *zap.Logger) *Manager {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Manager{
		checkers: make(map[string]Checker),
		latest:   make(map[string]CheckResult),
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Register adds a checker. Registration happens before Start.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[c.Name()] = c
}

// Start begins background checking until Stop is called.
func (m *Manager) Start() {
	go func() {
		defer close(m.done)
		m.runAll()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.runAll()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop halts background checking and waits for the loop to exit.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Manager) runAll() {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	for _, c := range checkers {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		res := c.Check(ctx)
		cancel()
		res.StatusStr = res.Status.String()
		if res.Status != StatusHealthy {
			m.logger.Warn("Health check failed",
				zap.String("component", res.Component),
				zap.String("status", res.StatusStr),
				zap.String("error", res.Error),
			)
		}
		m.mu.Lock()
		m.latest[c.Name()] = res
		m.mu.Unlock()
	}
}

// Results returns the latest result per component.
func (m *Manager) Results() map[string]CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]CheckResult, len(m.latest))
	for k, v := range m.latest {
		out[k] = v
	}
	return out
}

// Ready reports whether every critical component is healthy. Components
// that have not been checked yet count as not ready.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, c := range m.checkers {
		if !c.IsCritical() {
			continue
		}
		res, ok := m.latest[name]
		if !ok || res.Status == StatusUnhealthy || res.Status == StatusUnknown {
			return false
		}
	}
	return true
}
