package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// checkerEntry pairs a registered Checker with the critical/timeout
// values captured at registration time.
type checkerEntry struct {
	checker  Checker
	critical bool
	timeout  time.Duration
}

// Manager is Flodgatt's health rollup: a fixed background poll of every
// registered checker plus on-demand queries from the HTTP handler. Unlike
// a per-service orchestrator, Flodgatt's checker set is small and static
// (Redis, Postgres, the subscription poll loop) so there is no
// per-checker interval/enable knob — everything runs on one shared tick.
type Manager struct {
	checkers      map[string]*checkerEntry
	checkInterval time.Duration
	started       bool
	stopCh        chan struct{}
	logger        *zap.Logger
	mu            sync.RWMutex
}

// NewManager creates a health manager with a 30s background check tick.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		checkers:      make(map[string]*checkerEntry),
		checkInterval: 30 * time.Second,
		stopCh:        make(chan struct{}),
		logger:        logger,
	}
}

// RegisterChecker adds a checker under its own Name(); names must be unique.
func (m *Manager) RegisterChecker(checker Checker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := checker.Name()
	if name == "" {
		return fmt.Errorf("health: checker name cannot be empty")
	}
	if _, exists := m.checkers[name]; exists {
		return fmt.Errorf("health: checker %s already registered", name)
	}

	m.checkers[name] = &checkerEntry{checker: checker, critical: checker.IsCritical(), timeout: checker.Timeout()}
	m.logger.Info("health checker registered", zap.String("checker", name), zap.Bool("critical", checker.IsCritical()))
	return nil
}

// GetOverallHealth runs every checker and returns just the rollup.
func (m *Manager) GetOverallHealth(ctx context.Context) OverallHealth {
	startTime := time.Now()
	detailed := m.GetDetailedHealth(ctx)
	overall := detailed.Overall
	overall.Duration = time.Since(startTime)
	return overall
}

// GetDetailedHealth runs every registered checker and returns per-checker
// results alongside the rollup.
func (m *Manager) GetDetailedHealth(ctx context.Context) DetailedHealth {
	m.mu.RLock()
	entries := make(map[string]*checkerEntry, len(m.checkers))
	for name, e := range m.checkers {
		entries[name] = e
	}
	m.mu.RUnlock()

	timestamp := time.Now()
	components := make(map[string]CheckResult, len(entries))
	summary := HealthSummary{Total: len(entries)}

	for name, e := range entries {
		result := m.runCheck(ctx, e)
		components[name] = result

		switch result.Status {
		case StatusHealthy:
			summary.Healthy++
		case StatusDegraded:
			summary.Degraded++
		case StatusUnhealthy:
			summary.Unhealthy++
		}
		if result.Critical {
			summary.Critical++
		} else {
			summary.NonCritical++
		}
	}

	return DetailedHealth{
		Overall:    calculateOverallStatus(components, summary),
		Components: components,
		Summary:    summary,
		Timestamp:  timestamp,
	}
}

func (m *Manager) runCheck(ctx context.Context, e *checkerEntry) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	startTime := time.Now()
	result := e.checker.Check(checkCtx)
	result.Component = e.checker.Name()
	result.Critical = e.critical
	result.Duration = time.Since(startTime)
	result.Timestamp = startTime
	return result
}

// calculateOverallStatus rolls per-checker results up to one status: any
// critical failure makes Flodgatt unready, a non-critical failure or a
// degraded checker only marks it degraded.
func calculateOverallStatus(components map[string]CheckResult, summary HealthSummary) OverallHealth {
	if summary.Total == 0 {
		return OverallHealth{Status: StatusUnknown, Message: "no health checks registered"}
	}

	var criticalFailures, nonCriticalFailures, degraded int
	for _, result := range components {
		switch {
		case result.Status == StatusDegraded:
			degraded++
		case result.Status == StatusUnhealthy && result.Critical:
			criticalFailures++
		case result.Status == StatusUnhealthy:
			nonCriticalFailures++
		}
	}

	switch {
	case criticalFailures > 0:
		return OverallHealth{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("%d critical component(s) failing", criticalFailures),
			Live:    true,
		}
	case degraded > 0:
		return OverallHealth{
			Status:   StatusDegraded,
			Message:  fmt.Sprintf("%d component(s) degraded", degraded),
			Degraded: true,
			Ready:    true,
			Live:     true,
		}
	case nonCriticalFailures > 0:
		return OverallHealth{
			Status:   StatusDegraded,
			Message:  fmt.Sprintf("%d non-critical component(s) failing", nonCriticalFailures),
			Degraded: true,
			Ready:    true,
			Live:     true,
		}
	default:
		return OverallHealth{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("all %d components healthy", summary.Total),
			Ready:   true,
			Live:    true,
		}
	}
}

// IsReady reports whether Flodgatt should accept new client connections.
func (m *Manager) IsReady(ctx context.Context) bool { return m.GetOverallHealth(ctx).Ready }

// IsLive reports liveness for a k8s-style liveness probe — independent of
// readiness, since a Redis outage should not get the process killed.
func (m *Manager) IsLive(ctx context.Context) bool { return m.GetOverallHealth(ctx).Live }

// Start begins the background poll loop; a second call is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	m.started = true
	go m.backgroundLoop()
	m.logger.Info("health manager started", zap.Duration("interval", m.checkInterval), zap.Int("checkers", len(m.checkers)))
	return nil
}

// Stop halts the background poll loop; a second call is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	close(m.stopCh)
	m.started = false
	m.logger.Info("health manager stopped")
	return nil
}

func (m *Manager) backgroundLoop() {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.checkInterval)
			m.GetDetailedHealth(ctx)
			cancel()
		}
	}
}
