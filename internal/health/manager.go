package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager registers checkers, runs them on demand and in the background,
// and aggregates their results.
type Manager struct {
	checkers      map[string]Checker
	lastResults   map[string]CheckResult
	checkInterval time.Duration
	started       bool
	stopCh        chan struct{}
	logger        *zap.Logger
	mu            sync.RWMutex
}

// NewManager creates a health manager with a 30s background interval.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		checkers:      make(map[string]Checker),
		lastResults:   make(map[string]CheckResult),
		checkInterval: 30 * time.Second,
		stopCh:        make(chan struct{}),
		logger:        logger,
	}
}

// RegisterChecker registers a health check by its name.
func (m *Manager) RegisterChecker(checker Checker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := checker.Name()
	if name == "" {
		return fmt.Errorf("checker name cannot be empty")
	}
	if _, exists := m.checkers[name]; exists {
		return fmt.Errorf("checker %s already registered", name)
	}

	m.checkers[name] = checker
	m.logger.Info("Health checker registered",
		zap.String("checker", name),
		zap.Bool("critical", checker.IsCritical()),
		zap.Duration("timeout", checker.Timeout()),
	)
	return nil
}

// UnregisterChecker removes a health check.
func (m *Manager) UnregisterChecker(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.checkers[name]; !exists {
		return fmt.Errorf("checker %s not found", name)
	}
	delete(m.checkers, name)
	delete(m.lastResults, name)
	return nil
}

// GetOverallHealth runs all checks and aggregates them.
func (m *Manager) GetOverallHealth(ctx context.Context) OverallHealth {
	start := time.Now()
	detailed := m.GetDetailedHealth(ctx)
	overall := detailed.Overall
	overall.Timestamp = detailed.Timestamp
	overall.Duration = time.Since(start)
	return overall
}

// GetDetailedHealth runs every registered check and returns the breakdown.
func (m *Manager) GetDetailedHealth(ctx context.Context) DetailedHealth {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()

	timestamp := time.Now()
	components := make(map[string]CheckResult, len(checkers))
	summary := HealthSummary{Total: len(checkers)}

	for name, checker := range checkers {
		result := m.runSingleCheck(ctx, checker)
		components[name] = result

		switch result.Status {
		case StatusHealthy:
			summary.Healthy++
		case StatusDegraded:
			summary.Degraded++
		case StatusUnhealthy:
			summary.Unhealthy++
		}
	}

	m.mu.Lock()
	for name, result := range components {
		m.lastResults[name] = result
	}
	m.mu.Unlock()

	return DetailedHealth{
		Overall:    calculateOverallStatus(components, summary),
		Components: components,
		Summary:    summary,
		Timestamp:  timestamp,
	}
}

func (m *Manager) runSingleCheck(ctx context.Context, checker Checker) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, checker.Timeout())
	defer cancel()

	start := time.Now()
	result := checker.Check(checkCtx)
	result.Component = checker.Name()
	result.Critical = checker.IsCritical()
	result.Duration = time.Since(start)
	result.Timestamp = start
	return result
}

func calculateOverallStatus(components map[string]CheckResult, summary HealthSummary) OverallHealth {
	if summary.Total == 0 {
		return OverallHealth{
			Status:  StatusUnknown,
			Message: "No health checks registered",
			Ready:   false,
			Live:    false,
		}
	}

	criticalFailures := 0
	nonCriticalFailures := 0
	degraded := 0
	for _, result := range components {
		if result.Status == StatusDegraded {
			degraded++
		}
		if result.Status == StatusUnhealthy {
			if result.Critical {
				criticalFailures++
			} else {
				nonCriticalFailures++
			}
		}
	}

	var status CheckStatus
	var message string
	ready := true
	switch {
	case criticalFailures > 0:
		status = StatusUnhealthy
		message = fmt.Sprintf("%d critical component(s) failing", criticalFailures)
		ready = false
	case degraded > 0:
		status = StatusDegraded
		message = fmt.Sprintf("%d component(s) degraded", degraded)
	case nonCriticalFailures > 0:
		status = StatusDegraded
		message = fmt.Sprintf("%d non-critical component(s) failing", nonCriticalFailures)
	default:
		status = StatusHealthy
		message = fmt.Sprintf("All %d components healthy", summary.Total)
	}

	return OverallHealth{
		Status:   status,
		Message:  message,
		Degraded: status == StatusDegraded,
		Ready:    ready,
		Live:     true,
	}
}

// IsReady reports readiness for traffic.
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.GetOverallHealth(ctx).Ready
}

// IsLive reports process liveness.
func (m *Manager) IsLive(ctx context.Context) bool {
	return m.GetOverallHealth(ctx).Live
}

// GetLastResults returns cached results without running new checks.
func (m *Manager) GetLastResults() map[string]CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]CheckResult, len(m.lastResults))
	for name, result := range m.lastResults {
		results[name] = result
	}
	return results
}

// Start begins background health checking.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	m.started = true
	go m.backgroundChecker()

	m.logger.Info("Health manager started",
		zap.Duration("check_interval", m.checkInterval),
		zap.Int("registered_checkers", len(m.checkers)),
	)
	return nil
}

// Stop halts background health checking.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	close(m.stopCh)
	m.started = false
	return nil
}

func (m *Manager) backgroundChecker() {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			m.GetDetailedHealth(ctx)
			cancel()
		}
	}
}
