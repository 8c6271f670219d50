package monitor

import (
	"sync"
	"time"
)

// DefaultStaleAfter is how old the last successful refresh may get before
// the service reports itself degraded.
const DefaultStaleAfter = 1 * time.Hour

// MaxConsecutiveFailures is the number of failed refreshes tolerated.
const MaxConsecutiveFailures = 3

// RefreshMonitor tracks snapshot refresh health and failures.
type RefreshMonitor struct {
	mu                sync.RWMutex
	staleAfter        time.Duration
	lastSuccess       time.Time
	lastAttempt       time.Time
	lastSnapshot      string
	consecutiveErrors int
	lastError         string
}

// NewRefreshMonitor creates a monitor. A zero staleAfter uses
// DefaultStaleAfter; a negative one never considers a snapshot stale.
func NewRefreshMonitor(staleAfter time.Duration) *RefreshMonitor {
	if staleAfter == 0 {
		staleAfter = DefaultStaleAfter
	}
	return &RefreshMonitor{staleAfter: staleAfter}
}

// RecordSuccess records a published snapshot.
func (m *RefreshMonitor) RecordSuccess(snapshotID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.lastSuccess = now
	m.lastAttempt = now
	m.lastSnapshot = snapshotID
	m.consecutiveErrors = 0
	m.lastError = ""
}

// RecordFailure records a failed build.
func (m *RefreshMonitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = time.Now()
	m.consecutiveErrors++
	if err != nil {
		m.lastError = err.Error()
	}
}

// IsHealthy returns true if refreshes are working.
// Unhealthy conditions:
//   - Never succeeded
//   - Last success older than the stale window
//   - More than MaxConsecutiveFailures consecutive failures
func (m *RefreshMonitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy()
}

func (m *RefreshMonitor) healthy() bool {
	if m.lastSuccess.IsZero() {
		return false
	}
	if m.staleAfter > 0 && time.Since(m.lastSuccess) > m.staleAfter {
		return false
	}
	return m.consecutiveErrors <= MaxConsecutiveFailures
}

// RefreshStatus is the health-check view of the monitor.
type RefreshStatus struct {
	Healthy           bool   `json:"healthy"`
	Snapshot          string `json:"snapshot,omitempty"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current refresh status for health checks.
func (m *RefreshMonitor) Status() RefreshStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := RefreshStatus{
		Healthy:  m.healthy(),
		Snapshot: m.lastSnapshot,
	}

	if !m.lastSuccess.IsZero() {
		status.LastSuccess = m.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(m.lastSuccess).Round(time.Second).String()
	}
	if !m.lastAttempt.IsZero() {
		status.LastAttempt = m.lastAttempt.Format(time.RFC3339)
	}
	if m.consecutiveErrors > 0 {
		status.ConsecutiveErrors = m.consecutiveErrors
		status.LastError = m.lastError
	}
	return status
}
