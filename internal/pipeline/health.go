package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aaronlmathis/vsflux/internal/metrics"
)

// Health tracks collection health across cycles
type Health struct {
	mu sync.RWMutex

	// Counters
	cycles            int64 // Completed cycles, successful or not
	failedCycles      int64 // Cycles that ended with a run-fatal error
	emitted           int64 // Entities whose record was emitted
	skipped           int64 // Entities rejected by the filter
	excluded          int64 // Entities excluded after two untrusted attempts
	failed            int64 // Entities whose fetch failed
	untrustedAttempts int64 // Individual untrusted attempts
	linesEmitted      int64 // Line-protocol lines emitted

	// Last cycle
	lastCycleID       string
	lastCycleTime     time.Time
	lastCycleDuration time.Duration
	lastError         string
	lastSuccess       time.Time
}

// NewHealth creates a new health tracker
func NewHealth() *Health {
	return &Health{}
}

// RecordResult records the outcome of one entity
func (h *Health) RecordResult(res Result) {
	atomic.AddInt64(&h.untrustedAttempts, int64(res.Untrusted))

	switch res.Outcome {
	case Emitted:
		atomic.AddInt64(&h.emitted, 1)
		atomic.AddInt64(&h.linesEmitted, int64(res.Record.Lines))
	case Skipped:
		atomic.AddInt64(&h.skipped, 1)
	case Excluded:
		atomic.AddInt64(&h.excluded, 1)
	case Failed:
		atomic.AddInt64(&h.failed, 1)
	}
}

// RecordCycle records the end of a cycle
func (h *Health) RecordCycle(summary CycleSummary) {
	atomic.AddInt64(&h.cycles, 1)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastCycleID = summary.ID
	h.lastCycleTime = summary.Started
	h.lastCycleDuration = summary.Duration
	if summary.Err != nil {
		atomic.AddInt64(&h.failedCycles, 1)
		h.lastError = summary.Err.Error()
		return
	}
	h.lastError = ""
	h.lastSuccess = summary.Started.Add(summary.Duration)

	metrics.UpdateLastCycle(summary.Emitted, h.lastSuccess)
}

// Ready reports whether at least one cycle completed without a fatal error
func (h *Health) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.lastSuccess.IsZero()
}

// GetSnapshot returns a snapshot of current health
func (h *Health) GetSnapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HealthSnapshot{
		Cycles:            atomic.LoadInt64(&h.cycles),
		FailedCycles:      atomic.LoadInt64(&h.failedCycles),
		Emitted:           atomic.LoadInt64(&h.emitted),
		Skipped:           atomic.LoadInt64(&h.skipped),
		Excluded:          atomic.LoadInt64(&h.excluded),
		Failed:            atomic.LoadInt64(&h.failed),
		UntrustedAttempts: atomic.LoadInt64(&h.untrustedAttempts),
		LinesEmitted:      atomic.LoadInt64(&h.linesEmitted),
		LastCycleID:       h.lastCycleID,
		LastCycleTime:     h.lastCycleTime,
		LastCycleSeconds:  h.lastCycleDuration.Seconds(),
		LastError:         h.lastError,
		LastSuccess:       h.lastSuccess,
		Timestamp:         time.Now(),
	}
}

// HealthSnapshot represents a point-in-time snapshot of collection health
type HealthSnapshot struct {
	Cycles            int64     `json:"cycles"`
	FailedCycles      int64     `json:"failed_cycles"`
	Emitted           int64     `json:"emitted"`
	Skipped           int64     `json:"skipped"`
	Excluded          int64     `json:"excluded"`
	Failed            int64     `json:"failed"`
	UntrustedAttempts int64     `json:"untrusted_attempts"`
	LinesEmitted      int64     `json:"lines_emitted"`
	LastCycleID       string    `json:"last_cycle_id,omitempty"`
	LastCycleTime     time.Time `json:"last_cycle_time"`
	LastCycleSeconds  float64   `json:"last_cycle_seconds"`
	LastError         string    `json:"last_error,omitempty"`
	LastSuccess       time.Time `json:"last_success"`
	Timestamp         time.Time `json:"timestamp"`
}

// IsHealthy returns true if the last cycle did not fail
func (s HealthSnapshot) IsHealthy() bool {
	return s.LastError == ""
}

// GetStatus returns a human-readable status string
func (s HealthSnapshot) GetStatus() string {
	if s.Cycles == 0 {
		return "starting"
	}
	if !s.IsHealthy() {
		return "degraded: " + s.LastError
	}
	return "healthy"
}
