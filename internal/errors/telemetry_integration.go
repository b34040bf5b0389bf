package errors

import (
	"sync"
	"sync/atomic"
)

// TelemetryReporter receives enhanced errors for external reporting. The
// concrete implementation lives in internal/telemetry to avoid a circular
// dependency; this package only holds the hook.
type TelemetryReporter interface {
	ReportError(ee *EnhancedError)
}

var (
	hasActiveReporting atomic.Bool
	reporterMutex      sync.RWMutex
	activeReporter     TelemetryReporter
)

// SetTelemetryReporter installs (or with nil, removes) the telemetry reporter.
// While no reporter is installed, Build takes a fast path that skips component
// and category auto-detection.
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMutex.Lock()
	defer reporterMutex.Unlock()
	activeReporter = reporter
	hasActiveReporting.Store(reporter != nil)
}

// reportToTelemetry forwards the error to the active reporter at most once.
func reportToTelemetry(ee *EnhancedError) {
	if ee.IsReported() {
		return
	}

	reporterMutex.RLock()
	reporter := activeReporter
	reporterMutex.RUnlock()

	if reporter == nil {
		return
	}

	reporter.ReportError(ee)
	ee.MarkReported()
}
