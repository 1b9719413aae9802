package retry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// recentCapacity bounds the in-memory error journal.
const recentCapacity = 50

// ErrorContext is the structured record attached to every failed attempt.
// The ID ties log lines, metrics, and journal entries together.
type ErrorContext struct {
	ID        string
	Operation string
	Component string
	Timestamp time.Time
	Severity  types.Severity
	Kind      types.ErrorKind
	Message   string
	Attempt   int
}

func newErrorContext(operation, component string, kind types.ErrorKind, severity types.Severity, attempt int, err error, now time.Time) ErrorContext {
	return ErrorContext{
		ID:        uuid.NewString(),
		Operation: operation,
		Component: component,
		Timestamp: now,
		Severity:  severity,
		Kind:      kind,
		Message:   err.Error(),
		Attempt:   attempt,
	}
}

// Stats is a point-in-time view of the orchestrator's error accounting. An
// error counts as recovered when its operation still produced a value, by a
// later attempt or a fallback.
type Stats struct {
	TotalErrors         int64
	RecoveredErrors     int64
	CriticalErrors      int64
	ByKind              map[types.ErrorKind]int64
	ByComponent         map[string]int64
	Recent              []ErrorContext
	RecoveryRatePercent float64
	Verdict             types.HealthStatus
}

// errorLog accumulates error accounting across operations. All methods are
// safe for concurrent use.
type errorLog struct {
	mu          sync.Mutex
	total       int64
	recovered   int64
	critical    int64
	byKind      map[types.ErrorKind]int64
	byComponent map[string]int64
	recent      []ErrorContext

	// exhaustionStreak tracks back-to-back retry budget exhaustions per
	// component. It drives the LOW to MEDIUM severity escalation.
	exhaustionStreak map[string]int
}

func newErrorLog() *errorLog {
	return &errorLog{
		byKind:           make(map[types.ErrorKind]int64),
		byComponent:      make(map[string]int64),
		exhaustionStreak: make(map[string]int),
	}
}

func (l *errorLog) record(ec ErrorContext) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	l.byKind[ec.Kind]++
	l.byComponent[ec.Component]++
	if ec.Severity == types.SeverityCritical {
		l.critical++
	}

	l.recent = append(l.recent, ec)
	if len(l.recent) > recentCapacity {
		l.recent = l.recent[len(l.recent)-recentCapacity:]
	}
}

// markRecovered credits n errors as recovered. Any produced value, even one
// that needed no retries, clears the component's exhaustion streak.
func (l *errorLog) markRecovered(component string, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > 0 {
		l.recovered += int64(n)
	}
	delete(l.exhaustionStreak, component)
}

// markExhausted notes that a component ran out of attempts without a value
// and returns the current streak length.
func (l *errorLog) markExhausted(component string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.exhaustionStreak[component]++
	return l.exhaustionStreak[component]
}

func (l *errorLog) streak(component string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exhaustionStreak[component]
}

// Snapshot copies the accounting out under the lock.
func (l *errorLog) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		TotalErrors:     l.total,
		RecoveredErrors: l.recovered,
		CriticalErrors:  l.critical,
		ByKind:          make(map[types.ErrorKind]int64, len(l.byKind)),
		ByComponent:     make(map[string]int64, len(l.byComponent)),
		Recent:          make([]ErrorContext, len(l.recent)),
	}
	for k, v := range l.byKind {
		s.ByKind[k] = v
	}
	for k, v := range l.byComponent {
		s.ByComponent[k] = v
	}
	copy(s.Recent, l.recent)

	s.RecoveryRatePercent = recoveryRate(l.total, l.recovered)
	s.Verdict = verdict(l.total, l.recovered, l.recent)

	return s
}

func recoveryRate(total, recovered int64) float64 {
	if total == 0 {
		return 100
	}
	return float64(recovered) / float64(total) * 100
}

// verdict grades the error picture. Critical wins if any critical error
// sits in the journal; otherwise the recovery rate decides: under 50%
// unstable, under 90% degraded, at or above 90% stable, and no errors at
// all is healthy.
func verdict(total, recovered int64, recent []ErrorContext) types.HealthStatus {
	for i := range recent {
		if recent[i].Severity == types.SeverityCritical {
			return types.HealthStatusCritical
		}
	}

	if total == 0 {
		return types.HealthStatusHealthy
	}

	rate := recoveryRate(total, recovered)
	switch {
	case rate < 50:
		return types.HealthStatusUnstable
	case rate < 90:
		return types.HealthStatusDegraded
	default:
		return types.HealthStatusStable
	}
}
