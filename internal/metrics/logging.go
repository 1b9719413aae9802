package metrics

import (
	"log/slog"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// LoggingPublisher writes metrics to slog instead of a wire. It stands in
// for the DataDog publisher in development and in tests.
type LoggingPublisher struct {
	logger   *slog.Logger
	baseTags []string
}

func NewLoggingPublisher(logger *slog.Logger, baseTags ...string) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{
		logger:   logger.With("component", "metrics-log"),
		baseTags: baseTags,
	}
}

func (p *LoggingPublisher) Gauge(name string, value float64, tags ...string) {
	p.emit("gauge", name, tags, "value", value)
}

func (p *LoggingPublisher) Incr(name string, tags ...string) {
	p.emit("incr", name, tags)
}

func (p *LoggingPublisher) Count(name string, value int64, tags ...string) {
	p.emit("count", name, tags, "value", value)
}

func (p *LoggingPublisher) Histogram(name string, value float64, tags ...string) {
	p.emit("histogram", name, tags, "value", value)
}

func (p *LoggingPublisher) Timing(name string, duration time.Duration, tags ...string) {
	p.emit("timing", name, tags, "duration_ms", duration.Milliseconds())
}

func (p *LoggingPublisher) Event(title, text, alertType string, tags ...string) {
	p.logger.Info("event",
		"title", title,
		"text", text,
		"alert_type", alertType,
		"tags", p.withBase(tags),
	)
}

// PublishHealthMetrics logs one health batch at info level.
func (p *LoggingPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}

	connected := 0
	if m.IsConnected {
		connected = 1
	}

	p.logger.Info("health_metrics",
		"memory_used_bytes", m.MemoryUsedBytes,
		"memory_limit_bytes", m.MemoryLimitBytes,
		"memory_usage_pct", m.MemoryUsagePercentage,
		"total_entries", m.TotalEntries,
		"hit_ratio", m.HitRatio,
		"avg_latency_ms", m.AverageLatencyMs,
		"is_connected", connected,
		"retry_count", m.RetryCount,
		"fallback_count", m.FallbackCount,
		"breaker_opens", m.BreakerOpens,
		"open_dependencies", m.OpenDependencies,
	)
}

func (p *LoggingPublisher) Close() error { return nil }

func (p *LoggingPublisher) emit(kind, name string, tags []string, attrs ...any) {
	args := make([]any, 0, len(attrs)+4)
	args = append(args, "name", name)
	args = append(args, attrs...)
	args = append(args, "tags", p.withBase(tags))
	p.logger.Debug(kind, args...)
}

// withBase joins the call's tags onto the publisher's base tags without
// touching either slice.
func (p *LoggingPublisher) withBase(tags []string) []string {
	switch {
	case len(tags) == 0:
		return p.baseTags
	case len(p.baseTags) == 0:
		return tags
	default:
		merged := make([]string, 0, len(p.baseTags)+len(tags))
		merged = append(merged, p.baseTags...)
		return append(merged, tags...)
	}
}

var _ types.Publisher = (*LoggingPublisher)(nil)
