// Package datadog publishes access-layer metrics through a DogStatsD agent.
package datadog

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/metrics"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Every metric ships unsampled; the agent aggregates.
const sampleAll = 1

// Publisher sends metrics to the local DataDog agent over statsd. Send
// failures are logged at debug and otherwise dropped, metrics never block
// or fail a call.
type Publisher struct {
	client   *statsd.Client
	logger   *slog.Logger
	baseTags []string
}

// NewPublisher builds a publisher from config. When DataDog is disabled it
// hands back a NoOpPublisher so callers need no enabled check.
func NewPublisher(cfg *config.DataDogConfig, logger *slog.Logger) (types.Publisher, error) {
	if !cfg.Enabled {
		return &NoOpPublisher{}, nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	addr := net.JoinHostPort(cfg.AgentHost, strconv.Itoa(cfg.Port))
	client, err := statsd.New(addr,
		statsd.WithNamespace(cfg.Prefix+"."),
		statsd.WithTags(cfg.Tags),
	)
	if err != nil {
		return nil, fmt.Errorf("statsd client: %w", err)
	}

	logger.Info("Shipping metrics to DogStatsD",
		"address", addr,
		"prefix", cfg.Prefix,
		"tags", cfg.Tags,
	)

	return &Publisher{
		client:   client,
		baseTags: cfg.Tags,
		logger:   logger.With("component", "statsd"),
	}, nil
}

func (p *Publisher) Gauge(name string, value float64, tags ...string) {
	p.send("gauge", name, p.client.Gauge(name, value, p.withBase(tags), sampleAll))
}

func (p *Publisher) Incr(name string, tags ...string) {
	p.send("incr", name, p.client.Incr(name, p.withBase(tags), sampleAll))
}

func (p *Publisher) Count(name string, value int64, tags ...string) {
	p.send("count", name, p.client.Count(name, value, p.withBase(tags), sampleAll))
}

func (p *Publisher) Histogram(name string, value float64, tags ...string) {
	p.send("histogram", name, p.client.Histogram(name, value, p.withBase(tags), sampleAll))
}

func (p *Publisher) Timing(name string, duration time.Duration, tags ...string) {
	p.send("timing", name, p.client.Timing(name, duration, p.withBase(tags), sampleAll))
}

func (p *Publisher) Event(title, text, alertType string, tags ...string) {
	err := p.client.Event(&statsd.Event{
		Title:     title,
		Text:      text,
		AlertType: statsd.EventAlertType(alertType),
		Tags:      p.withBase(tags),
	})
	p.send("event", title, err)
}

// PublishHealthMetrics turns one health batch into gauges: tier usage,
// hit ratio, latency, the protection counters, a per-dependency gauge for
// every open breaker, and call counts split by answer quality.
func (p *Publisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}

	p.Gauge("memory.used_bytes", float64(m.MemoryUsedBytes))
	p.Gauge("memory.limit_bytes", float64(m.MemoryLimitBytes))
	p.Gauge("memory.usage_percentage", min(max(m.MemoryUsagePercentage, 0), 100))
	p.Gauge("entries.total", float64(m.TotalEntries))
	p.Gauge("performance.hit_ratio", min(max(m.HitRatio, 0), 1))
	p.Gauge("performance.average_latency_ms", max(m.AverageLatencyMs, 0))

	connected := 0.0
	if m.IsConnected {
		connected = 1.0
	}
	p.Gauge("connection.status", connected)

	p.Gauge("protection.retries", float64(m.RetryCount))
	p.Gauge("protection.fallbacks", float64(m.FallbackCount))
	p.Gauge("protection.breaker_opens", float64(m.BreakerOpens))
	p.Gauge("protection.open_breakers", float64(len(m.OpenDependencies)))
	for _, dependency := range m.OpenDependencies {
		p.Gauge("breaker.state", 1,
			metrics.DependencyTag(dependency),
			metrics.CircuitStateTag("open"),
		)
	}
	for quality, count := range m.CallsByQuality {
		p.Gauge("calls.by_quality", float64(count), metrics.QualityTag(quality))
	}
}

func (p *Publisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *Publisher) send(kind, name string, err error) {
	if err != nil {
		p.logger.Debug("Dropped statsd "+kind, "name", name, "error", err)
	}
}

func (p *Publisher) withBase(tags []string) []string {
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

var _ types.Publisher = (*Publisher)(nil)
