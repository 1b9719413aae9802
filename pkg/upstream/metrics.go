package upstream

import (
	"log/slog"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/metrics"
)

// NewLoggingPublisher returns a publisher that writes health batches to a
// structured logger. Useful during development and in environments without a
// StatsD agent; pair it with WithPublisher.
func NewLoggingPublisher(logger *slog.Logger, baseTags ...string) Publisher {
	return metrics.NewLoggingPublisher(logger, baseTags...)
}

// NewNoOpPublisher returns a publisher that discards everything.
func NewNoOpPublisher() Publisher {
	return metrics.NewNoOpPublisher()
}
