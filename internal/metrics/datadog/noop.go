package datadog

import (
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// NoOpPublisher is what NewPublisher hands back when DataDog is disabled.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher { return &NoOpPublisher{} }

func (p *NoOpPublisher) Gauge(name string, value float64, tags ...string) {}

func (p *NoOpPublisher) Incr(name string, tags ...string) {}

func (p *NoOpPublisher) Count(name string, value int64, tags ...string) {}

func (p *NoOpPublisher) Histogram(name string, value float64, tags ...string) {}

func (p *NoOpPublisher) Timing(name string, value time.Duration, tags ...string) {}

func (p *NoOpPublisher) Event(title, text, alertType string, tags ...string) {}

func (p *NoOpPublisher) PublishHealthMetrics(metrics *types.PublisherHealthMetrics) {}

func (p *NoOpPublisher) Close() error { return nil }

var _ types.Publisher = (*NoOpPublisher)(nil)
