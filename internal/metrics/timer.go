package metrics

import (
	"time"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// Timer measures one operation and reports it as a timing metric on Stop.
// With a nil publisher it degrades to a plain stopwatch.
type Timer struct {
	publisher types.Publisher
	name      string
	tags      []string
	start     time.Time
}

func NewTimer(publisher types.Publisher, name string, tags ...string) *Timer {
	return &Timer{
		publisher: publisher,
		name:      name,
		tags:      tags,
		start:     time.Now(),
	}
}

// Stop reports the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.publisher != nil {
		t.publisher.Timing(t.name, elapsed, t.tags...)
	}
	return elapsed
}

// Elapsed reads the stopwatch without reporting.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
