package retry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

type fakeNetErr struct {
	timeout bool
}

func (e fakeNetErr) Error() string   { return "dial tcp 10.0.0.1:443: i/o timeout" }
func (e fakeNetErr) Timeout() bool   { return e.timeout }
func (e fakeNetErr) Temporary() bool { return false }

func TestClassify(t *testing.T) {
	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{"nil error", nil, types.KindUnknown},
		{
			"typed kind wins over message",
			types.NewAccessError("fetch", "nass_yield", types.KindRateLimit, errors.New("connection dropped")),
			types.KindRateLimit,
		},
		{
			"open circuit sentinel",
			fmt.Errorf("call rejected: %w", types.ErrCircuitOpen),
			types.KindCircuitOpen,
		},
		{
			"panic sentinel",
			fmt.Errorf("%w: nil map write", types.ErrPanicked),
			types.KindPanic,
		},
		{"context deadline", context.DeadlineExceeded, types.KindTimeout},
		{"io deadline", os.ErrDeadlineExceeded, types.KindTimeout},
		{
			"bulkhead saturation",
			fmt.Errorf("compute: %w", types.ErrBulkheadFull),
			types.KindUnavailable,
		},
		{
			"connection refused syscall",
			fmt.Errorf("dial: %w", syscall.ECONNREFUSED),
			types.KindConnection,
		},
		{
			"connection reset syscall",
			fmt.Errorf("read: %w", syscall.ECONNRESET),
			types.KindConnection,
		},
		{"net timeout", fakeNetErr{timeout: true}, types.KindTimeout},
		{"net non-timeout reads as connection", fakeNetErr{timeout: false}, types.KindConnection},
		{"429 message", errors.New("HTTP 429 Too Many Requests"), types.KindRateLimit},
		{"rate limit message", errors.New("quickstats rate limit exceeded"), types.KindRateLimit},
		{"503 message", errors.New("upstream returned 503"), types.KindUnavailable},
		{"unavailable message", errors.New("service unavailable, try later"), types.KindUnavailable},
		{"404 message", errors.New("commodity not found for state"), types.KindNotFound},
		{"401 message", errors.New("401 unauthorized"), types.KindPermission},
		{"forbidden message", errors.New("access forbidden for key"), types.KindPermission},
		{"truncated payload", errors.New("unexpected end of JSON input"), types.KindCorruption},
		{"malformed payload", errors.New("malformed response body"), types.KindCorruption},
		{"validation message", errors.New("validation failed: year out of range"), types.KindValidation},
		{"timeout message", errors.New("request timed out after 10s"), types.KindTimeout},
		{"connection message", errors.New("connection reset by peer"), types.KindConnection},
		{"broken pipe message", errors.New("write: broken pipe"), types.KindConnection},
		{"unclassifiable", errors.New("weird internal condition"), types.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestSeverityOf(t *testing.T) {
	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		kind types.ErrorKind
		want types.Severity
	}{
		{types.KindTimeout, types.SeverityLow},
		{types.KindConnection, types.SeverityLow},
		{types.KindNotFound, types.SeverityLow},
		{types.KindValidation, types.SeverityLow},
		{types.KindRateLimit, types.SeverityMedium},
		{types.KindUnavailable, types.SeverityMedium},
		{types.KindCircuitOpen, types.SeverityMedium},
		{types.KindUnknown, types.SeverityMedium},
		{types.KindCorruption, types.SeverityHigh},
		{types.KindPermission, types.SeverityHigh},
		{types.KindPanic, types.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := SeverityOf(tt.kind); got != tt.want {
				t.Errorf("SeverityOf(%s) = %s, want %s", tt.kind, got, tt.want)
			}
		})
	}
}
