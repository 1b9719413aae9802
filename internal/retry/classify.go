// Package retry orchestrates bounded retries with exponential backoff and
// the fallback chain consulted when attempts run out. It owns error
// classification: every failure is mapped to a kind and severity that drive
// retry eligibility, logging, and the health verdict.
package retry

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// kindKeywords maps message fragments to kinds for errors that arrive as
// bare strings from provider SDKs. Checked in order after the typed checks.
var kindKeywords = []struct {
	kind     types.ErrorKind
	patterns []string
}{
	{types.KindRateLimit, []string{"rate limit", "too many requests", "429"}},
	{types.KindUnavailable, []string{"unavailable", "bad gateway", "502", "503"}},
	{types.KindNotFound, []string{"not found", "404", "no such"}},
	{types.KindPermission, []string{"unauthorized", "forbidden", "permission denied", "401", "403"}},
	{types.KindCorruption, []string{"corrupt", "malformed", "unmarshal", "unexpected end of"}},
	{types.KindValidation, []string{"validation", "invalid"}},
	{types.KindTimeout, []string{"timeout", "timed out", "deadline"}},
	{types.KindConnection, []string{"connection", "broken pipe", "eof"}},
}

// Classify maps an error to its kind. Typed errors win: an AccessError
// carries its kind, sentinel and network errors match by identity, and only
// then does message sniffing run for errors provider SDKs return as plain
// strings.
func Classify(err error) types.ErrorKind {
	if err == nil {
		return types.KindUnknown
	}

	var ae *types.AccessError
	if errors.As(err, &ae) && ae.Kind != "" {
		return ae.Kind
	}

	switch {
	case errors.Is(err, types.ErrCircuitOpen):
		return types.KindCircuitOpen
	case errors.Is(err, types.ErrPanicked):
		return types.KindPanic
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return types.KindTimeout
	case errors.Is(err, types.ErrBulkheadFull), errors.Is(err, types.ErrBulkheadTimeout):
		return types.KindUnavailable
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return types.KindConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return types.KindTimeout
		}
		return types.KindConnection
	}

	msg := strings.ToLower(err.Error())
	for _, kk := range kindKeywords {
		for _, p := range kk.patterns {
			if strings.Contains(msg, p) {
				return kk.kind
			}
		}
	}

	return types.KindUnknown
}

// SeverityOf maps a kind to its base severity. Transient network trouble
// starts LOW and is escalated by the orchestrator when a component keeps
// exhausting its retry budget.
func SeverityOf(kind types.ErrorKind) types.Severity {
	switch kind {
	case types.KindTimeout, types.KindConnection, types.KindNotFound, types.KindValidation:
		return types.SeverityLow
	case types.KindRateLimit, types.KindUnavailable, types.KindCircuitOpen, types.KindUnknown:
		return types.SeverityMedium
	case types.KindCorruption, types.KindPermission:
		return types.SeverityHigh
	case types.KindPanic:
		return types.SeverityCritical
	default:
		return types.SeverityMedium
	}
}
