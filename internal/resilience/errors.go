package resilience

import (
	"errors"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// The protection sentinels live in types so every package matches on the
// same values; the aliases keep call sites in this package short.
var (
	ErrCircuitOpen     = types.ErrCircuitOpen
	ErrBulkheadFull    = types.ErrBulkheadFull
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
)

// IsCircuitOpen reports whether err is a fast-fail from an open breaker.
func IsCircuitOpen(err error) bool { return errors.Is(err, types.ErrCircuitOpen) }

// IsBulkheadError reports whether err came from bulkhead admission, either
// a full queue or an expired wait.
func IsBulkheadError(err error) bool {
	return errors.Is(err, types.ErrBulkheadFull) || errors.Is(err, types.ErrBulkheadTimeout)
}
