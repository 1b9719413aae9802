package upstream

import (
	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

type (
	// AccessError wraps a failure along the resilient call path with the
	// dependency and classified kind.
	AccessError = types.AccessError
	// CacheError wraps a storage-tier failure with the operation, key, and
	// layer that produced it.
	CacheError = types.CacheError
	// ErrorKind is the coarse failure classification used for retry
	// decisions and stats buckets.
	ErrorKind = types.ErrorKind
)

var (
	// ErrCacheMiss indicates that a requested entry was not found in the cache.
	ErrCacheMiss = types.ErrCacheMiss
	// ErrRedisUnavailable indicates that the Redis server is not available.
	ErrRedisUnavailable = types.ErrRedisUnavailable
	// ErrCircuitOpen indicates that a dependency's circuit breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrRetriesExhausted indicates that every attempt failed and no fallback applied.
	ErrRetriesExhausted = types.ErrRetriesExhausted
	// ErrBulkheadFull indicates that a dependency's bulkhead is at capacity.
	ErrBulkheadFull = types.ErrBulkheadFull
	// ErrBulkheadTimeout indicates that the bulkhead acquisition timed out.
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
	// ErrUnknownDependency indicates a call against an unregistered dependency.
	ErrUnknownDependency = types.ErrUnknownDependency
	// ErrDependencyExists indicates a duplicate dependency registration.
	ErrDependencyExists = types.ErrDependencyExists
	// ErrInvalidConfig indicates an invalid configuration value.
	ErrInvalidConfig = types.ErrInvalidConfig
	// ErrSerializationFailed indicates that payload serialization failed.
	ErrSerializationFailed = types.ErrSerializationFailed
	// ErrInvalidKey indicates that a cache key component is invalid.
	ErrInvalidKey = types.ErrInvalidKey
	// ErrClosed indicates that the access layer has been closed.
	ErrClosed = types.ErrClosed
	// ErrShutdownTimeout indicates background work outlived the close timeout.
	ErrShutdownTimeout = types.ErrShutdownTimeout
)

// KindOf extracts the classified kind from an error chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	return types.KindOf(err)
}

// IsCacheMiss returns true if the error is a cache miss.
func IsCacheMiss(err error) bool {
	return types.IsCacheMiss(err)
}

// IsCircuitOpen returns true if the error indicates an open circuit breaker.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

// IsRetriesExhausted returns true if the error indicates an exhausted retry budget.
func IsRetriesExhausted(err error) bool {
	return types.IsRetriesExhausted(err)
}

// IsUnknownDependency returns true if the error names an unregistered dependency.
func IsUnknownDependency(err error) bool {
	return types.IsUnknownDependency(err)
}

// IsRedisUnavailable returns true if the error indicates Redis is unavailable.
func IsRedisUnavailable(err error) bool {
	return types.IsRedisUnavailable(err)
}

// IsInvalidKey returns true if the error reports an invalid key component.
func IsInvalidKey(err error) bool {
	return types.IsInvalidKey(err)
}
