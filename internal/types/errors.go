package types

import (
	"errors"
	"fmt"
)

var (
	ErrCacheMiss           = errors.New("cache: entry not found")
	ErrRedisUnavailable    = errors.New("cache: redis unavailable")
	ErrSerializationFailed = errors.New("cache: serialization failed")
	ErrInvalidKey          = errors.New("cache: invalid key component")
	ErrWriteQueueFull      = errors.New("cache: write queue full")

	ErrCircuitOpen      = errors.New("breaker: circuit open")
	ErrPanicked         = errors.New("upstream: operation panicked")
	ErrRetriesExhausted = errors.New("retry: attempts exhausted")
	ErrBulkheadFull     = errors.New("bulkhead: at capacity")
	ErrBulkheadTimeout  = errors.New("bulkhead: wait timeout")

	ErrUnknownDependency = errors.New("upstream: unknown dependency")
	ErrDependencyExists  = errors.New("upstream: dependency already registered")
	ErrInvalidConfig     = errors.New("upstream: invalid configuration")
	ErrClosed            = errors.New("upstream: closed")
	ErrShutdownTimeout   = errors.New("upstream: shutdown timeout waiting for background operations")
)

// CacheError wraps a storage-tier failure with the operation, key, and layer
// that produced it.
type CacheError struct {
	Op    string
	Key   string
	Layer string
	Err   error
}

func NewCacheError(op, key, layer string, err error) *CacheError {
	return &CacheError{Op: op, Key: key, Layer: layer, Err: err}
}

func (e *CacheError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s on %s: %v", e.Op, e.Layer, e.Err)
	}
	return fmt.Sprintf("cache %s on %s [%s]: %v", e.Op, e.Layer, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// AccessError wraps a failure along the resilient call path with the
// dependency and classified kind, so callers can branch on errors.Is/As
// instead of parsing messages.
type AccessError struct {
	Op         string
	Dependency string
	Kind       ErrorKind
	Err        error
}

func NewAccessError(op, dependency string, kind ErrorKind, err error) *AccessError {
	return &AccessError{Op: op, Dependency: dependency, Kind: kind, Err: err}
}

func (e *AccessError) Error() string {
	if e.Dependency == "" {
		return fmt.Sprintf("upstream %s (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("upstream %s on %s (%s): %v", e.Op, e.Dependency, e.Kind, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// KindOf extracts the classified kind from an error chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

func IsCacheMiss(err error) bool { return errors.Is(err, ErrCacheMiss) }

func IsRedisUnavailable(err error) bool { return errors.Is(err, ErrRedisUnavailable) }

func IsCircuitOpen(err error) bool { return errors.Is(err, ErrCircuitOpen) }

func IsRetriesExhausted(err error) bool { return errors.Is(err, ErrRetriesExhausted) }

func IsUnknownDependency(err error) bool { return errors.Is(err, ErrUnknownDependency) }
