package cache

import (
	"context"
	"fmt"
	"time"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = fmt.Errorf("cache miss")

// Cache is the TTL key-value backend behind the ephemeral session store and
// the cool-down ledger. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX writes the key only if it is absent and reports whether this
	// call won. Concurrent claims on the same key yield exactly one winner.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Swap atomically replaces the value under key with fn(current),
	// preserving the remaining TTL. Lost to a concurrent writer means the
	// read-modify-write is retried on the new value, never overwritten.
	// ErrCacheMiss if the key is gone; fn errors abort and propagate.
	Swap(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// GetDel atomically reads and deletes a key, so concurrent consumers of
	// the same session token get exactly one success.
	GetDel(ctx context.Context, key string) ([]byte, error)
	Close() error
}
