package providers

import (
	"context"
	"time"
)

// CacheProvider is a small key/value store for per-user preferences such as
// the last selected clinic. Appointment data is never cached.
type CacheProvider interface {
	// Get returns the stored value; found is false on a miss
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores a value; a zero ttl keeps it until deleted
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
}
