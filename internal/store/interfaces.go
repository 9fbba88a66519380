// Package store provides the counter storage backends for the view counter.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrStoreUnavailable is returned when the backing store cannot be reached or
// answers with something that cannot be interpreted.
var ErrStoreUnavailable = errors.New("store unavailable")

// Key namespaces. Key names are shared with the site's previous deployment and
// must not change. Marker values are never read, so only their presence matters.
const (
	counterNamespace = "pageviews"
	dedupNamespace   = "deduplicate"
)

// CounterStore interface for counter and dedup marker operations
type CounterStore interface {
	// Incr atomically increments key by one and returns the new value.
	// A missing key counts as zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Get returns the value of key. found is false when the key was never set.
	Get(ctx context.Context, key string) (value int64, found bool, err error)

	// MGet returns one entry per key, in order. A nil entry means the key is absent.
	MGet(ctx context.Context, keys []string) ([]*int64, error)

	// SetNX sets key to value only if it does not exist yet, expiring after ttl.
	// It reports whether the key was newly set.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// CounterKey builds the counter key for a content item
func CounterKey(collection, slug string) string {
	return strings.Join([]string{counterNamespace, collection, slug}, ":")
}

// DedupKey builds the dedup marker key for a client fingerprint and slug.
// The collection is intentionally not part of the key.
func DedupKey(fingerprint, slug string) string {
	return strings.Join([]string{dedupNamespace, fingerprint, slug}, ":")
}
