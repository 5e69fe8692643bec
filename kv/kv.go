// Package kv defines the key-value persistence contract the engine depends
// on. Everything the system stores (survey definitions, the keyword map,
// sessions, leads) goes through a Store.
package kv

import (
	"context"
	"time"
)

// Store is an async key-value store with optional per-key expiry.
type Store interface {
	// Get returns the stored value, or fault.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Put writes value under key. A zero ttl means no expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// List returns up to limit keys starting with prefix, in sorted order.
	// An empty prefix lists everything.
	List(ctx context.Context, prefix string, limit int) ([]string, error)
}
