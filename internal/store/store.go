// Package store is the key-value layer every service persists through.
//
// Backends differ in durability, not in semantics: a key written with a TTL
// disappears after it, Take and CompareAndSwap are single-key atomic, and
// nothing spans more than one key.
package store

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks luckydraw/internal/store Store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the key-value contract used by the services.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value at key. A zero ttl means the key never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX writes value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// CompareAndSwap replaces the value at key with next only when the stored
	// value equals prev, and reports whether the swap happened.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) (bool, error)
	// Take atomically reads and deletes key. Absent keys yield ErrNotFound.
	Take(ctx context.Context, key string) ([]byte, error)
	// Incr atomically increments the integer at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Keys lists the live keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Purger is implemented by backends that do not expire keys on their own.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	RedisURL    string
	DatabaseURL string
}

// Open builds the backend named in opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return OpenRedis(ctx, opts.RedisURL)
	case BackendPostgres:
		if err := MigratePostgres(opts.DatabaseURL); err != nil {
			return nil, err
		}
		return OpenPostgres(opts.DatabaseURL)
	default:
		return nil, errors.New("store: unknown backend " + opts.Backend)
	}
}
