// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the render-output cache behind the public
// page path. Two backends are available: an in-process memory cache
// and Redis for multi-instance deployments.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the backend interface. Implementations must be safe for
// concurrent use. Values are []byte so the same interface serves both
// the memory and Redis backends.
type Cache interface {
	// Get returns the value for key, or ErrCacheMiss if absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl means the backend's
	// default TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry this cache owns.
	Clear(ctx context.Context) error

	// Has reports whether key exists and has not expired.
	Has(ctx context.Context, key string) (bool, error)

	// Close releases backend resources. The cache is unusable after.
	Close() error
}

// Error is the sentinel error type for cache operations.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrCacheMiss means the key was not found or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed means the cache was closed.
	ErrCacheClosed Error = "cache closed"
)

// Config selects and tunes a cache backend.
type Config struct {
	// Backend is "memory" or "redis".
	Backend string

	// RedisURL is the connection URL for the redis backend, for
	// example redis://localhost:6379/0.
	RedisURL string

	// Prefix namespaces keys in shared backends.
	Prefix string

	// DefaultTTL applies when Set is called with a zero ttl.
	DefaultTTL time.Duration

	// MaxEntries caps the memory backend. Zero means unlimited.
	MaxEntries int

	// CleanupInterval drives expired-entry sweeps in the memory
	// backend. Zero disables the sweep goroutine.
	CleanupInterval time.Duration
}

// DefaultConfig returns a memory cache configuration suitable for a
// single-instance deployment.
func DefaultConfig() Config {
	return Config{
		Backend:         "memory",
		Prefix:          "pbcms:",
		DefaultTTL:      time.Hour,
		MaxEntries:      10000,
		CleanupInterval: time.Minute,
	}
}

// New creates the cache backend named by cfg.Backend.
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(MemoryOptions{
			DefaultTTL:      cfg.DefaultTTL,
			MaxEntries:      cfg.MaxEntries,
			CleanupInterval: cfg.CleanupInterval,
		}), nil
	case "redis":
		return NewRedisCache(RedisOptions{
			URL:        cfg.RedisURL,
			Prefix:     cfg.Prefix,
			DefaultTTL: cfg.DefaultTTL,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
