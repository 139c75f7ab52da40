// Package store is a thin key-value adapter over the external state store.
// It holds hash and string values under flat keys and knows nothing about
// rooms or players.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("store: key not found")
	ErrWrongType   = errors.New("store: operation against a key holding the wrong kind of value")
	ErrUnavailable = errors.New("store: unexpected backend error")
)

// Store mirrors the small command set the coordinator needs from a remote
// hash/string store. Each call is atomic on its own; nothing spans calls.
type Store interface {
	// HSet merges fields into the hash at key, creating it if needed.
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGetAll returns every field of the hash at key, or an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// SetNX writes value only if key is absent and reports whether it did.
	// A positive ttl is attached to a successful write.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	// Keys lists live keys starting with prefix. The scan is best-effort and
	// not a snapshot.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close()
}
