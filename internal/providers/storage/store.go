package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no value
var ErrNotFound = errors.New("key not found")

// Store is a flat key-value store. Every write replaces the whole value of a key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Open selects the SQLite store for a non-empty path and the memory store otherwise
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemory(), nil
	}
	return OpenSQLite(path)
}
