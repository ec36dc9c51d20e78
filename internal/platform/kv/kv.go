// Package kv is the key-value capability behind the profile collection.
// A value is an opaque byte string written and read as a whole.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has never been set.
	ErrNotFound = errors.New("kv: key not found")
	// ErrConflict is returned by Update when concurrent writers kept winning.
	ErrConflict = errors.New("kv: concurrent update conflict")
)

// Store reads and writes whole values by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// UpdateFunc computes the new value from the current one. found is false
// when the key is absent. Returning an error aborts the update.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// Updater is implemented by stores that can run a read-modify-write atomically.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Update runs fn atomically when s implements Updater. Otherwise it falls
// back to Get then Set, where a concurrent writer can be lost.
func Update(ctx context.Context, s Store, key string, fn UpdateFunc) error {
	if u, ok := s.(Updater); ok {
		return u.Update(ctx, key, fn)
	}
	current, err := s.Get(ctx, key)
	found := true
	if errors.Is(err, ErrNotFound) {
		found, err = false, nil
	}
	if err != nil {
		return err
	}
	next, err := fn(current, found)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, next)
}

// Ping checks the backend when it supports it and succeeds otherwise.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
