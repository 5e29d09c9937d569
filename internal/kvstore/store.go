// Package kvstore defines the local key/value storage the summary cache sits
// on, along with its concrete backends.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned by every operation of a store that is
	// not usable in the current environment.
	ErrUnavailable = errors.New("kvstore: store unavailable")
)

// Entry is a single key/value pair as held by a Store.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a string-keyed store of opaque values.
type Store interface {
	// Get returns the value stored under key. The boolean is false when
	// the key is not present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value under key, replacing any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes every listed key. Unknown keys are ignored.
	Remove(ctx context.Context, keys ...string) error

	// List returns all entries whose key starts with prefix, ordered by
	// key.
	List(ctx context.Context, prefix string) ([]Entry, error)
}

// Disabled is a Store for environments without local storage. Every
// operation fails with ErrUnavailable.
type Disabled struct{}

var _ Store = Disabled{}

// Get implements Store.
func (Disabled) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, ErrUnavailable
}

// Set implements Store.
func (Disabled) Set(context.Context, string, []byte) error {
	return ErrUnavailable
}

// Remove implements Store.
func (Disabled) Remove(context.Context, ...string) error {
	return ErrUnavailable
}

// List implements Store.
func (Disabled) List(context.Context, string) ([]Entry, error) {
	return nil, ErrUnavailable
}
