package kvstore

import (
	"context"

	"github.com/roasbeef/canvasrca/internal/db"
)

// SQLite is a Store persisted in the local SQLite database.
type SQLite struct {
	db *db.Store
}

var _ Store = (*SQLite)(nil)

// NewSQLite wraps an opened, migrated database.
func NewSQLite(store *db.Store) *SQLite {
	return &SQLite{db: store}
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok, err := s.db.GetEntry(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	return entry.Value, true, nil
}

// Set implements Store.
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	return s.db.PutEntry(ctx, key, value)
}

// Remove implements Store.
func (s *SQLite) Remove(ctx context.Context, keys ...string) error {
	_, err := s.db.DeleteEntries(ctx, keys...)
	return err
}

// List implements Store.
func (s *SQLite) List(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.db.ListEntries(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = Entry{Key: r.Key, Value: r.Value}
	}

	return out, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
