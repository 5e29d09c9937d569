package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roasbeef/canvasrca/internal/db/sqlc"
)

// Entry is a stored key/value pair along with the wall-clock time it was
// last written.
type Entry struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// Store wraps the kv_entries queries with transaction support.
type Store struct {
	db      *sql.DB
	queries *sqlc.Queries
	txExec  *TransactionExecutor[*sqlc.Queries]
	log     *slog.Logger
}

// NewStore creates a new Store instance wrapping the given database
// connection.
func NewStore(db *sql.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}

	base := NewBaseDB(db)
	createQuery := func(tx *sql.Tx) *sqlc.Queries {
		return base.Queries.WithTx(tx)
	}

	return &Store{
		db:      db,
		queries: base.Queries,
		txExec: NewTransactionExecutor(
			base, createQuery, log.With("component", "db"),
		),
		log: log,
	}
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetEntry returns the entry stored under key. The boolean is false when no
// such entry exists.
func (s *Store) GetEntry(ctx context.Context, key string) (Entry, bool, error) {
	row, err := s.queries.GetEntry(ctx, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Entry{}, false, nil

	case err != nil:
		return Entry{}, false, fmt.Errorf("failed to get entry: %w",
			MapSQLError(err))
	}

	return entryFromSqlc(row), true, nil
}

// PutEntry inserts or replaces the value stored under key.
func (s *Store) PutEntry(ctx context.Context, key string, value []byte) error {
	err := s.txExec.ExecTx(ctx, WriteTxOption(), func(q *sqlc.Queries) error {
		return q.UpsertEntry(ctx, sqlc.UpsertEntryParams{
			Key:       key,
			Value:     value,
			UpdatedAt: time.Now().UnixMilli(),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to put entry: %w", err)
	}

	return nil
}

// DeleteEntries removes every listed key in one transaction and returns how
// many rows were actually deleted. Unknown keys are ignored.
func (s *Store) DeleteEntries(ctx context.Context, keys ...string) (int64,
	error) {

	if len(keys) == 0 {
		return 0, nil
	}

	var deleted int64
	err := s.txExec.ExecTx(ctx, WriteTxOption(), func(q *sqlc.Queries) error {
		deleted = 0
		for _, key := range keys {
			n, err := q.DeleteEntry(ctx, key)
			if err != nil {
				return err
			}
			deleted += n
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}

	return deleted, nil
}

// ListEntries returns every entry whose key starts with prefix, ordered by
// key. An empty prefix lists the whole table.
func (s *Store) ListEntries(ctx context.Context, prefix string) ([]Entry,
	error) {

	rows, err := s.queries.ListEntriesByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w",
			MapSQLError(err))
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = entryFromSqlc(r)
	}

	return entries, nil
}

// CountEntries returns the number of rows in the table.
func (s *Store) CountEntries(ctx context.Context) (int64, error) {
	n, err := s.queries.CountEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w",
			MapSQLError(err))
	}

	return n, nil
}

func entryFromSqlc(e sqlc.KvEntry) Entry {
	return Entry{
		Key:       e.Key,
		Value:     e.Value,
		UpdatedAt: time.UnixMilli(e.UpdatedAt),
	}
}
