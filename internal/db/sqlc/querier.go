package sqlc

import (
	"context"
)

// Querier is the interface implemented by Queries.
type Querier interface {
	CountEntries(ctx context.Context) (int64, error)
	DeleteEntry(ctx context.Context, key string) (int64, error)
	GetEntry(ctx context.Context, key string) (KvEntry, error)
	ListEntriesByPrefix(ctx context.Context, prefix string) ([]KvEntry, error)
	UpsertEntry(ctx context.Context, arg UpsertEntryParams) error
}

var _ Querier = (*Queries)(nil)
