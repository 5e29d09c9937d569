package sqlc

import (
	"context"
)

const countEntries = `-- name: CountEntries :one
SELECT COUNT(*) FROM kv_entries
`

func (q *Queries) CountEntries(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countEntries)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteEntry = `-- name: DeleteEntry :execrows
DELETE FROM kv_entries
WHERE key = ?
`

func (q *Queries) DeleteEntry(ctx context.Context, key string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteEntry, key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getEntry = `-- name: GetEntry :one
SELECT key, value, updated_at FROM kv_entries
WHERE key = ?
`

func (q *Queries) GetEntry(ctx context.Context, key string) (KvEntry, error) {
	row := q.db.QueryRowContext(ctx, getEntry, key)
	var i KvEntry
	err := row.Scan(&i.Key, &i.Value, &i.UpdatedAt)
	return i, err
}

const listEntriesByPrefix = `-- name: ListEntriesByPrefix :many
SELECT key, value, updated_at FROM kv_entries
WHERE substr(key, 1, length(?1)) = ?1
ORDER BY key
`

func (q *Queries) ListEntriesByPrefix(ctx context.Context,
	prefix string) ([]KvEntry, error) {

	rows, err := q.db.QueryContext(ctx, listEntriesByPrefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []KvEntry
	for rows.Next() {
		var i KvEntry
		if err := rows.Scan(&i.Key, &i.Value, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertEntry = `-- name: UpsertEntry :exec
INSERT INTO kv_entries (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at
`

type UpsertEntryParams struct {
	Key       string
	Value     []byte
	UpdatedAt int64
}

func (q *Queries) UpsertEntry(ctx context.Context, arg UpsertEntryParams) error {
	_, err := q.db.ExecContext(ctx, upsertEntry, arg.Key, arg.Value,
		arg.UpdatedAt)
	return err
}
