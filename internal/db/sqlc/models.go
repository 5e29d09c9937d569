package sqlc

// KvEntry is a row of the kv_entries table.
type KvEntry struct {
	Key       string
	Value     []byte
	UpdatedAt int64
}
