package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roasbeef/canvasrca/internal/db"
	"github.com/roasbeef/canvasrca/internal/kvstore"
)

// OpenStore opens the configured backend. The returned close func releases
// it and is never nil.
func (s StoreConfig) OpenStore(ctx context.Context,
	log *slog.Logger) (kvstore.Store, func() error, error) {

	noop := func() error { return nil }

	switch s.Backend {
	case BackendMemory:
		return kvstore.NewMemory(), noop, nil

	case BackendDisabled:
		return kvstore.Disabled{}, noop, nil

	case BackendSQLite:
		dbStore, err := db.Open(s.Path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		store := kvstore.NewSQLite(dbStore)

		return store, store.Close, nil

	case BackendRedis:
		store := kvstore.NewRedis(s.Redis)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w",
				s.Redis.Addr, err)
		}

		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
}
