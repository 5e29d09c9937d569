package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/roasbeef/canvasrca/internal/db"
	"github.com/stretchr/testify/require"
)

// backends returns every Store implementation available in this
// environment, keyed by name.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	dbStore, err := db.Open(filepath.Join(t.TempDir(), "kv.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		dbStore.Close()
	})

	stores := map[string]Store{
		"memory": NewMemory(),
		"sqlite": NewSQLite(dbStore),
	}

	if addr := os.Getenv("RCA_TEST_REDIS_ADDR"); addr != "" {
		r := NewRedis(RedisConfig{
			Addr:      addr,
			Namespace: "rcatest:" + uuid.NewString() + ":",
		})
		require.NoError(t, r.Ping(context.Background()))
		t.Cleanup(func() {
			r.Close()
		})
		stores["redis"] = r
	}

	return stores
}

func TestStoreContract(t *testing.T) {
	t.Parallel()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, "summary_x")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, store.Set(ctx, "summary_b", []byte("2")))
			require.NoError(t, store.Set(ctx, "summary_a", []byte("1")))
			require.NoError(t, store.Set(ctx, "summaryZ", []byte("z")))
			require.NoError(t, store.Set(ctx, "theme", []byte("dark")))

			// Overwrite.
			require.NoError(t, store.Set(ctx, "summary_a", []byte("1b")))

			v, ok, err := store.Get(ctx, "summary_a")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte("1b"), v)

			entries, err := store.List(ctx, "summary_")
			require.NoError(t, err)
			require.Equal(t, []Entry{
				{Key: "summary_a", Value: []byte("1b")},
				{Key: "summary_b", Value: []byte("2")},
			}, entries)

			require.NoError(t, store.Remove(ctx, "summary_a", "nope"))
			require.NoError(t, store.Remove(ctx))

			_, ok, err = store.Get(ctx, "summary_a")
			require.NoError(t, err)
			require.False(t, ok)

			v, ok, err = store.Get(ctx, "theme")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte("dark"), v)
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in))
	in[0] = 'x'

	out, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("abc"), out)

	out[0] = 'y'
	again, _, _ := m.Get(ctx, "k")
	require.Equal(t, []byte("abc"), again)
	require.Equal(t, 1, m.Len())
}

func TestDisabledStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var s Disabled

	_, _, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, s.Set(ctx, "k", nil), ErrUnavailable)
	require.ErrorIs(t, s.Remove(ctx, "k"), ErrUnavailable)
	_, err = s.List(ctx, "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestEscapeGlob(t *testing.T) {
	t.Parallel()

	require.Equal(t, `summary_https://x/\?a=\[1\]\*`,
		escapeGlob("summary_https://x/?a=[1]*"))
	require.Equal(t, `a\\b`, escapeGlob(`a\b`))
}
