package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDeriveKeyExactURL(t *testing.T) {
	t.Parallel()

	base := "https://school.instructure.com/courses/1/assignments/2"
	require.Equal(t, "summary_"+base, DeriveKey(base))

	// No normalization: each variant is its own key.
	variants := []string{
		base,
		base + "/",
		base + "?module_item_id=9",
		base + "#submit",
		"HTTPS://school.instructure.com/courses/1/assignments/2",
	}
	seen := make(map[string]struct{})
	for _, v := range variants {
		seen[DeriveKey(v)] = struct{}{}
	}
	require.Len(t, seen, len(variants))
}

func TestDeriveKeyProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		u1 := rapid.String().Draw(t, "u1")
		u2 := rapid.String().Draw(t, "u2")

		k1 := DeriveKey(u1)
		require.Equal(t, k1, DeriveKey(u1))
		require.True(t, IsNamespaced(k1))

		back, ok := URLFromKey(k1)
		require.True(t, ok)
		require.Equal(t, u1, back)

		if u1 != u2 {
			require.NotEqual(t, k1, DeriveKey(u2))
		}
	})
}

func TestURLFromKeyRejectsForeignKeys(t *testing.T) {
	t.Parallel()

	_, ok := URLFromKey("settings_theme")
	require.False(t, ok)
	require.False(t, IsNamespaced("summaryhttps://x"))
}
