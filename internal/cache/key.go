package cache

import "strings"

// NamespacePrefix is the reserved prefix of every summary key. Entries in the
// store without it belong to someone else and are never touched.
const NamespacePrefix = "summary_"

// DeriveKey maps a page URL to its storage key. The URL is used verbatim:
// query, fragment and trailing slash are all significant.
func DeriveKey(pageURL string) string {
	return NamespacePrefix + pageURL
}

// IsNamespaced reports whether key belongs to the summary namespace.
func IsNamespaced(key string) bool {
	return strings.HasPrefix(key, NamespacePrefix)
}

// URLFromKey returns the page URL a namespaced key was derived from.
func URLFromKey(key string) (string, bool) {
	return strings.CutPrefix(key, NamespacePrefix)
}
