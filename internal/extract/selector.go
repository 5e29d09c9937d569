package extract

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// contentSelectorList holds the content selectors in priority order. They
// cover the Canvas themes seen in the wild.
var contentSelectorList = []string{
	`[data-testid="assignment-description"]`,
	".assignment-content",
	".assignment_description",
	".user_content",
	".assignment-description",
	"#assignment_show",
	".show-content",
	"#assignment-show",
	".assignment_show",
}

// contentSelectors are tried in order; the first match with enough text
// wins.
var contentSelectors = compileSelectors(contentSelectorList)

// compileSelectors compiles a fixed selector list, panicking on a bad
// entry.
func compileSelectors(list []string) []cascadia.Selector {
	out := make([]cascadia.Selector, len(list))
	for i, s := range list {
		out[i] = cascadia.MustCompile(s)
	}

	return out
}

// attr returns the value of the named attribute of n.
func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}

	return "", false
}
