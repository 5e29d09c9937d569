// Package extract locates the assignment description in an LMS page and
// pulls out its text and the external links it references.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/roasbeef/canvasrca/internal/cache"
	"golang.org/x/net/html"
)

const (
	// MaxContentChars caps the sanitized text handed to the summarizer.
	MaxContentChars = 4000

	// minContentChars is the trimmed text length an element must exceed
	// to count as the assignment body.
	minContentChars = 20
)

var (
	// ErrNoAssignmentContent is returned when no element on the page
	// looks like an assignment description.
	ErrNoAssignmentContent = errors.New("no assignment content found")
)

// internalLinkPatterns mark hrefs that point back into the LMS.
var internalLinkPatterns = []string{
	"/courses/",
	"/modules/",
	"/assignments/",
	"/discussion_topics/",
	"/quizzes/",
	"/gradebook/",
	"/calendar/",
	"/groups/",
	"/users/",
	"#",
	"mailto:",
	"tel:",
}

// Assignment is what was extracted from a page.
type Assignment struct {
	// Content is the sanitized text of the description.
	Content string

	// HTML is the inner markup of the description element.
	HTML string

	// Links are the external links inside the description, deduplicated
	// by URL in document order.
	Links []cache.Link
}

// ExtractHTML parses a page and extracts its assignment.
func ExtractHTML(r io.Reader) (Assignment, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Assignment{}, fmt.Errorf("parse html: %w", err)
	}

	return ExtractNode(doc)
}

// ExtractNode extracts the assignment from an already parsed document.
func ExtractNode(doc *html.Node) (Assignment, error) {
	el := findContent(doc)
	if el == nil {
		return Assignment{}, ErrNoAssignmentContent
	}

	inner, err := innerHTML(el)
	if err != nil {
		return Assignment{}, fmt.Errorf("render content: %w", err)
	}

	return Assignment{
		Content: Sanitize(textContent(el)),
		HTML:    inner,
		Links:   externalLinks(el),
	}, nil
}

// findContent returns the assignment body element, or nil.
func findContent(doc *html.Node) *html.Node {
	for _, sel := range contentSelectors {
		el := sel.MatchFirst(doc)
		if el == nil {
			continue
		}

		text := strings.TrimSpace(textContent(el))
		if utf8.RuneCountInString(text) > minContentChars {
			return el
		}
	}

	return nil
}

// IsExternalLink reports whether href leaves the LMS.
func IsExternalLink(href string) bool {
	if href == "" {
		return false
	}

	for _, p := range internalLinkPatterns {
		if strings.Contains(href, p) {
			return false
		}
	}

	return strings.HasPrefix(href, "http://") ||
		strings.HasPrefix(href, "https://") ||
		(strings.Contains(href, ".") && !strings.HasPrefix(href, "/"))
}

// externalLinks collects the external anchors under root.
func externalLinks(root *html.Node) []cache.Link {
	links := []cache.Link{}
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href, ok := attr(n, "href")
			if ok && IsExternalLink(href) {
				if _, dup := seen[href]; !dup {
					seen[href] = struct{}{}

					text := strings.TrimSpace(textContent(n))
					if text == "" {
						text = href
					}
					title, _ := attr(n, "title")

					links = append(links, cache.Link{
						URL:   href,
						Text:  text,
						Title: title,
					})
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return links
}

// Sanitize collapses whitespace runs to single spaces, trims, and caps the
// result at MaxContentChars characters.
func Sanitize(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	if utf8.RuneCountInString(s) <= MaxContentChars {
		return s
	}

	return string([]rune(s)[:MaxContentChars])
}

// textContent concatenates the text below n, leaving out script and style
// bodies.
func textContent(n *html.Node) string {
	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			return

		case n.Type == html.ElementNode &&
			(n.Data == "script" || n.Data == "style"):
			return
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return b.String()
}

func innerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}

	return buf.String(), nil
}
