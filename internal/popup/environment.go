package popup

import (
	"net/url"
	"strings"
)

const (
	// StatusNotLMS is shown when the tab is not on a supported LMS.
	StatusNotLMS = "Not on a Canvas page"

	// StatusNotAssignment is shown on LMS pages that are not assignments.
	StatusNotAssignment = "Not on an assignment page"

	// StatusReady is shown when summarizing is possible.
	StatusReady = "Ready to summarize assignment"
)

// lmsHostPatterns are substrings of hostnames we treat as an LMS.
var lmsHostPatterns = []string{
	"instructure.com",
	"canvas.",
	".instructure.",
	"learn.",
	"lms.",
	"blackboard.com",
	"brightspace.com",
}

// IsLMSPage reports whether rawURL is hosted on a known LMS.
func IsLMSPage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, p := range lmsHostPatterns {
		if strings.Contains(host, p) {
			return true
		}
	}

	return false
}

// IsAssignmentPage reports whether rawURL points at an assignment.
func IsAssignmentPage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return strings.Contains(strings.ToLower(u.Path), "/assignments/")
}

// Environment is the outcome of checking a tab's URL.
type Environment struct {
	// Enabled is true when the summarize toggle may be used.
	Enabled bool

	// Status is the message shown to the user.
	Status string
}

// CheckURL evaluates whether the page at rawURL can be summarized.
func CheckURL(rawURL string) Environment {
	switch {
	case !IsLMSPage(rawURL):
		return Environment{Status: StatusNotLMS}

	case !IsAssignmentPage(rawURL):
		return Environment{Status: StatusNotAssignment}

	default:
		return Environment{Enabled: true, Status: StatusReady}
	}
}
