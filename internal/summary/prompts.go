package summary

import (
	"fmt"
	"strings"

	"github.com/roasbeef/canvasrca/internal/extract"
)

// defaultSystemPrompt is the system prompt used unless overridden.
const defaultSystemPrompt = `You summarize learning-management-system ` +
	`assignments for students. Be direct and concrete. No emojis, no ` +
	`filler, no follow-up questions or offers. Stop once the requested ` +
	`material has been delivered.`

// summaryInstructions precede the assignment text in the user prompt.
const summaryInstructions = `Summarize this assignment in about 75 words. ` +
	`Then give an overview of the linked resources: introduce at least ` +
	`five concepts, formulas or ideas the assignment relies on, and for ` +
	`each link explain in at most 200 words how it relates to the main ` +
	`idea. Keep the whole answer under 450 words. If a rubric is present, ` +
	`use it to explain what the student needs to do. Use markdown ` +
	`headings as section dividers and skip anything plainly irrelevant.`

// buildUserPrompt renders the assignment and its links into the user
// prompt.
func buildUserPrompt(a extract.Assignment) string {
	var b strings.Builder

	b.WriteString(summaryInstructions)
	b.WriteString("\n\n")
	b.WriteString(a.Content)
	b.WriteString("\n\nExternal links:\n")

	for _, l := range a.Links {
		text := l.Text
		if text == "" {
			text = l.URL
		}
		fmt.Fprintf(&b, "- %s -> %s\n", text, l.URL)
	}

	return b.String()
}
