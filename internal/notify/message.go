// Package notify carries one-way push messages from the popup to the page
// overlays attached to a browser tab.
package notify

// RenderSummaryType is the only message type overlays act on.
const RenderSummaryType = "RCA_RENDER_SUMMARY"

// TabID identifies a browser tab. Zero means no tab.
type TabID int64

// Message is the push payload sent to a tab.
type Message struct {
	Type    string `json:"type"`
	Summary string `json:"summary"`
}

// RenderSummary builds the message asking an overlay to display summary.
func RenderSummary(summary string) Message {
	return Message{
		Type:    RenderSummaryType,
		Summary: summary,
	}
}
