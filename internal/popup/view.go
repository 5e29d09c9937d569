package popup

import (
	"slices"
	"sync"

	"github.com/roasbeef/canvasrca/internal/cache"
)

// StatusLevel is the severity of the status line.
type StatusLevel string

const (
	// LevelInfo marks a neutral status.
	LevelInfo StatusLevel = "info"

	// LevelWarning marks a status that disables the toggle.
	LevelWarning StatusLevel = "warning"
)

// View is the popup's UI surface.
type View interface {
	SetStatus(msg string, level StatusLevel)
	SetToggle(enabled, checked bool)
	SetToggleChecked(checked bool)
	ShowLoading()
	HideLoading()
	ShowResults(summaryHTML string, links []cache.Link)
	ShowRegenerate()
	ShowError(msg string)
	HideOutput()
}

// State is a snapshot of everything the popup displays.
type State struct {
	Status            string       `json:"status"`
	StatusLevel       StatusLevel  `json:"status_level"`
	ToggleEnabled     bool         `json:"toggle_enabled"`
	ToggleChecked     bool         `json:"toggle_checked"`
	Loading           bool         `json:"loading"`
	OutputVisible     bool         `json:"output_visible"`
	Summary           string       `json:"summary,omitempty"`
	Links             []cache.Link `json:"links,omitempty"`
	RegenerateVisible bool         `json:"regenerate_visible"`
	Error             string       `json:"error,omitempty"`
}

// StateView is a View that records state in memory. It is what the HTTP
// API hands back to the browser.
type StateView struct {
	mu    sync.Mutex
	state State
}

var _ View = (*StateView)(nil)

// NewStateView returns an empty view.
func NewStateView() *StateView {
	return &StateView{}
}

// Snapshot returns a copy of the current state.
func (v *StateView) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.state
	s.Links = slices.Clone(s.Links)

	return s
}

// SetStatus implements View.
func (v *StateView) SetStatus(msg string, level StatusLevel) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.Status = msg
	v.state.StatusLevel = level
}

// SetToggle implements View.
func (v *StateView) SetToggle(enabled, checked bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.ToggleEnabled = enabled
	v.state.ToggleChecked = checked
}

// SetToggleChecked implements View.
func (v *StateView) SetToggleChecked(checked bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.ToggleChecked = checked
}

// ShowLoading implements View.
func (v *StateView) ShowLoading() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.OutputVisible = true
	v.state.Loading = true
	v.state.Summary = ""
	v.state.Links = nil
	v.state.Error = ""
}

// HideLoading implements View.
func (v *StateView) HideLoading() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.Loading = false
}

// ShowResults implements View.
func (v *StateView) ShowResults(summaryHTML string, links []cache.Link) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.OutputVisible = true
	v.state.Summary = summaryHTML
	v.state.Links = slices.Clone(links)
	v.state.Error = ""
}

// ShowRegenerate implements View.
func (v *StateView) ShowRegenerate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.RegenerateVisible = true
}

// ShowError implements View.
func (v *StateView) ShowError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.OutputVisible = true
	v.state.Error = msg
	v.state.Summary = ""
	v.state.Links = nil
}

// HideOutput implements View.
func (v *StateView) HideOutput() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.OutputVisible = false
	v.state.Summary = ""
	v.state.Links = nil
	v.state.Error = ""
}
