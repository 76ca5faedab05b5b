package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across all terminal output
var (
	Green = lipgloss.Color("10") // success, online
	Red   = lipgloss.Color("9")  // error, offline
	Grey  = lipgloss.Color("8")  // muted text
	Blue  = lipgloss.Color("4")  // assistant label, borders
	White = lipgloss.Color("15") // header text
)

// Status indicators
const (
	SetIcon     = "●"
	UnsetIcon   = "○"
	SuccessIcon = "✓"
	FailIcon    = "✗"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer

	// Text styles
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	// Transcript labels
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style

	// Table styles
	TableHeader lipgloss.Style
	TableCell   lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output *os.File) *Styles {
	r := lipgloss.NewRenderer(output)

	return &Styles{
		renderer: r,

		Title: r.NewStyle().
			Bold(true).
			Foreground(White),

		Subtitle: r.NewStyle().
			Foreground(Grey),

		Success: r.NewStyle().
			Foreground(Green),

		Error: r.NewStyle().
			Foreground(Red),

		Muted: r.NewStyle().
			Foreground(Grey),

		Bold: r.NewStyle().
			Bold(true),

		UserLabel: r.NewStyle().
			Bold(true).
			Foreground(Green),

		AssistantLabel: r.NewStyle().
			Bold(true).
			Foreground(Blue),

		TableHeader: r.NewStyle().
			Bold(true).
			Foreground(White).
			Padding(0, 1),

		TableCell: r.NewStyle().
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for stderr (default TUI output)
func DefaultStyles() *Styles {
	return NewStyles(os.Stderr)
}

// FormatSet returns a styled set/unset indicator for a preference value
func (s *Styles) FormatSet(value string) string {
	if value != "" {
		return s.Success.Render(SetIcon+" ") + value
	}
	return s.Muted.Render(UnsetIcon + " not set")
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}

// OfflineBadge returns the badge shown while the backend is unreachable
func (s *Styles) OfflineBadge() string {
	return s.Error.Render(SetIcon + " offline")
}

// Truncate shortens a string to maxLen with ellipsis
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
