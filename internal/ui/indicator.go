package ui

import (
	"fmt"
	"strings"
	"time"
)

// StreamingIndicator renders a consistent streaming status line
type StreamingIndicator struct {
	Spinner    string // spinner.View() output
	Phase      string // "Sending", "Streaming"
	Elapsed    time.Duration
	Network    string // effective connection type ("3g", "2g"), "" = don't show
	ShowCancel bool   // show "(esc to cancel)"
}

// Render returns the formatted streaming indicator string
func (s StreamingIndicator) Render(styles *Styles) string {
	var b strings.Builder

	b.WriteString(s.Spinner)
	b.WriteString(" ")
	b.WriteString(s.Phase)
	b.WriteString("...")

	b.WriteString(fmt.Sprintf(" %.1fs", s.Elapsed.Seconds()))

	if s.Network != "" {
		b.WriteString(" | ")
		b.WriteString(styles.Muted.Render("slow network (" + s.Network + ")"))
	}

	if s.ShowCancel {
		b.WriteString(" ")
		b.WriteString(styles.Muted.Render("(esc to cancel)"))
	}

	return b.String()
}
