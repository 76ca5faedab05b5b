package cmd

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/newsterm/newsterm/internal/ui"
)

// snapshotMsg carries the accumulated assistant text after a chunk
type snapshotMsg string

// turnDoneMsg signals the exchange settled and the snapshot channel closed
type turnDoneMsg struct{}

// turnModel is the bubbletea model for one streaming assistant turn:
// a spinner while waiting for the first chunk, then live markdown as
// snapshots arrive. Its view goes blank once the turn settles; the caller
// prints the settled transcript line so it survives in scrollback.
type turnModel struct {
	spinner   spinner.Model
	styles    *ui.Styles
	snapshots <-chan string
	cancel    func()
	width     int
	network   string // effective type shown when the link is slow
	start     time.Time
	content   string
	done      bool
	quit      bool // user hit ctrl+c; the caller should leave the loop
}

func newTurnModel(snapshots <-chan string, cancel func(), width int, network string, styles *ui.Styles) turnModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return turnModel{
		spinner:   s,
		styles:    styles,
		snapshots: snapshots,
		cancel:    cancel,
		width:     width,
		network:   network,
		start:     time.Now(),
	}
}

func (m turnModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForSnapshot(m.snapshots))
}

// waitForSnapshot reads the next accumulated snapshot; a closed channel
// means the turn settled.
func waitForSnapshot(snapshots <-chan string) tea.Cmd {
	return func() tea.Msg {
		snapshot, ok := <-snapshots
		if !ok {
			return turnDoneMsg{}
		}
		return snapshotMsg(snapshot)
	}
}

func (m turnModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			if m.cancel != nil {
				m.cancel()
			}
			// The send settles and closes the channel; quit on the done
			// message so teardown stays in one place.
			return m, nil
		case "ctrl+c":
			m.quit = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case snapshotMsg:
		m.content = string(msg)
		return m, waitForSnapshot(m.snapshots)

	case turnDoneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m turnModel) View() string {
	if m.done {
		return ""
	}

	if m.content == "" {
		return ui.StreamingIndicator{
			Spinner:    m.spinner.View(),
			Phase:      "Thinking",
			Elapsed:    time.Since(m.start),
			Network:    m.network,
			ShowCancel: true,
		}.Render(m.styles)
	}

	return ui.RenderMarkdown(m.content, m.width)
}
