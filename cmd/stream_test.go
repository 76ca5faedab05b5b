package cmd

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/newsterm/newsterm/internal/ui"
)

func TestTurnModelShowsIndicatorBeforeFirstChunk(t *testing.T) {
	model := newTurnModel(nil, nil, 80, "", ui.DefaultStyles())

	view := model.View()
	if !strings.Contains(view, "Thinking") {
		t.Fatalf("expected waiting indicator, got %q", view)
	}
	if !strings.Contains(view, "esc to cancel") {
		t.Fatalf("expected cancel hint, got %q", view)
	}
}

func TestTurnModelRendersSnapshots(t *testing.T) {
	model := newTurnModel(nil, nil, 80, "", ui.DefaultStyles())
	model.width = 80

	updated, _ := model.Update(snapshotMsg("**bold** news"))
	model = updated.(turnModel)

	view := model.View()
	if strings.Contains(view, "**") {
		t.Fatalf("expected markdown to be rendered, got raw view: %q", view)
	}
	if !strings.Contains(view, "bold") {
		t.Fatalf("expected rendered view to contain content, got: %q", view)
	}
}

func TestTurnModelBlanksViewWhenDone(t *testing.T) {
	model := newTurnModel(nil, nil, 80, "", ui.DefaultStyles())

	updated, _ := model.Update(snapshotMsg("partial text"))
	model = updated.(turnModel)

	updated, _ = model.Update(turnDoneMsg{})
	model = updated.(turnModel)

	if !model.done {
		t.Fatal("expected model to be done")
	}
	if view := model.View(); view != "" {
		t.Fatalf("expected blank view after done so the caller owns scrollback, got %q", view)
	}
}

func TestTurnModelEscCancels(t *testing.T) {
	cancelled := false
	model := newTurnModel(nil, func() { cancelled = true }, 80, "", ui.DefaultStyles())

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model = updated.(turnModel)

	if !cancelled {
		t.Fatal("expected esc to invoke cancel")
	}
	if model.quit {
		t.Fatal("esc should cancel the turn, not quit the chat")
	}
}

func TestTurnModelCtrlCMarksQuit(t *testing.T) {
	cancelled := false
	model := newTurnModel(nil, func() { cancelled = true }, 80, "", ui.DefaultStyles())

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	model = updated.(turnModel)

	if !cancelled || !model.quit {
		t.Fatalf("expected ctrl+c to cancel and request quit, got cancelled=%v quit=%v", cancelled, model.quit)
	}
}

func TestWaitForSnapshotSignalsDoneOnClosedChannel(t *testing.T) {
	snapshots := make(chan string, 1)
	snapshots <- "first"

	msg := waitForSnapshot(snapshots)()
	if got, ok := msg.(snapshotMsg); !ok || string(got) != "first" {
		t.Fatalf("expected snapshot message, got %#v", msg)
	}

	close(snapshots)
	msg = waitForSnapshot(snapshots)()
	if _, ok := msg.(turnDoneMsg); !ok {
		t.Fatalf("expected done message after close, got %#v", msg)
	}
}
