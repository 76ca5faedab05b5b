package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newsterm/newsterm/internal/api"
	"github.com/newsterm/newsterm/internal/chat"
	"github.com/newsterm/newsterm/internal/netcheck"
	"github.com/newsterm/newsterm/internal/store"
	"github.com/newsterm/newsterm/internal/ui"
)

type onlineChecker struct{}

func (onlineChecker) Check(ctx context.Context) netcheck.Status {
	return netcheck.Status{Online: true, EffectiveType: netcheck.Effective4G}
}

// sseChatServer replies to every stream request with the given events.
func sseChatServer(t *testing.T, events ...api.StreamEvent) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/stream" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		f, _ := w.(http.Flusher)
		for _, ev := range events {
			data, err := json.Marshal(ev)
			if err != nil {
				t.Errorf("marshal event: %v", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			if f != nil {
				f.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLoop(t *testing.T, backendURL string, history []api.ChatMessage) (*chatLoop, *bytes.Buffer) {
	t.Helper()

	st, err := store.Open(store.Config{
		Path:        filepath.Join(t.TempDir(), "chat.db"),
		MaxMessages: 100,
		MaxAgeDays:  7,
		IdleExpiry:  24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	out := &bytes.Buffer{}
	loop := &chatLoop{
		client:      api.NewClient(backendURL),
		checker:     onlineChecker{},
		store:       st,
		styles:      ui.DefaultStyles(),
		out:         out,
		width:       80,
		baseTimeout: 5 * time.Second,
	}
	loop.session = chat.NewSession(loop.client, loop.checker, chat.Options{
		ConversationID: "conv-test",
		History:        history,
		BaseTimeout:    5 * time.Second,
		OnStreaming:    loop.forwardSnapshot,
	})
	return loop, out
}

func TestPrintOutcomeShowsAssistantTurn(t *testing.T) {
	srv := sseChatServer(t,
		api.StreamEvent{Type: api.EventChunk, Content: "top "},
		api.StreamEvent{Type: api.EventChunk, Content: "story"},
		api.StreamEvent{Type: api.EventComplete},
	)
	loop, out := newTestLoop(t, srv.URL, nil)

	before := len(loop.session.Messages())
	if err := loop.session.Send(context.Background(), "any news?"); err != nil {
		t.Fatalf("send: %v", err)
	}
	loop.printOutcome(before)

	got := out.String()
	if !strings.Contains(got, "news ❯") {
		t.Errorf("missing assistant label in %q", got)
	}
	if !strings.Contains(got, "top story") {
		t.Errorf("missing assistant content in %q", got)
	}
	if strings.Contains(got, "you ❯") {
		t.Errorf("user turn must not be re-echoed by the outcome: %q", got)
	}
}

func TestPrintOutcomeShowsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	loop, out := newTestLoop(t, srv.URL, nil)

	before := len(loop.session.Messages())
	if err := loop.session.Send(context.Background(), "any news?"); err == nil {
		t.Fatal("expected send to fail")
	}
	loop.printOutcome(before)

	got := out.String()
	if !strings.Contains(got, "502") {
		t.Errorf("expected status code in error line, got %q", got)
	}
	if msgs := loop.session.Messages(); len(msgs) != 0 {
		t.Errorf("expected rolled-back log, got %d messages", len(msgs))
	}
}

func TestReplayPrintsRecoveredTranscript(t *testing.T) {
	history := []api.ChatMessage{
		api.UserMessage("what happened overnight?"),
		api.AssistantMessage("A **big** launch."),
	}
	loop, out := newTestLoop(t, "http://unused.invalid", history)

	loop.replay()

	got := out.String()
	if !strings.Contains(got, "resuming conversation conv-tes") {
		t.Errorf("missing resume banner in %q", got)
	}
	if !strings.Contains(got, "you ❯ what happened overnight?") {
		t.Errorf("missing user turn in %q", got)
	}
	if !strings.Contains(got, "big launch") && !strings.Contains(got, "big") {
		t.Errorf("missing assistant turn in %q", got)
	}
}

func TestSlashCommands(t *testing.T) {
	history := []api.ChatMessage{api.UserMessage("hello")}
	loop, out := newTestLoop(t, "http://unused.invalid", history)
	ctx := context.Background()

	if quit := loop.slash(ctx, "/quit"); !quit {
		t.Error("expected /quit to quit")
	}
	if quit := loop.slash(ctx, "/help"); quit {
		t.Error("expected /help to keep running")
	}
	if !strings.Contains(out.String(), "/clear") {
		t.Errorf("expected help text, got %q", out.String())
	}

	if quit := loop.slash(ctx, "/clear"); quit {
		t.Error("expected /clear to keep running")
	}
	if msgs := loop.session.Messages(); len(msgs) != 0 {
		t.Errorf("expected cleared transcript, got %d messages", len(msgs))
	}
	stored, err := loop.store.Messages(ctx, "conv-test")
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("expected cleared transcript to be persisted, got %d messages", len(stored))
	}
}

func TestPersistWritesTranscriptAndPreferences(t *testing.T) {
	srv := sseChatServer(t,
		api.StreamEvent{Type: api.EventChunk, Content: "done"},
		api.StreamEvent{Type: api.EventComplete, Preferences: &api.UserPreferences{
			Tone:             strPtr("casual"),
			Format:           strPtr("bullet points"),
			Language:         strPtr("English"),
			InteractionStyle: strPtr("concise"),
			Topics:           []string{"technology"},
		}},
	)
	loop, _ := newTestLoop(t, srv.URL, nil)
	ctx := context.Background()

	if err := loop.session.Send(ctx, "brief me"); err != nil {
		t.Fatalf("send: %v", err)
	}
	loop.persist()

	stored, err := loop.store.Messages(ctx, "conv-test")
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(stored))
	}

	prefs, err := loop.store.Preferences(ctx)
	if err != nil {
		t.Fatalf("read preferences: %v", err)
	}
	if prefs == nil || !prefs.IsComplete() {
		t.Fatalf("expected complete persisted preferences, got %#v", prefs)
	}
}

func TestForwardSnapshotIsSafeWithoutView(t *testing.T) {
	loop, _ := newTestLoop(t, "http://unused.invalid", nil)

	// No channel installed: must not panic.
	loop.forwardSnapshot("partial")

	snapshots := make(chan string, 1)
	loop.mu.Lock()
	loop.snapshots = snapshots
	loop.mu.Unlock()

	loop.forwardSnapshot("first")
	loop.forwardSnapshot("second") // buffer full: dropped, not blocked

	if got := <-snapshots; got != "first" {
		t.Fatalf("expected first snapshot, got %q", got)
	}
	select {
	case extra := <-snapshots:
		t.Fatalf("expected the second snapshot to be dropped, got %q", extra)
	default:
	}
}

func strPtr(s string) *string { return &s }
