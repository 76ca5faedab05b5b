package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// sseHandler writes each line followed by a flush, imitating the backend's
// chunked event stream.
func sseHandler(t *testing.T, lines []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer is not a flusher")
		}
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}
}

func collectEvents(t *testing.T, stream Stream) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		events = append(events, event)
	}
}

func TestStreamDecodesChunksInOrder(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"type": "chunk", "content": "Hel"}`,
		`data: {"type": "chunk", "content": "lo"}`,
		`data: {"type": "complete", "preferences": null}`,
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	stream, err := client.Stream(context.Background(), ChatRequest{Message: "hi", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	events := collectEvents(t, stream)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Content != "Hel" || events[1].Content != "lo" {
		t.Errorf("chunks = %q, %q", events[0].Content, events[1].Content)
	}
	if events[2].Type != EventComplete {
		t.Errorf("last event = %s, want complete", events[2].Type)
	}
}

func TestStreamIgnoresNonDataAndMalformedRecords(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`: keep-alive comment`,
		`event: message`,
		`data: {"type": "chunk", "content": "a"`, // cut record, invalid JSON
		`data: {"type": "chunk", "content": "ok"}`,
		`data: {"type": "complete"}`,
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	stream, err := client.Stream(context.Background(), ChatRequest{Message: "hi", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	events := collectEvents(t, stream)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (malformed record must be skipped)", len(events))
	}
	if events[0].Content != "ok" {
		t.Errorf("first surviving chunk = %q", events[0].Content)
	}
}

func TestStreamDeliversCompleteMessageMetadata(t *testing.T) {
	payload := `data: {"type": "complete_message", "message": {` +
		`"role": "assistant", "content": "Which topics?", ` +
		`"timestamp": "2025-03-14T09:26:53.589793", ` +
		`"quick_reply_options": [{"label": "Technology", "value": "technology"}], ` +
		`"is_preference_question": true, "preference_type": "topics", "selection_type": "multiple"}, ` +
		`"preferences": {"tone": "casual", "format": null, "language": null, "interaction_style": null, "topics": null}}`

	srv := httptest.NewServer(sseHandler(t, []string{payload}))
	defer srv.Close()

	client := NewClient(srv.URL)
	stream, err := client.Stream(context.Background(), ChatRequest{Message: InitConversationMessage, ConversationID: "c1"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	events := collectEvents(t, stream)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Message == nil || ev.Message.PreferenceType != "topics" {
		t.Fatalf("message = %+v", ev.Message)
	}
	if ev.Message.SelectionType != SelectionMultiple {
		t.Errorf("selection type = %q", ev.Message.SelectionType)
	}
	if ev.Preferences == nil || ev.Preferences.Tone == nil || *ev.Preferences.Tone != "casual" {
		t.Errorf("preferences = %+v", ev.Preferences)
	}
}

func TestStreamNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent exploded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	stream, err := client.Stream(context.Background(), ChatRequest{Message: "hi", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	_, err = stream.Recv()
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("recv err = %v, want StatusError", err)
	}
	if statusErr.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", statusErr.Code)
	}
	if statusErr.Body != "agent exploded" {
		t.Errorf("body = %q", statusErr.Body)
	}
}

func TestStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\": \"chunk\", \"content\": \"partial\"}\n\n")
		flusher.Flush()
		<-release // hold the stream open until the test finishes
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(srv.URL)
	stream, err := client.Stream(ctx, ChatRequest{Message: "hi", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	event, err := stream.Recv()
	if err != nil {
		t.Fatalf("first recv: %v", err)
	}
	if event.Content != "partial" {
		t.Errorf("chunk = %q", event.Content)
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("stream did not observe cancellation")
		default:
		}
		_, err = stream.Recv()
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		t.Fatalf("recv err = %v, want context.Canceled", err)
	}
}

func TestSendDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != chatPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ConversationID != "c42" {
			t.Errorf("conversation id = %q", req.ConversationID)
		}
		fmt.Fprint(w, `{
			"message": {"role": "assistant", "content": "Here is the news.", "timestamp": "2025-03-14T10:00:00"},
			"preferences": {"tone": "formal", "format": null, "language": null, "interaction_style": null, "topics": null},
			"conversation_id": "c42",
			"requires_tool": true
		}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.Send(context.Background(), ChatRequest{Message: "news?", ConversationID: "c42"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Message.Content != "Here is the news." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if !resp.RequiresTool {
		t.Error("expected requires_tool")
	}
	if resp.Preferences == nil || resp.Preferences.Tone == nil || *resp.Preferences.Tone != "formal" {
		t.Errorf("preferences = %+v", resp.Preferences)
	}
}

func TestPreferencesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/api/chat/conversations/c7/preferences"
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		fmt.Fprint(w, `{"preferences": null, "is_complete": false, "missing": ["tone of voice (formal, casual, or enthusiastic)"]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	status, err := client.Preferences(context.Background(), "c7")
	if err != nil {
		t.Fatalf("preferences: %v", err)
	}
	if status.IsComplete {
		t.Error("expected incomplete preferences")
	}
	if len(status.Missing) != 1 {
		t.Errorf("missing = %v", status.Missing)
	}
}
