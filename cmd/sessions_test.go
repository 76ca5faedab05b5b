package cmd

import (
	"testing"
	"time"

	"github.com/newsterm/newsterm/internal/store"
)

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		t    time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-48 * time.Hour), "2d ago"},
	}

	for _, tt := range tests {
		if got := formatRelativeTime(tt.t); got != tt.want {
			t.Errorf("formatRelativeTime(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}

	old := now.AddDate(0, -2, 0)
	if got := formatRelativeTime(old); got != old.Format("Jan 2") {
		t.Errorf("formatRelativeTime(%v) = %q, want calendar date", old, got)
	}
}

func TestFilterConversations(t *testing.T) {
	conversations := []store.Conversation{
		{ID: "3f2a build-briefing"},
		{ID: "9c81 sports-roundup"},
		{ID: "77aa tech-digest"},
	}

	filtered := filterConversations(conversations, "sports")
	if len(filtered) != 1 || filtered[0].ID != "9c81 sports-roundup" {
		t.Fatalf("expected the sports conversation, got %#v", filtered)
	}

	if got := filterConversations(conversations, "zzzz"); len(got) != 0 {
		t.Fatalf("expected no matches, got %#v", got)
	}
}
