package ui

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"a longer string", 10, "a longe..."},
		{"abcdef", 3, "abc"},
		{"abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		if got := Truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestFormatResult(t *testing.T) {
	styles := DefaultStyles()

	ok := styles.FormatResult(true, "backend reachable")
	if !strings.Contains(ok, SuccessIcon) || !strings.Contains(ok, "backend reachable") {
		t.Errorf("success result missing icon or message: %q", ok)
	}

	fail := styles.FormatResult(false, "no route")
	if !strings.Contains(fail, FailIcon) || !strings.Contains(fail, "no route") {
		t.Errorf("fail result missing icon or message: %q", fail)
	}
}

func TestFormatSet(t *testing.T) {
	styles := DefaultStyles()

	set := styles.FormatSet("casual")
	if !strings.Contains(set, SetIcon) || !strings.Contains(set, "casual") {
		t.Errorf("set indicator missing icon or value: %q", set)
	}

	unset := styles.FormatSet("")
	if !strings.Contains(unset, UnsetIcon) || !strings.Contains(unset, "not set") {
		t.Errorf("unset indicator missing icon or placeholder: %q", unset)
	}
}

func TestOfflineBadge(t *testing.T) {
	badge := DefaultStyles().OfflineBadge()
	if !strings.Contains(badge, "offline") {
		t.Errorf("badge missing label: %q", badge)
	}
}
