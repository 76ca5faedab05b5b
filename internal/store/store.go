// Package store persists conversation logs, preferences, and the current
// conversation pointer between runs.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/newsterm/newsterm/internal/api"
)

// Config controls retention.
type Config struct {
	Path        string        // database file; empty uses DefaultPath
	MaxMessages int           // per-conversation cap applied on save
	MaxAgeDays  int           // messages older than this are swept at open
	IdleExpiry  time.Duration // current pointer expires after this much inactivity
}

// DefaultConfig returns the stock retention settings: the newest 100
// messages per conversation, a 7 day sweep, and a 24 hour idle window
// for the current conversation pointer.
func DefaultConfig() Config {
	return Config{
		MaxMessages: 100,
		MaxAgeDays:  7,
		IdleExpiry:  24 * time.Hour,
	}
}

// Conversation summarizes one stored conversation for listings.
type Conversation struct {
	ID           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Store persists chat state. Implementations must tolerate concurrent
// use from a single process.
type Store interface {
	// Messages returns the stored log for a conversation in order,
	// empty when the conversation is unknown.
	Messages(ctx context.Context, conversationID string) ([]api.ChatMessage, error)

	// SaveMessages replaces the stored log for a conversation,
	// keeping at most the configured number of newest entries.
	SaveMessages(ctx context.Context, conversationID string, msgs []api.ChatMessage) error

	// Preferences returns the saved preference snapshot, nil when unset.
	Preferences(ctx context.Context) (*api.UserPreferences, error)

	// SavePreferences stores the preference snapshot.
	SavePreferences(ctx context.Context, prefs api.UserPreferences) error

	// Current returns the active conversation id, empty when none.
	Current(ctx context.Context) (string, error)

	// SetCurrent marks a conversation as the active one.
	SetCurrent(ctx context.Context, conversationID string) error

	// ClearCurrent removes the active conversation marker.
	ClearCurrent(ctx context.Context) error

	// Delete removes a conversation and its messages.
	Delete(ctx context.Context, conversationID string) error

	// List returns stored conversations, newest activity first.
	List(ctx context.Context) ([]Conversation, error)

	Close() error
}

// DefaultPath returns the database location under the user data dir,
// honoring XDG_DATA_HOME.
func DefaultPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("find home directory: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "newsterm", "newsterm.db"), nil
}
