package store

import (
	"context"

	"github.com/newsterm/newsterm/internal/api"
)

// NoopStore is a no-op implementation of Store used when history is
// disabled. It silently discards writes and returns empty results.
type NoopStore struct{}

func (s *NoopStore) Messages(ctx context.Context, conversationID string) ([]api.ChatMessage, error) {
	return nil, nil
}

func (s *NoopStore) SaveMessages(ctx context.Context, conversationID string, msgs []api.ChatMessage) error {
	return nil
}

func (s *NoopStore) Preferences(ctx context.Context) (*api.UserPreferences, error) {
	return nil, nil
}

func (s *NoopStore) SavePreferences(ctx context.Context, prefs api.UserPreferences) error {
	return nil
}

func (s *NoopStore) Current(ctx context.Context) (string, error) {
	return "", nil
}

func (s *NoopStore) SetCurrent(ctx context.Context, conversationID string) error {
	return nil
}

func (s *NoopStore) ClearCurrent(ctx context.Context) error {
	return nil
}

func (s *NoopStore) Delete(ctx context.Context, conversationID string) error {
	return nil
}

func (s *NoopStore) List(ctx context.Context) ([]Conversation, error) {
	return nil, nil
}

func (s *NoopStore) Close() error {
	return nil
}
