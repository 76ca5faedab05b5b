package api

import (
	"fmt"
	"strings"
	"time"
)

// Reserved message values understood by the backend.
const (
	// InitConversationMessage triggers the preference-collection flow on a
	// fresh conversation. It is never shown to the user and never appended
	// to the local message log.
	InitConversationMessage = "__INIT_CONVERSATION__"

	// PreferenceSelectionPrefix marks a quick-reply answer. The full form is
	// "PREFERENCE_SELECTION:<preference_type>:<value>".
	PreferenceSelectionPrefix = "PREFERENCE_SELECTION:"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Selection types for preference questions.
const (
	SelectionSingle   = "single"
	SelectionMultiple = "multiple"
)

// QuickReplyOption is one predefined answer attached to a preference question.
type QuickReplyOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ChatMessage is one turn in a conversation, as exchanged with the backend.
type ChatMessage struct {
	Role                 Role               `json:"role"`
	Content              string             `json:"content"`
	Timestamp            Timestamp          `json:"timestamp"`
	QuickReplyOptions    []QuickReplyOption `json:"quick_reply_options,omitempty"`
	IsPreferenceQuestion bool               `json:"is_preference_question,omitempty"`
	PreferenceType       string             `json:"preference_type,omitempty"`
	SelectionType        string             `json:"selection_type,omitempty"`
}

// UserMessage builds a user-role message stamped now.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content, Timestamp: Now()}
}

// AssistantMessage builds a plain assistant-role message stamped now.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content, Timestamp: Now()}
}

// UserPreferences mirrors the backend's preference object. Fields are nil
// until the corresponding question has been answered. The zero value means
// "nothing collected yet".
type UserPreferences struct {
	Tone             *string  `json:"tone"`
	Format           *string  `json:"format"`
	Language         *string  `json:"language"`
	InteractionStyle *string  `json:"interaction_style"`
	Topics           []string `json:"topics"`
}

// IsComplete reports whether every preference has been collected.
func (p UserPreferences) IsComplete() bool {
	return p.Tone != nil &&
		p.Format != nil &&
		p.Language != nil &&
		p.InteractionStyle != nil &&
		len(p.Topics) > 0
}

// ChatRequest is the POST body for both chat endpoints.
type ChatRequest struct {
	Message        string           `json:"message"`
	ConversationID string           `json:"conversation_id"`
	Preferences    *UserPreferences `json:"preferences,omitempty"`
}

// ChatResponse is the single-shot (non-streaming) chat reply.
type ChatResponse struct {
	Message        ChatMessage      `json:"message"`
	Preferences    *UserPreferences `json:"preferences"`
	ConversationID string           `json:"conversation_id"`
	RequiresTool   bool             `json:"requires_tool"`
}

// PreferencesStatus is the reply of the per-conversation preferences probe.
type PreferencesStatus struct {
	Preferences *UserPreferences `json:"preferences"`
	IsComplete  bool             `json:"is_complete"`
	Missing     []string         `json:"missing"`
}

// Stream event type discriminators.
const (
	EventChunk           = "chunk"
	EventCompleteMessage = "complete_message"
	EventComplete        = "complete"
	EventError           = "error"
)

// StreamEvent is the JSON payload of one "data: " record on the stream.
// Which fields are set depends on Type.
type StreamEvent struct {
	Type           string           `json:"type"`
	Content        string           `json:"content,omitempty"`
	Message        *ChatMessage     `json:"message,omitempty"`
	Preferences    *UserPreferences `json:"preferences,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Terminal reports whether this event ends the assistant turn.
func (e StreamEvent) Terminal() bool {
	switch e.Type {
	case EventComplete, EventCompleteMessage, EventError:
		return true
	}
	return false
}

// Timestamp wraps time.Time to survive the backend's timestamp encoding.
// The backend emits naive ISO-8601 instants (no zone offset), which
// encoding/json's time.Time refuses to parse.
type Timestamp struct {
	time.Time
}

// Now returns the current instant as a wire timestamp.
func Now() Timestamp {
	return Timestamp{time.Now().UTC()}
}

// Timestamp layouts accepted from the wire, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}
