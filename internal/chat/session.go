// Package chat owns the conversation state for one session against the
// news backend: the message log, the in-flight streaming buffer, and the
// error surface the view renders. One streaming exchange runs at a time;
// a new send preempts the previous one.
package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/newsterm/newsterm/internal/api"
	"github.com/newsterm/newsterm/internal/netcheck"
)

// DefaultTimeout is the per-send request budget before link-quality
// scaling is applied.
const DefaultTimeout = 30 * time.Second

// ErrOffline is surfaced when the connectivity check fails before a send,
// without any chat request being issued.
var ErrOffline = errors.New("offline: cannot reach the news service")

// Streamer opens one streaming chat exchange. *api.Client satisfies it.
type Streamer interface {
	Stream(ctx context.Context, req api.ChatRequest) (api.Stream, error)
}

// Message is one conversation turn plus a session-local sequence number.
// The sequence, not the wire timestamp, is the identity key: two turns
// can land on the same instant, sequences never collide.
type Message struct {
	api.ChatMessage
	Seq uint64
}

// Options configure a Session.
type Options struct {
	ConversationID string
	History        []api.ChatMessage
	Preferences    api.UserPreferences
	BaseTimeout    time.Duration // zero means DefaultTimeout

	// OnStreaming receives the accumulated assistant text after every
	// chunk. OnPreferences receives server-pushed preference snapshots.
	// Both may be nil. Both are called from the goroutine running Send.
	OnStreaming   func(snapshot string)
	OnPreferences func(api.UserPreferences)
}

// Session drives one conversation. Every Send runs to a terminal state:
// the assistant turn is appended on success, the optimistic user turn is
// rolled back on genuine failure, and cancellation (preemption, timeout)
// settles silently with the log untouched. Snapshot accessors are safe
// to call from other goroutines while a send is in flight.
type Session struct {
	client  Streamer
	checker netcheck.Checker

	conversationID string
	baseTimeout    time.Duration
	onStreaming    func(string)
	onPreferences  func(api.UserPreferences)

	mu        sync.Mutex
	messages  []Message
	buffer    string
	streaming bool
	errText   string
	prefs     api.UserPreferences
	seq       uint64
	gen       uint64
	cancel    context.CancelFunc
	initDone  bool
}

// NewSession builds a session seeded with recovered history, if any.
func NewSession(client Streamer, checker netcheck.Checker, opts Options) *Session {
	s := &Session{
		client:         client,
		checker:        checker,
		conversationID: opts.ConversationID,
		baseTimeout:    opts.BaseTimeout,
		onStreaming:    opts.OnStreaming,
		onPreferences:  opts.OnPreferences,
		prefs:          opts.Preferences,
	}
	if s.baseTimeout <= 0 {
		s.baseTimeout = DefaultTimeout
	}
	for _, m := range opts.History {
		s.seq++
		s.messages = append(s.messages, Message{ChatMessage: m, Seq: s.seq})
	}
	return s
}

// Start issues the conversation-opening send when the session has no
// history, which makes the backend begin its preference questions. It
// fires at most once per session instance.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.initDone || len(s.messages) > 0 {
		s.mu.Unlock()
		return nil
	}
	s.initDone = true
	s.mu.Unlock()
	return s.Send(ctx, api.InitConversationMessage)
}

// Send posts content and consumes the assistant's streamed reply,
// returning once the exchange settles. The returned error mirrors Err();
// preempted and timed-out sends return nil.
//
// The request carries content verbatim; the log entry shows it through
// FormatPreferenceSelection so quick-reply selections read naturally in
// the transcript.
func (s *Session) Send(ctx context.Context, content string) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel() // one stream at a time: a new send preempts the old
		s.cancel = nil
	}
	s.gen++
	gen := s.gen
	s.errText = ""
	s.streaming = true
	s.buffer = ""
	var userSeq uint64
	if content != api.InitConversationMessage {
		s.seq++
		userSeq = s.seq
		s.messages = append(s.messages, Message{
			ChatMessage: api.UserMessage(FormatPreferenceSelection(content)),
			Seq:         userSeq,
		})
	}
	prefs := s.prefs
	req := api.ChatRequest{
		Message:        content,
		ConversationID: s.conversationID,
		Preferences:    &prefs,
	}
	s.mu.Unlock()

	status := s.checker.Check(ctx)
	if !status.Online {
		return s.fail(gen, userSeq, ErrOffline)
	}

	sendCtx, cancel := context.WithTimeout(ctx, status.Timeout(s.baseTimeout))
	defer cancel()

	s.mu.Lock()
	if s.gen != gen {
		// preempted while probing connectivity
		s.mu.Unlock()
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()

	stream, err := s.client.Stream(sendCtx, req)
	if err != nil {
		if isCanceled(err) {
			s.settle(gen)
			return nil
		}
		return s.fail(gen, userSeq, err)
	}
	defer stream.Close()

	for {
		event, err := stream.Recv()
		if err == io.EOF {
			// stream ended without a terminal event; nothing to append
			s.settle(gen)
			return nil
		}
		if err != nil {
			if isCanceled(err) {
				s.settle(gen)
				return nil
			}
			log.Debug().Err(err).Str("conversation", s.conversationID).Msg("stream read failed")
			return s.fail(gen, userSeq, err)
		}

		switch event.Type {
		case api.EventChunk:
			snapshot, live := s.grow(gen, event.Content)
			if !live {
				return nil
			}
			if s.onStreaming != nil {
				s.onStreaming(snapshot)
			}
		case api.EventCompleteMessage, api.EventComplete:
			s.finalize(gen, event)
			return nil
		case api.EventError:
			text := event.Error
			if text == "" {
				text = "the assistant reported an unknown error"
			}
			return s.fail(gen, userSeq, errors.New(text))
		}
	}
}

// Cancel aborts the in-flight exchange, if any. The aborted send settles
// silently: no error, no rollback.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ClearMessages wipes the log, streaming buffer, and error. It does not
// abort an in-flight send; callers should not clear mid-stream.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.buffer = ""
	s.errText = ""
}

// grow appends a chunk to the streaming buffer and returns the snapshot.
// A stale generation returns live=false: a newer send owns the state.
func (s *Session) grow(gen uint64, content string) (snapshot string, live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return "", false
	}
	s.buffer += content
	return s.buffer, true
}

// finalize appends the assistant turn for a terminal event and publishes
// any preference snapshot it carries. complete_message events bring their
// own message body; plain complete events use the accumulated buffer.
func (s *Session) finalize(gen uint64, event api.StreamEvent) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	msg := api.AssistantMessage(s.buffer)
	if event.Message != nil {
		msg = *event.Message
	}
	s.seq++
	s.messages = append(s.messages, Message{ChatMessage: msg, Seq: s.seq})
	s.buffer = ""
	s.streaming = false
	s.cancel = nil
	var pushed *api.UserPreferences
	if event.Preferences != nil {
		s.prefs = *event.Preferences
		snapshot := s.prefs
		pushed = &snapshot
	}
	cb := s.onPreferences
	s.mu.Unlock()

	if pushed != nil && cb != nil {
		cb(*pushed)
	}
}

// settle is the silent terminal path shared by cancellation and
// end-of-stream without a terminal event.
func (s *Session) settle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.buffer = ""
	s.streaming = false
	s.cancel = nil
}

// fail records err for the view, rolls back this call's optimistic user
// turn, and clears streaming state.
func (s *Session) fail(gen, userSeq uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	s.errText = err.Error()
	s.buffer = ""
	s.streaming = false
	s.cancel = nil
	if userSeq != 0 {
		if n := len(s.messages); n > 0 && s.messages[n-1].Seq == userSeq {
			s.messages = s.messages[:n-1]
		}
	}
	return err
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Messages returns a copy of the log in order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// History returns the log as wire messages, for persistence.
func (s *Session) History() []api.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.ChatMessage, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.ChatMessage
	}
	return out
}

// Last returns the newest message, if any.
func (s *Session) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// IsStreaming reports whether a send is between start and settle.
func (s *Session) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// StreamingMessage returns the accumulated text of the in-flight
// assistant turn, empty when no stream is active.
func (s *Session) StreamingMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// Err returns the user-facing error from the last send, empty when the
// last send succeeded or was cancelled.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errText
}

// Preferences returns the current preference snapshot.
func (s *Session) Preferences() api.UserPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// ConversationID returns the id this session was built for.
func (s *Session) ConversationID() string {
	return s.conversationID
}
