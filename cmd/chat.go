package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/newsterm/newsterm/internal/api"
	"github.com/newsterm/newsterm/internal/chat"
	"github.com/newsterm/newsterm/internal/config"
	"github.com/newsterm/newsterm/internal/netcheck"
	"github.com/newsterm/newsterm/internal/store"
	"github.com/newsterm/newsterm/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive news conversation",
	Long: `Start an interactive conversation with the news assistant.

The previous conversation is resumed when it was active within the last
day; otherwise a fresh one starts and the assistant asks for your news
preferences. Preference questions come with quick replies you can pick
from a menu instead of typing.

Examples:
  newsterm chat
  newsterm chat --backend http://news.example.com
  newsterm chat --no-history    # leave nothing on disk

Keyboard shortcuts while streaming:
  Esc      - Cancel the current reply
  Ctrl+C   - Cancel and quit

Slash commands:
  /new     - Start a new conversation (preferences kept)
  /clear   - Clear this conversation's transcript
  /prefs   - Show collected preferences
  /help    - Show help
  /quit    - Exit chat`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfigWithSetup()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	conversationID, err := st.Current(ctx)
	if err != nil {
		return fmt.Errorf("failed to read current conversation: %w", err)
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
		if err := st.SetCurrent(ctx, conversationID); err != nil {
			return fmt.Errorf("failed to mark current conversation: %w", err)
		}
	}

	history, err := st.Messages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	var prefs api.UserPreferences
	if saved, err := st.Preferences(ctx); err == nil && saved != nil {
		prefs = *saved
	}

	input := newLineEditor(cfg.History.Enabled)
	defer input.Close()

	loop := &chatLoop{
		client:      api.NewClient(cfg.Backend.URL),
		checker:     newChecker(cfg),
		store:       st,
		input:       input,
		styles:      ui.NewStyles(os.Stdout),
		out:         os.Stdout,
		width:       terminalWidth(),
		baseTimeout: cfg.Backend.Timeout,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
	loop.session = chat.NewSession(loop.client, loop.checker, chat.Options{
		ConversationID: conversationID,
		History:        history,
		Preferences:    prefs,
		BaseTimeout:    cfg.Backend.Timeout,
		OnStreaming:    loop.forwardSnapshot,
		OnPreferences:  rememberPreferences,
	})

	return loop.run(ctx)
}

func rememberPreferences(p api.UserPreferences) {
	log.Debug().Bool("complete", p.IsComplete()).Msg("preferences updated by server")
}

// lineEditor wraps liner so the prompt gets history navigation and a
// Ctrl+C that aborts the prompt instead of leaving a stuck read. Input
// history persists across runs unless local history is disabled.
type lineEditor struct {
	line        *liner.State
	historyFile string
}

func newLineEditor(persist bool) *lineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	e := &lineEditor{line: line}
	if persist {
		if path, err := config.Path(); err == nil {
			e.historyFile = filepath.Join(filepath.Dir(path), "input_history")
			if f, err := os.Open(e.historyFile); err == nil {
				line.ReadHistory(f)
				f.Close()
			}
		}
	}
	return e
}

// ReadInput reads one line, recording non-empty input in the history.
func (e *lineEditor) ReadInput(prompt string) (string, error) {
	input, err := e.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// Close persists the input history and restores the terminal.
func (e *lineEditor) Close() {
	if e.historyFile != "" {
		if f, err := os.OpenFile(e.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			e.line.WriteHistory(f)
			f.Close()
		}
	}
	e.line.Close()
}

// chatLoop drives the line-oriented conversation: read a line (or a quick
// reply pick), run the exchange through the streaming view, print the
// settled turn, persist, repeat.
type chatLoop struct {
	client      *api.Client
	checker     netcheck.Checker
	store       store.Store
	session     *chat.Session
	input       *lineEditor
	styles      *ui.Styles
	out         io.Writer
	width       int
	baseTimeout time.Duration
	interactive bool

	mu        sync.Mutex
	snapshots chan string
}

// forwardSnapshot relays accumulated assistant text into the live view.
// Snapshots are cumulative, so dropping one when the view lags is safe.
func (l *chatLoop) forwardSnapshot(snapshot string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.snapshots == nil {
		return
	}
	select {
	case l.snapshots <- snapshot:
	default:
	}
}

func (l *chatLoop) run(ctx context.Context) error {
	l.replay()

	if quit := l.takeTurn(ctx, l.session.Start); quit {
		return nil
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		if reply, ok := l.pickQuickReply(); ok {
			l.echoUser(chat.FormatPreferenceSelection(reply))
			if quit := l.sendTurn(ctx, reply); quit {
				return nil
			}
			continue
		}

		if status := l.checker.Check(ctx); !status.Online {
			fmt.Fprintln(l.out, l.styles.OfflineBadge())
		}

		text, err := l.input.ReadInput(l.styles.UserLabel.Render("you ❯ "))
		if err != nil {
			// Ctrl+C and Ctrl+D at the prompt both leave the chat.
			fmt.Fprintln(l.out)
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "/") {
			if quit := l.slash(ctx, text); quit {
				return nil
			}
			continue
		}
		if quit := l.sendTurn(ctx, text); quit {
			return nil
		}
	}
}

func (l *chatLoop) sendTurn(ctx context.Context, content string) (quit bool) {
	return l.takeTurn(ctx, func(ctx context.Context) error {
		return l.session.Send(ctx, content)
	})
}

// takeTurn runs one exchange to a terminal state: the live view while the
// send is in flight, then the settled transcript line, then persistence.
func (l *chatLoop) takeTurn(ctx context.Context, send func(context.Context) error) (quit bool) {
	before := len(l.session.Messages())

	snapshots := make(chan string, 8)
	l.mu.Lock()
	l.snapshots = snapshots
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer func() {
			l.mu.Lock()
			l.snapshots = nil
			l.mu.Unlock()
			close(snapshots)
			close(done)
		}()
		if err := send(ctx); err != nil {
			log.Debug().Err(err).Msg("send settled with error")
		}
	}()

	quit = l.watchTurn(done, snapshots)
	<-done

	l.printOutcome(before)
	l.persist()
	return quit
}

// watchTurn renders the in-flight exchange. Without a TTY it just waits.
func (l *chatLoop) watchTurn(done <-chan struct{}, snapshots <-chan string) (quit bool) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		<-done
		return false
	}
	defer tty.Close()

	network := ""
	if status := l.checker.Check(context.Background()); status.Online && status.Slow() {
		network = status.EffectiveType
	}

	model := newTurnModel(snapshots, l.session.Cancel, l.width, network, l.styles)
	p := tea.NewProgram(model, tea.WithInput(tty), tea.WithOutput(os.Stdout))
	final, err := p.Run()
	if err != nil {
		log.Warn().Err(err).Msg("stream view failed")
		return false
	}
	if m, ok := final.(turnModel); ok {
		return m.quit
	}
	return false
}

// printOutcome prints whatever the turn settled to: the error line on
// failure, the assistant turn on success, nothing when the send was
// cancelled or preempted.
func (l *chatLoop) printOutcome(before int) {
	if errText := l.session.Err(); errText != "" {
		fmt.Fprintln(l.out, l.styles.FormatResult(false, errText))
		return
	}
	msgs := l.session.Messages()
	if before > len(msgs) {
		before = len(msgs)
	}
	for _, m := range msgs[before:] {
		if m.Role == api.RoleAssistant {
			l.printAssistant(m.ChatMessage)
		}
	}
}

// replay prints the recovered transcript so the user sees where the
// conversation left off.
func (l *chatLoop) replay() {
	msgs := l.session.Messages()
	if len(msgs) == 0 {
		return
	}
	fmt.Fprintln(l.out, l.styles.Subtitle.Render("resuming conversation "+shortID(l.session.ConversationID())))
	for _, m := range msgs {
		switch m.Role {
		case api.RoleUser:
			l.echoUser(m.Content)
		case api.RoleAssistant:
			l.printAssistant(m.ChatMessage)
		}
	}
}

func (l *chatLoop) echoUser(content string) {
	fmt.Fprintln(l.out, l.styles.UserLabel.Render("you ❯")+" "+content)
}

func (l *chatLoop) printAssistant(msg api.ChatMessage) {
	fmt.Fprintln(l.out, l.styles.AssistantLabel.Render("news ❯"))
	fmt.Fprintln(l.out, ui.RenderMarkdown(msg.Content, l.width))
}

// pickQuickReply offers the newest assistant question's quick replies.
func (l *chatLoop) pickQuickReply() (string, bool) {
	if !l.interactive {
		return "", false
	}
	last, ok := l.session.Last()
	if !ok || last.Role != api.RoleAssistant || len(last.QuickReplyOptions) == 0 {
		return "", false
	}
	reply, picked, err := ui.PickQuickReply(last.ChatMessage)
	if err != nil {
		log.Warn().Err(err).Msg("quick reply picker failed")
		return "", false
	}
	return reply, picked
}

func (l *chatLoop) slash(ctx context.Context, text string) (quit bool) {
	switch strings.Fields(text)[0] {
	case "/quit", "/exit":
		return true
	case "/clear":
		l.session.ClearMessages()
		l.persist()
		fmt.Fprintln(l.out, l.styles.Muted.Render("conversation cleared"))
	case "/new":
		quitNow, err := l.startFresh(ctx)
		if err != nil {
			fmt.Fprintln(l.out, l.styles.FormatResult(false, err.Error()))
		} else if quitNow {
			return true
		}
	case "/prefs":
		printPreferenceRows(l.out, l.styles, l.session.Preferences())
	case "/help":
		l.printHelp()
	default:
		fmt.Fprintf(l.out, "unknown command %q (try /help)\n", text)
	}
	return false
}

// startFresh abandons the current conversation pointer and opens a new
// conversation, keeping collected preferences.
func (l *chatLoop) startFresh(ctx context.Context) (quit bool, err error) {
	id := uuid.NewString()
	if err := l.store.SetCurrent(ctx, id); err != nil {
		return false, fmt.Errorf("failed to switch conversation: %w", err)
	}
	l.session = chat.NewSession(l.client, l.checker, chat.Options{
		ConversationID: id,
		Preferences:    l.session.Preferences(),
		BaseTimeout:    l.baseTimeout,
		OnStreaming:    l.forwardSnapshot,
		OnPreferences:  rememberPreferences,
	})
	fmt.Fprintln(l.out, l.styles.Subtitle.Render("new conversation "+shortID(id)))
	return l.takeTurn(ctx, l.session.Start), nil
}

func (l *chatLoop) printHelp() {
	fmt.Fprint(l.out, `Commands:
  /new     start a new conversation (preferences kept)
  /clear   clear this conversation's transcript
  /prefs   show collected preferences
  /quit    leave the chat

Keys:
  esc      cancel the current reply (while streaming)
  ctrl+c   cancel and quit
  up/down  browse input history at the prompt
`)
}

// persist saves the transcript and the latest preference snapshot. It
// uses its own context so an interrupt cannot drop the final write, and
// a storage failure must not kill the conversation, so it only logs.
func (l *chatLoop) persist() {
	ctx := context.Background()
	if err := l.store.SaveMessages(ctx, l.session.ConversationID(), l.session.History()); err != nil {
		log.Warn().Err(err).Msg("failed to persist conversation")
	}
	if err := l.store.SavePreferences(ctx, l.session.Preferences()); err != nil {
		log.Warn().Err(err).Msg("failed to persist preferences")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
