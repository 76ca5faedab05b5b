package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/newsterm/newsterm/internal/api"
	"github.com/newsterm/newsterm/internal/chat"
	"github.com/newsterm/newsterm/internal/config"
	"github.com/newsterm/newsterm/internal/exitcode"
	"github.com/newsterm/newsterm/internal/netcheck"
	"github.com/newsterm/newsterm/internal/ui"
)

var (
	askNoStream bool
	askText     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask for the news once and stream the answer",
	Long: `Ask the news assistant a single question and print the reply.

The exchange runs in a throwaway conversation: saved preferences are
applied, nothing is written to history.

Examples:
  newsterm ask "what happened in tech today?"
  newsterm ask "give me a morning briefing" --no-stream
  newsterm ask "latest sports headlines" --text > sports.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "Use the non-streaming endpoint")
	askCmd.Flags().BoolVarP(&askText, "text", "t", false, "Output plain text instead of rendered markdown")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	ctx := context.Background()

	cfg, err := loadConfigWithSetup()
	if err != nil {
		return err
	}

	// Saved preferences ride along so the backend answers instead of
	// starting its preference questions.
	var prefs api.UserPreferences
	if st, err := openStore(cfg); err == nil {
		if saved, err := st.Preferences(ctx); err == nil && saved != nil {
			prefs = *saved
		}
		st.Close()
	}

	client := api.NewClient(cfg.Backend.URL)
	checker := newChecker(cfg)
	conversationID := uuid.NewString()

	if askNoStream {
		return askOnce(ctx, client, checker, cfg, conversationID, question, prefs)
	}
	return askStreamed(ctx, client, checker, cfg, conversationID, question, prefs)
}

// askOnce uses the non-streaming endpoint and prints the whole reply.
func askOnce(ctx context.Context, client *api.Client, checker netcheck.Checker, cfg *config.Config, conversationID, question string, prefs api.UserPreferences) error {
	status := checker.Check(ctx)
	if !status.Online {
		return exitcode.Offline(chat.ErrOffline.Error())
	}

	reqCtx, cancel := context.WithTimeout(ctx, status.Timeout(cfg.Backend.Timeout))
	defer cancel()

	resp, err := client.Send(reqCtx, api.ChatRequest{
		Message:        question,
		ConversationID: conversationID,
		Preferences:    &prefs,
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	printAnswer(resp.Message.Content)
	return nil
}

// askStreamed drives a one-send session and renders the reply as it
// arrives: live markdown on a TTY, incremental plain text otherwise.
func askStreamed(ctx context.Context, client *api.Client, checker netcheck.Checker, cfg *config.Config, conversationID, question string, prefs api.UserPreferences) error {
	snapshots := make(chan string, 8)
	session := chat.NewSession(client, checker, chat.Options{
		ConversationID: conversationID,
		Preferences:    prefs,
		BaseTimeout:    cfg.Backend.Timeout,
		OnStreaming: func(snapshot string) {
			// Snapshots are cumulative; dropping one is safe.
			select {
			case snapshots <- snapshot:
			default:
			}
		},
	})

	var sendErr error
	done := make(chan struct{})
	go func() {
		sendErr = session.Send(ctx, question)
		close(snapshots)
		close(done)
	}()

	useView := !askText && term.IsTerminal(int(os.Stdout.Fd()))
	var tty *os.File
	if useView {
		// Key input comes from the controlling terminal so a redirected
		// stdin cannot confuse the view. No terminal, no view.
		f, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			useView = false
		} else {
			tty = f
			defer tty.Close()
		}
	}

	printed := ""
	if useView {
		network := ""
		if status := checker.Check(ctx); status.Online && status.Slow() {
			network = status.EffectiveType
		}
		model := newTurnModel(snapshots, session.Cancel, terminalWidth(), network, ui.NewStyles(os.Stdout))
		p := tea.NewProgram(model, tea.WithInput(tty), tea.WithOutput(os.Stdout))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("failed to run stream view: %w", err)
		}
	} else {
		for snapshot := range snapshots {
			if strings.HasPrefix(snapshot, printed) {
				fmt.Print(snapshot[len(printed):])
				printed = snapshot
			}
		}
	}
	<-done

	if sendErr != nil {
		if errors.Is(sendErr, chat.ErrOffline) {
			return exitcode.Offline(sendErr.Error())
		}
		return fmt.Errorf("ask failed: %w", sendErr)
	}

	last, ok := session.Last()
	if !ok || last.Role != api.RoleAssistant {
		// Cancelled before a reply settled.
		if printed != "" {
			fmt.Println()
		}
		return exitcode.Cancel()
	}

	if useView {
		// The live view blanks itself on completion; print the settled
		// reply so it stays in scrollback.
		printAnswer(last.Content)
		return nil
	}

	if rest, found := strings.CutPrefix(last.Content, printed); found {
		fmt.Println(rest)
	} else {
		// The server replaced the streamed text with a different final
		// message; start a new line rather than splicing.
		fmt.Println()
		fmt.Println(last.Content)
	}
	return nil
}

func printAnswer(content string) {
	if askText || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(content)
		return
	}
	fmt.Println(ui.RenderMarkdown(content, terminalWidth()))
}
