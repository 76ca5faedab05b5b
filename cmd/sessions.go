package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/newsterm/newsterm/internal/store"
)

var sessionsClear string

var sessionsCmd = &cobra.Command{
	Use:   "sessions [query]",
	Short: "List stored conversations",
	Long: `List conversations kept in local history, newest activity first.

Messages expire after a week and each conversation keeps at most its
newest hundred messages, so this list prunes itself over time.

Examples:
  newsterm sessions                 # list everything
  newsterm sessions 3f2a            # fuzzy match on conversation ids
  newsterm sessions --clear <id>    # forget one conversation`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsClear, "clear", "", "Delete the conversation with this id")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if sessionsClear != "" {
		if err := st.Delete(ctx, sessionsClear); err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		fmt.Printf("Deleted conversation: %s\n", sessionsClear)
		return nil
	}

	conversations, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(args) == 1 {
		conversations = filterConversations(conversations, args[0])
	}

	if len(conversations) == 0 {
		fmt.Println("No stored conversations.")
		return nil
	}

	current, err := st.Current(ctx)
	if err != nil {
		current = ""
	}

	fmt.Printf("%-38s %-10s %-12s\n", "ID", "Messages", "Updated")
	fmt.Println(strings.Repeat("-", 70))
	for _, c := range conversations {
		marker := ""
		if c.ID == current {
			marker = "(current)"
		}
		fmt.Printf("%-38s %-10d %-12s %s\n", c.ID, c.MessageCount, formatRelativeTime(c.UpdatedAt), marker)
	}

	return nil
}

// filterConversations keeps the conversations whose id fuzzy-matches the
// query, best match first.
func filterConversations(conversations []store.Conversation, query string) []store.Conversation {
	ids := make([]string, len(conversations))
	for i, c := range conversations {
		ids[i] = c.ID
	}

	matches := fuzzy.Find(query, ids)
	filtered := make([]store.Conversation, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, conversations[m.Index])
	}
	return filtered
}

func formatRelativeTime(t time.Time) string {
	dur := time.Since(t)
	switch {
	case dur < time.Minute:
		return "just now"
	case dur < time.Hour:
		return fmt.Sprintf("%dm ago", int(dur.Minutes()))
	case dur < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(dur.Hours()))
	case dur < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(dur.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
