package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newsterm/newsterm/internal/api"
	"github.com/newsterm/newsterm/internal/ui"
)

var (
	prefsRemote bool
	prefsReset  bool
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or reset saved news preferences",
	Long: `Show the preference snapshot newsterm sends with every request.

Examples:
  newsterm prefs            # saved snapshot
  newsterm prefs --remote   # what the backend has for the current conversation
  newsterm prefs --reset    # forget everything; the next chat asks again`,
	RunE: runPrefs,
}

func init() {
	prefsCmd.Flags().BoolVar(&prefsRemote, "remote", false, "Fetch the backend's view for the current conversation")
	prefsCmd.Flags().BoolVar(&prefsReset, "reset", false, "Clear saved preferences")
	rootCmd.AddCommand(prefsCmd)
}

func runPrefs(cmd *cobra.Command, args []string) error {
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

	styles := ui.NewStyles(os.Stdout)

	if prefsReset {
		if err := st.SavePreferences(ctx, api.UserPreferences{}); err != nil {
			return fmt.Errorf("failed to reset preferences: %w", err)
		}
		fmt.Println("Preferences cleared. The next chat will ask again.")
		return nil
	}

	if prefsRemote {
		conversationID, err := st.Current(ctx)
		if err != nil {
			return fmt.Errorf("failed to read current conversation: %w", err)
		}
		if conversationID == "" {
			return fmt.Errorf("no active conversation; start one with 'newsterm chat'")
		}

		client := api.NewClient(cfg.Backend.URL)
		status, err := client.Preferences(ctx, conversationID)
		if err != nil {
			return fmt.Errorf("failed to fetch preferences: %w", err)
		}

		var prefs api.UserPreferences
		if status.Preferences != nil {
			prefs = *status.Preferences
		}
		printPreferenceRows(os.Stdout, styles, prefs)
		if status.IsComplete {
			fmt.Println(styles.Success.Render("all preferences set"))
		} else if len(status.Missing) > 0 {
			fmt.Printf("still missing: %s\n", strings.Join(status.Missing, ", "))
		}
		return nil
	}

	var prefs api.UserPreferences
	if saved, err := st.Preferences(ctx); err != nil {
		return fmt.Errorf("failed to read preferences: %w", err)
	} else if saved != nil {
		prefs = *saved
	}
	printPreferenceRows(os.Stdout, styles, prefs)
	if prefs.IsComplete() {
		fmt.Println(styles.Success.Render("all preferences set"))
	} else {
		fmt.Println(styles.Muted.Render("incomplete; 'newsterm chat' will ask for the rest"))
	}
	return nil
}

func printPreferenceRows(out io.Writer, styles *ui.Styles, prefs api.UserPreferences) {
	row := func(label string, value *string) {
		v := ""
		if value != nil {
			v = *value
		}
		fmt.Fprintf(out, "%-18s %s\n", label, styles.FormatSet(v))
	}
	row("Tone", prefs.Tone)
	row("Format", prefs.Format)
	row("Language", prefs.Language)
	row("Interaction style", prefs.InteractionStyle)
	fmt.Fprintf(out, "%-18s %s\n", "Topics", styles.FormatSet(strings.Join(prefs.Topics, ", ")))
}
