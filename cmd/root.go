package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/newsterm/newsterm/internal/exitcode"
)

var rootCmd = &cobra.Command{
	Use:   "newsterm",
	Short: "Chat with the Latest News Agent from your terminal",
	Long: `newsterm talks to the Latest News Agent API: answer a few preference
questions once, then ask for the latest headlines in plain language.

Examples:
  newsterm chat                        # interactive conversation
  newsterm ask "tech news today"       # one-shot streamed answer
  newsterm prefs                       # show saved preferences
  newsterm sessions                    # list stored conversations
  newsterm sessions --clear <id>       # forget one conversation`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

var (
	backendFlag string
	verbose     bool
	noHistory   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "Do not read or write local history")
}

func Execute() {
	err := rootCmd.Execute()
	closeLogging()
	if err != nil {
		if exitErr, ok := err.(exitcode.ExitError); ok {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
