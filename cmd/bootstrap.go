package cmd

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/newsterm/newsterm/internal/config"
	"github.com/newsterm/newsterm/internal/logging"
	"github.com/newsterm/newsterm/internal/netcheck"
	"github.com/newsterm/newsterm/internal/store"
	"github.com/newsterm/newsterm/internal/ui"
)

var logCloser io.Closer

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagOverrides(cfg)
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigWithSetup() (*config.Config, error) {
	if config.NeedsSetup() {
		cfg, err := ui.RunSetupWizard()
		if err != nil {
			return nil, fmt.Errorf("setup cancelled: %w", err)
		}
		applyFlagOverrides(cfg)
		if err := setupLogging(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	return loadConfig()
}

func applyFlagOverrides(cfg *config.Config) {
	if backendFlag != "" {
		cfg.Backend.URL = backendFlag
	}
	if noHistory {
		cfg.History.Enabled = false
	}
}

func setupLogging(cfg *config.Config) error {
	if logCloser != nil {
		return nil
	}
	closer, err := logging.Setup(cfg.Log.Level, cfg.Log.File, verbose)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logCloser = closer
	return nil
}

func closeLogging() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

// openStore returns the history store, or a no-op store when history is
// disabled by config or --no-history.
func openStore(cfg *config.Config) (store.Store, error) {
	if !cfg.History.Enabled {
		return &store.NoopStore{}, nil
	}
	st, err := store.Open(store.Config{
		Path:        cfg.History.Path,
		MaxMessages: cfg.History.MaxMessages,
		MaxAgeDays:  cfg.History.MaxAgeDays,
		IdleExpiry:  cfg.History.IdleExpiry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return st, nil
}

func newChecker(cfg *config.Config) netcheck.Checker {
	return netcheck.NewHTTPChecker(cfg.Backend.HealthURL())
}

// terminalWidth returns the stdout width for markdown wrapping, with a
// conservative fallback when stdout is not a terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
