package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/newsterm/newsterm/internal/config"
	"github.com/newsterm/newsterm/internal/netcheck"
)

// RunSetupWizard runs the first-time setup wizard and returns the config
func RunSetupWizard() (*config.Config, error) {
	fmt.Fprint(os.Stderr, "Welcome to newsterm! Let's get you set up.\n\n")

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	backendURL := cfg.Backend.URL
	historyOn := cfg.History.Enabled

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Where is the news assistant backend?").
				Description("Base URL of the API, e.g. http://localhost:8000").
				Value(&backendURL).
				Validate(validateBackendURL),
			huh.NewConfirm().
				Title("Keep conversation history on this machine?").
				Description("Messages are stored locally and expire after a week").
				Value(&historyOn),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}

	cfg.Backend.URL = strings.TrimSpace(backendURL)
	cfg.History.Enabled = historyOn

	styles := DefaultStyles()

	// Probe the backend so a typo surfaces now instead of on the first send.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status := netcheck.NewHTTPChecker(cfg.Backend.HealthURL()).Check(ctx)
	if status.Online {
		fmt.Fprintf(os.Stderr, "%s\n", styles.FormatResult(true, "backend reachable"))
	} else {
		fmt.Fprintf(os.Stderr, "%s\n", styles.FormatResult(false, "backend not reachable yet, saving anyway"))
	}

	if err := config.Save(cfg); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	if path, err := config.Path(); err == nil {
		fmt.Fprintf(os.Stderr, "Config saved to %s\n\n", path)
	}

	// Reload so defaults and the config file agree on what comes back.
	return config.Load()
}

func validateBackendURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("backend URL is required")
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("backend URL must start with http:// or https://")
	}
	return nil
}
