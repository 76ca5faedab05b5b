// Package logging configures the global zerolog logger. The client draws
// on the terminal, so records go to a file under the user data dir;
// verbose mode mirrors them to stderr as well.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup wires log.Logger according to the configured level. An empty
// file selects the default location. The returned closer owns the log
// file handle.
func Setup(level, file string, verbose bool) (io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if verbose && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if file == "" {
		file, err = defaultPath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	var sink io.Writer = f
	if verbose {
		sink = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = zerolog.New(sink).With().Timestamp().Logger()
	return f, nil
}

// defaultPath returns the log location under the user data dir,
// honoring XDG_DATA_HOME.
func defaultPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("find home directory: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "newsterm", "newsterm.log"), nil
}
