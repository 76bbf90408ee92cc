// Package logging configures the global zerolog logger used by every
// component of the client.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string

	// Pretty switches from JSON lines to human-readable console output.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns info level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Output: os.Stderr,
	}
}

// ParseLevel converts a level name into a zerolog level. "warning" is
// accepted for warn; an empty name means info.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}

	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// Setup installs the global logger and returns it. An unknown level falls
// back to info and is reported through the new logger.
func Setup(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	level, levelErr := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	if levelErr != nil {
		logger.Warn().Err(levelErr).Msg("Falling back to info level")
	}
	return logger
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Levels in use:
//
// Debug: page and chunk progress, cache hit counts, request execution.
// Info: token refreshes, refresher start/stop, collection summaries.
// Warn: API-level errors in 2xx responses, retry attempts, cache and rate
// limit tracking failures, low rate limit budget.
// Error: requests failed after retries, token refresh failures.
//
// Common fields: component, endpoint, status, error_class, attempt,
// operation, filter, count.
