// Package logging configures zerolog for job-site-monitor. Every package
// takes a component logger from NewLogger after Setup has run.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// DefaultService is the value of the service field on every log line.
const DefaultService = "job-site-monitor"

// ErrInvalidLevel is returned by ParseLevel for unknown level names.
var ErrInvalidLevel = errors.New("invalid log level")

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// Service tags every line; empty omits the field.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Output:  os.Stderr,
		Service: DefaultService,
	}
}

// ParseLevel normalizes a level name. "warning" is accepted for warn.
func ParseLevel(s string) (LogLevel, error) {
	l := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if l == "warning" {
		l = LevelWarn
	}
	if _, ok := zerologLevels[l]; !ok {
		return "", fmt.Errorf("%w %q (want debug, info, warn or error)", ErrInvalidLevel, s)
	}
	return l, nil
}

// Setup configures the global zerolog logger and returns it. An unknown
// level falls back to info.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	log.Logger = logger

	return logger
}

func parseLevel(level LogLevel) zerolog.Level {
	l, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return zerologLevels[l]
}

// NewLogger returns a sub-logger of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Individual page probes and their source counts
//   - Cache hits and misses
//   - Pacer and throttle waits
//
// Info: Normal operation events
//   - Phase transitions and final estimates
//   - Regional analyses and report runs
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Skipped pages (failed or empty probes)
//   - Native count clamped to zero
//   - Retry attempts and active throttling
//   - Cache errors (fallback to direct computation)
//
// Error: Error conditions requiring attention
//   - Failed estimates (no total count)
//   - Failed report publishing
//   - Configuration errors
//
// Context Fields:
//   - component: estimator, search-client, retrier, sampling, report, store, server, cli
//   - period: ALL or TODAY
//   - page, page_size: probe coordinates
//   - source: NATIVE, PARTNER_A, PARTNER_B
//   - phase: estimator phase
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network, decode
//   - requests, duration: run totals
