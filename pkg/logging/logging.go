// Package logging builds the structured loggers used across kgraph.
//
// Loggers are github.com/charmbracelet/log instances configured from
// config.LoggingConfig. Log calls take a message followed by key/value
// pairs:
//
//	logger := logging.New(cfg.Logging, os.Stderr)
//	logger.Info("merge complete", "entities_added", 3)
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/orneryd/kgraph/pkg/config"
)

// New returns a logger writing to w (stderr when nil). Unknown levels fall
// back to info and unknown formats to text; run config.Validate first to
// reject them instead.
func New(cfg config.LoggingConfig, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}

	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: cfg.Timestamp,
		Formatter:       formatter(cfg.Format),
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// Component returns a child logger tagged with the component name.
func Component(parent *log.Logger, name string) *log.Logger {
	return parent.With("component", name)
}

func formatter(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// ParseLevel validates a level name.
func ParseLevel(s string) (log.Level, error) {
	level, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
