// Package logger builds the structured process logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"exchange-rate-mcp/internal/config"
)

// New returns a logger writing to stderr.
func New(cfg config.LogConfig) *log.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter returns a logger writing to w. Unknown levels fall back to info
// and unknown formats to text.
func NewWithWriter(cfg config.LogConfig, w io.Writer) *log.Logger {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter(cfg.Format),
		ReportTimestamp: true,
		Prefix:          "exchange-rate-mcp",
	})
}

// ForComponent derives a sub-logger tagged with component.
func ForComponent(l *log.Logger, component string) *log.Logger {
	return l.With("component", component)
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
