// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/foxzi/campaigner/internal/config"
)

// recipientKeys are attribute keys whose string values are email addresses
var recipientKeys = map[string]bool{
	"email":     true,
	"recipient": true,
	"to":        true,
}

// New creates a logger based on configuration, writing to stdout
func New(cfg config.LoggingConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a logger based on configuration
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	if cfg.RedactRecipients == nil || *cfg.RedactRecipients {
		opts.ReplaceAttr = redactAttr
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Discard returns l, or a logger that drops everything if l is nil
func Discard(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if !recipientKeys[a.Key] || a.Value.Kind() != slog.KindString {
		return a
	}
	return slog.String(a.Key, RedactEmail(a.Value.String()))
}

// RedactEmail masks the local part of an address: john.doe@example.com -> jo***@example.com
func RedactEmail(addr string) string {
	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
