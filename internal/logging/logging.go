// Package logging configures slog for the CLI and keeps document content out
// of log records.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Newf("unknown log level %q", s)
}

// New builds a text or JSON logger writing to w.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, errors.Newf("unknown log format %q", format)
}

// Unsafe renders a document-derived value with its content stripped, so the
// record shows that a value existed without revealing it.
func Unsafe(v any) slog.Value {
	return slog.StringValue(string(redact.Sprint(v).Redact()))
}

// Err renders an error keeping only the parts marked safe. Use it for errors
// that may embed document text, such as those returned by extensions.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", string(redact.Sprint(err).Redact()))
}
