// Package logger configures the process-wide slog logger and carries
// request-scoped attributes through context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type contextKey struct{}

// Setup installs the default logger writing to stdout.
func Setup(level, format string) {
	SetupTo(os.Stdout, level, format)
}

// SetupTo installs the default logger writing to w. The CLI logs to stderr so
// that query output on stdout stays machine-readable. At debug level each
// record carries its source file and line.
func SetupTo(w io.Writer, level, format string) {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   lvl <= slog.LevelDebug,
		ReplaceAttr: shortSource,
	}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// shortSource trims source paths to the package directory and file.
func shortSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	if src, ok := a.Value.Any().(*slog.Source); ok {
		src.File = filepath.Join(filepath.Base(filepath.Dir(src.File)), filepath.Base(src.File))
	}
	return a
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(contextKey{}).(string)
	return requestID
}

// FromContext returns the default logger with the request ID attached when
// ctx carries one.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if requestID := RequestID(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
