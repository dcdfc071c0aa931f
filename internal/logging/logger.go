// Package logging provides structured logging functionality for LogWatch.
//
// This package implements a centralized logging system with:
// - Structured logging using Go's slog package
// - Configurable log levels and output formats
// - Per-request correlation of tool calls
// - Integration with LogWatch configuration system
//
// Logs never go to stdout: with the stdio transport stdout carries the MCP
// protocol stream.
//
// Example usage:
//
//	logger, err := logging.NewLogger(cfg.Logging)
//	logger.Info("Server started", "transport", "stdio")
//
//	ctx = logging.WithRequestID(ctx, logging.NewRequestID())
//	logger.InfoContext(ctx, "Tool called", "tool", "get_logs")
package logging

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bebsworthy/logwatch/internal/config"
	"github.com/bebsworthy/logwatch/internal/errors"
)

// RequestIDKey is the context key for request IDs
type RequestIDKey struct{}

// Logger wraps slog.Logger with LogWatch-specific functionality
type Logger struct {
	*slog.Logger
	config config.LoggingConfig
	writer io.Writer
}

// NewLogger creates a new structured logger with the given configuration
func NewLogger(cfg config.LoggingConfig) (*Logger, error) {
	writer, err := createLogWriter(cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create log writer: %w", err)
	}

	logger, err := NewLoggerWithWriter(cfg, writer)
	if err != nil {
		if closer, ok := writer.(io.Closer); ok && writer != os.Stderr {
			closer.Close()
		}
		return nil, err
	}
	return logger, nil
}

// NewLoggerWithWriter creates a logger that writes to w instead of the
// configured output file.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) (*Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Verbose,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	handler = &RequestHandler{Handler: handler}

	return &Logger{
		Logger: slog.New(handler),
		config: cfg,
		writer: w,
	}, nil
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

// createLogWriter creates the appropriate writer for log output
func createLogWriter(outputFile string) (io.Writer, error) {
	if outputFile == "" {
		return os.Stderr, nil
	}

	dir := filepath.Dir(outputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}

	file, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %q: %w", outputFile, err)
	}

	return file, nil
}

// RequestHandler wraps another handler to add the request ID from context
type RequestHandler struct {
	slog.Handler
}

// Handle adds the request ID if present in context
func (h *RequestHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetRequestID(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a new handler with the given attributes
func (h *RequestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RequestHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup returns a new handler with the given group
func (h *RequestHandler) WithGroup(name string) slog.Handler {
	return &RequestHandler{Handler: h.Handler.WithGroup(name)}
}

// NewRequestID returns a fresh identifier for one tool call
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, id)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// NewServerLogger creates a logger for the MCP server
func NewServerLogger(cfg config.LoggingConfig) (*Logger, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	logger.Logger = logger.Logger.With(
		slog.String("component", "server"),
		slog.String("service", "logwatch"),
	)

	return logger, nil
}

// NewCaptureLogger creates a logger for the capture runner of one source
func NewCaptureLogger(cfg config.LoggingConfig, source string) (*Logger, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	logger.Logger = logger.Logger.With(
		slog.String("component", "capture"),
		slog.String("service", "logwatch"),
		slog.String("source", source),
	)

	return logger, nil
}

// LogTiming logs the duration of an operation
func (l *Logger) LogTiming(ctx context.Context, operation string, start time.Time, attrs ...slog.Attr) {
	allAttrs := []slog.Attr{
		slog.String("operation", operation),
		slog.Duration("duration", time.Since(start)),
	}
	allAttrs = append(allAttrs, attrs...)

	l.LogAttrs(ctx, slog.LevelDebug, "Operation completed", allAttrs...)
}

// LogError logs err at Error level. LogWatch errors contribute their type,
// code and details; other errors their Go type.
func (l *Logger) LogError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	allAttrs := []slog.Attr{slog.String("error", err.Error())}

	var lwErr *errors.LogWatchError
	if stderrors.As(err, &lwErr) {
		allAttrs = append(allAttrs, lwErr.LogAttrs()...)
	} else {
		allAttrs = append(allAttrs, slog.String("error_type", fmt.Sprintf("%T", err)))
	}
	allAttrs = append(allAttrs, attrs...)

	l.LogAttrs(ctx, slog.LevelError, msg, allAttrs...)
}

// Close closes any file resources used by the logger
func (l *Logger) Close() error {
	if l.writer == os.Stderr {
		return nil
	}
	if closer, ok := l.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SetDefault makes logger the process-wide slog default, so packages that
// log through slog directly, including mcp-go, share its handler.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *Logger {
	logger, _ := NewLoggerWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, io.Discard)
	return logger
}
