// Package query runs the read, filter, search and clear operations that
// LogWatch exposes against a source's log artifact.
//
// Every operation resolves the source first, then checks that the artifact
// exists, then hands the file to a Filter. Whatever happens after resolution
// is folded into a Result whose Text is ready to show to the caller; only
// validation problems (unknown source, bad arguments) come back as errors.
//
// Example usage:
//
//	d, err := query.NewDispatcher(registry, afero.NewOsFs(), filter, query.DefaultOptions())
//	res, err := d.Tail(ctx, "expo", nil)
//	fmt.Print(res.Text)
package query

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/bebsworthy/logwatch/internal/config"
	"github.com/bebsworthy/logwatch/internal/errors"
	"github.com/bebsworthy/logwatch/internal/logging"
	"github.com/bebsworthy/logwatch/internal/sources"
)

// Kind classifies the outcome of an operation
type Kind string

const (
	KindOK     Kind = "ok"
	KindEmpty  Kind = "empty"
	KindAbsent Kind = "absent"
	KindFailed Kind = "failed"
)

// Result is the normalized outcome of one operation.
type Result struct {
	Source sources.ID
	Kind   Kind
	Text   string
	Lines  []string
	Err    error
}

// IsError reports whether the result should be flagged as an error to clients.
func (r Result) IsError() bool {
	return r.Kind == KindFailed
}

// Options tunes the dispatcher
type Options struct {
	TailLines     int
	ErrorLines    int
	SearchLimit   int
	ErrorKeywords []string
	Logger        *slog.Logger
}

// DefaultOptions returns the built-in query options.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig().Query)
}

// OptionsFromConfig builds options from the query configuration section.
func OptionsFromConfig(cfg config.QueryConfig) Options {
	return Options{
		TailLines:     cfg.TailLines,
		ErrorLines:    cfg.ErrorLines,
		SearchLimit:   cfg.SearchLimit,
		ErrorKeywords: append([]string(nil), cfg.ErrorKeywords...),
	}
}

// Dispatcher executes queries against registered sources.
// It holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	registry *sources.Registry
	fs       afero.Fs
	filter   Filter
	opts     Options
	errorsRe Pattern
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. Zero-valued options fall back to the
// defaults.
func NewDispatcher(registry *sources.Registry, fs afero.Fs, filter Filter, opts Options) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if fs == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if filter == nil {
		return nil, fmt.Errorf("filter is required")
	}

	defaults := DefaultOptions()
	if opts.TailLines <= 0 {
		opts.TailLines = defaults.TailLines
	}
	if opts.ErrorLines <= 0 {
		opts.ErrorLines = defaults.ErrorLines
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaults.SearchLimit
	}
	if len(opts.ErrorKeywords) == 0 {
		opts.ErrorKeywords = defaults.ErrorKeywords
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard().Logger
	}

	return &Dispatcher{
		registry: registry,
		fs:       fs,
		filter:   filter,
		opts:     opts,
		errorsRe: KeywordPattern(opts.ErrorKeywords),
		logger:   logger.With(slog.String("component", "query")),
	}, nil
}

// FromConfig wires a dispatcher for the real filesystem using the configured
// backend.
func FromConfig(cfg *config.Config, registry *sources.Registry, logger *slog.Logger) (*Dispatcher, error) {
	fs := afero.NewOsFs()

	filter, err := NewFilter(cfg.Query.Backend, fs)
	if err != nil {
		return nil, err
	}

	opts := OptionsFromConfig(cfg.Query)
	opts.Logger = logger
	return NewDispatcher(registry, fs, filter, opts)
}

// Registry returns the source registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *sources.Registry {
	return d.registry
}

// Tail returns the last lines of a source's artifact. A nil lines selects
// the configured default.
func (d *Dispatcher) Tail(ctx context.Context, source string, lines *int) (Result, error) {
	desc, n, err := d.prepare(source, lines, d.opts.TailLines)
	if err != nil {
		return Result{}, err
	}

	if res, ok := d.checkArtifact(ctx, "tail", desc); !ok {
		return res, nil
	}

	out, err := d.filter.Tail(ctx, desc.File, n)
	if err != nil {
		return d.readFailure(ctx, "tail", desc, err), nil
	}

	return d.complete(ctx, "tail", desc, out, fmt.Sprintf("No logs for %s", desc.ID)), nil
}

// Errors returns the last lines that mention one of the error keywords.
func (d *Dispatcher) Errors(ctx context.Context, source string, lines *int) (Result, error) {
	desc, n, err := d.prepare(source, lines, d.opts.ErrorLines)
	if err != nil {
		return Result{}, err
	}

	if res, ok := d.checkArtifact(ctx, "errors", desc); !ok {
		return res, nil
	}

	out, err := d.filter.Match(ctx, desc.File, d.errorsRe, n)
	if err != nil {
		return d.readFailure(ctx, "errors", desc, err), nil
	}

	return d.complete(ctx, "errors", desc, out, fmt.Sprintf("No errors found in %s logs", desc.ID)), nil
}

// Search returns the most recent lines matching pattern, case-insensitively.
// Patterns that are not valid regular expressions are matched literally.
func (d *Dispatcher) Search(ctx context.Context, source, pattern string) (Result, error) {
	desc, err := d.resolve(source)
	if err != nil {
		return Result{}, err
	}
	if pattern == "" {
		return Result{}, errors.InvalidArgument("pattern cannot be empty")
	}

	if res, ok := d.checkArtifact(ctx, "search", desc); !ok {
		return res, nil
	}

	out, err := d.filter.Match(ctx, desc.File, NewPattern(pattern), d.opts.SearchLimit)
	if err != nil {
		return d.readFailure(ctx, "search", desc, err), nil
	}

	return d.complete(ctx, "search", desc, out, fmt.Sprintf(`No matches for "%s" in %s logs`, pattern, desc.ID)), nil
}

// Clear truncates a source's artifact to zero length in place. A missing
// artifact is reported, never created.
func (d *Dispatcher) Clear(ctx context.Context, source string) (Result, error) {
	desc, err := d.resolve(source)
	if err != nil {
		return Result{}, err
	}

	absent := Result{
		Source: desc.ID,
		Kind:   KindAbsent,
		Text:   fmt.Sprintf("No log file exists for %s", desc.ID),
	}

	if _, err := d.fs.Stat(desc.File); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return absent, nil
		}
		return d.clearFailure(ctx, desc, err), nil
	}

	// No O_CREATE: a file removed since the stat stays removed
	file, err := d.fs.OpenFile(desc.File, os.O_WRONLY, 0)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return absent, nil
		}
		return d.clearFailure(ctx, desc, err), nil
	}
	defer file.Close()

	if err := file.Truncate(0); err != nil {
		return d.clearFailure(ctx, desc, err), nil
	}

	d.logger.InfoContext(ctx, "Log file cleared",
		slog.String("source", desc.ID.String()),
		slog.String("file", desc.File),
	)

	return Result{
		Source: desc.ID,
		Kind:   KindOK,
		Text:   fmt.Sprintf("Logs cleared for %s", desc.ID),
	}, nil
}

func (d *Dispatcher) resolve(source string) (sources.Descriptor, error) {
	id, err := d.registry.Resolve(source)
	if err != nil {
		return sources.Descriptor{}, err
	}
	desc, _ := d.registry.Lookup(id)
	return desc, nil
}

func (d *Dispatcher) prepare(source string, lines *int, fallback int) (sources.Descriptor, int, error) {
	desc, err := d.resolve(source)
	if err != nil {
		return sources.Descriptor{}, 0, err
	}

	n := sources.ResolveLines(lines, fallback)
	if n < 1 {
		return sources.Descriptor{}, 0, errors.InvalidArgument("lines must be a positive integer, got %d", n)
	}
	return desc, n, nil
}

// checkArtifact returns false with the result to send when the artifact
// cannot be read at all.
func (d *Dispatcher) checkArtifact(ctx context.Context, op string, desc sources.Descriptor) (Result, bool) {
	_, err := d.fs.Stat(desc.File)
	if err == nil {
		return Result{}, true
	}
	if stderrors.Is(err, os.ErrNotExist) {
		return d.absent(ctx, op, desc), false
	}
	return d.readFailure(ctx, op, desc, err), false
}

func (d *Dispatcher) absent(ctx context.Context, op string, desc sources.Descriptor) Result {
	d.logger.DebugContext(ctx, "Log file not found",
		slog.String("operation", op),
		slog.String("source", desc.ID.String()),
		slog.String("file", desc.File),
	)

	return Result{
		Source: desc.ID,
		Kind:   KindAbsent,
		Text:   absentText(desc),
		Err:    errors.ArtifactAbsent(desc.File),
	}
}

func (d *Dispatcher) readFailure(ctx context.Context, op string, desc sources.Descriptor, err error) Result {
	lwErr := errors.ClassifyError(err)
	// The file can vanish between the existence check and the read
	if errors.IsCode(lwErr, errors.CodeArtifactAbsent) {
		return d.absent(ctx, op, desc)
	}

	lwErr = lwErr.WithOperation(op)
	d.logger.LogAttrs(ctx, slog.LevelWarn, "Query failed",
		append(lwErr.LogAttrs(),
			slog.String("operation", op),
			slog.String("source", desc.ID.String()),
		)...,
	)

	return Result{
		Source: desc.ID,
		Kind:   KindFailed,
		Text:   fmt.Sprintf("Error reading %s logs: %s", desc.ID, describe(err)),
		Err:    lwErr,
	}
}

func (d *Dispatcher) clearFailure(ctx context.Context, desc sources.Descriptor, err error) Result {
	lwErr := errors.ClassifyError(err).WithOperation("clear")
	d.logger.LogAttrs(ctx, slog.LevelWarn, "Clear failed",
		append(lwErr.LogAttrs(), slog.String("source", desc.ID.String()))...,
	)

	return Result{
		Source: desc.ID,
		Kind:   KindFailed,
		Text:   fmt.Sprintf("Error clearing %s logs: %s", desc.ID, describe(err)),
		Err:    lwErr,
	}
}

func (d *Dispatcher) complete(ctx context.Context, op string, desc sources.Descriptor, lines []string, emptyText string) Result {
	d.logger.DebugContext(ctx, "Query completed",
		slog.String("operation", op),
		slog.String("source", desc.ID.String()),
		slog.Int("lines", len(lines)),
	)

	if len(lines) == 0 {
		return Result{Source: desc.ID, Kind: KindEmpty, Text: emptyText}
	}

	return Result{
		Source: desc.ID,
		Kind:   KindOK,
		Text:   strings.Join(lines, "\n") + "\n",
		Lines:  lines,
	}
}

// absentText turns a missing artifact into setup guidance.
func absentText(desc sources.Descriptor) string {
	if desc.Description == "" {
		return fmt.Sprintf("No log file found for %s. Run: %s", desc.ID, desc.CaptureCommand)
	}
	return fmt.Sprintf("No log file found for %s (%s). Run: %s", desc.ID, desc.Description, desc.CaptureCommand)
}

// describe renders an error for a tool response: the message and cause,
// without the type and code prefix used in logs.
func describe(err error) string {
	var lwErr *errors.LogWatchError
	if stderrors.As(err, &lwErr) {
		if lwErr.Underlying != nil {
			return lwErr.Message + ": " + lwErr.Underlying.Error()
		}
		return lwErr.Message
	}
	return err.Error()
}
