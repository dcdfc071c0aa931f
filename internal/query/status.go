package query

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bebsworthy/logwatch/internal/sources"
)

// TimeLayout is how last-modified times are shown in source listings
const TimeLayout = "2006-01-02 15:04:05"

// SourceStatus reports whether a source's artifact currently exists
type SourceStatus struct {
	ID          sources.ID
	File        string
	Description string
	Exists      bool
	ModTime     time.Time // zero when unknown
}

// Statuses stats every registered artifact concurrently and returns the
// results in registration order. A failed stat on one source never affects
// the others; it only leaves ModTime unset. Stats run even when ctx is
// already done.
func (d *Dispatcher) Statuses(ctx context.Context) []SourceStatus {
	descs := d.registry.Descriptors()
	statuses := make([]SourceStatus, len(descs))

	var g errgroup.Group
	for i, desc := range descs {
		statuses[i] = SourceStatus{
			ID:          desc.ID,
			File:        desc.File,
			Description: desc.Description,
		}

		g.Go(func() error {
			info, err := d.fs.Stat(desc.File)
			switch {
			case err == nil:
				statuses[i].Exists = true
				statuses[i].ModTime = info.ModTime()
			case stderrors.Is(err, os.ErrNotExist):
			default:
				statuses[i].Exists = true
				d.logger.WarnContext(ctx, "Failed to stat log file",
					slog.String("source", desc.ID.String()),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}

// ListSources renders the status of every source as markdown.
func (d *Dispatcher) ListSources(ctx context.Context) string {
	return RenderStatuses(d.Statuses(ctx))
}

// RenderStatuses formats source statuses the way list_sources reports them.
func RenderStatuses(statuses []SourceStatus) string {
	var b strings.Builder
	b.WriteString("## Available Log Sources\n\n")

	for _, s := range statuses {
		status := "No log file"
		if s.Exists {
			status = "Active"
			if !s.ModTime.IsZero() {
				status += fmt.Sprintf(" (last modified: %s)", s.ModTime.Local().Format(TimeLayout))
			}
		}

		fmt.Fprintf(&b, "### %s\n", s.ID)
		fmt.Fprintf(&b, "- **Status:** %s\n", status)
		fmt.Fprintf(&b, "- **File:** %s\n", s.File)
		fmt.Fprintf(&b, "- **Description:** %s\n\n", s.Description)
	}

	return b.String()
}
