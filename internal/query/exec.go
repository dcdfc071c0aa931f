package query

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/bebsworthy/logwatch/internal/buffer"
	"github.com/bebsworthy/logwatch/internal/errors"
)

// grepNoMatch is the grep exit status for "nothing selected"
const grepNoMatch = 1

// ExecFilter delegates to the system tail and grep binaries. Arguments are
// passed directly to the process, never through a shell, so patterns and
// paths are not subject to shell interpretation. Patterns grep -E would read
// differently from the in-process matcher are matched in-process instead, so
// both backends return the same lines.
type ExecFilter struct {
	tailPath string
	grepPath string
	fallback *ScanFilter
}

// NewExecFilter creates a filter that runs tail and grep from PATH, falling
// back to reading fs for non-portable patterns.
func NewExecFilter(fs afero.Fs) *ExecFilter {
	return &ExecFilter{tailPath: "tail", grepPath: "grep", fallback: NewScanFilter(fs)}
}

// Tail runs tail -n n on the file.
func (f *ExecFilter) Tail(ctx context.Context, path string, n int) ([]string, error) {
	return f.run(ctx, f.tailPath, []string{"-n", strconv.Itoa(n), "--", path}, n, false)
}

// Match runs grep -i over the whole file and keeps the last limit matches.
func (f *ExecFilter) Match(ctx context.Context, path string, p Pattern, limit int) ([]string, error) {
	if !p.Portable() {
		return f.fallback.Match(ctx, path, p, limit)
	}

	mode := "-E"
	if p.Literal {
		mode = "-F"
	}
	return f.run(ctx, f.grepPath, []string{"-i", mode, "-e", p.Expr, "--", path}, limit, true)
}

func (f *ExecFilter) run(ctx context.Context, name string, args []string, limit int, isGrep bool) ([]string, error) {
	ring, err := buffer.NewLineRing(limit)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.ExecutionFailure(fmt.Sprintf("failed to create %s pipe", name), err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.ExecutionFailure(fmt.Sprintf("failed to start %s", name), err)
	}

	readErr := readLines(ctx, stdout, ring.Add)
	if readErr != nil {
		// Unblock the child if we stopped reading early
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.WrapError(ctxErr, fmt.Sprintf("%s interrupted", name))
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if isGrep && stderrors.As(waitErr, &exitErr) && exitErr.ExitCode() == grepNoMatch {
			return nil, nil
		}

		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("%s failed", name)
		}
		return nil, errors.ExecutionFailure(msg, waitErr)
	}

	if readErr != nil {
		return nil, errors.ExecutionFailure(fmt.Sprintf("failed to read %s output", name), readErr)
	}

	return ring.Lines(), nil
}
