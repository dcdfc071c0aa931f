package query

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"regexp/syntax"
	"strings"

	"github.com/spf13/afero"

	"github.com/bebsworthy/logwatch/internal/config"
	"github.com/bebsworthy/logwatch/internal/errors"
)

// Filter selects lines from a log artifact. Implementations must honour
// context cancellation and must never create or modify the artifact.
type Filter interface {
	// Tail returns the last n lines of the file at path.
	Tail(ctx context.Context, path string, n int) ([]string, error)

	// Match returns the last limit lines matching p, case-insensitively.
	// A file with no matching lines yields an empty slice and no error.
	Match(ctx context.Context, path string, p Pattern, limit int) ([]string, error)
}

// Pattern is a line filter expression. Literal patterns match their text
// exactly; the others are regular expressions in the common subset of RE2
// and POSIX extended syntax.
type Pattern struct {
	Expr    string
	Literal bool
}

// NewPattern builds a pattern from user input. Input that does not compile
// as a regular expression is matched literally instead of failing.
func NewPattern(expr string) Pattern {
	if _, err := regexp.Compile(expr); err != nil {
		return Pattern{Expr: expr, Literal: true}
	}
	return Pattern{Expr: expr}
}

// KeywordPattern matches any of the keywords: (error|warn|failed|exception).
func KeywordPattern(keywords []string) Pattern {
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return Pattern{Expr: "(" + strings.Join(quoted, "|") + ")"}
}

// Regexp compiles the pattern for in-process matching.
func (p Pattern) Regexp() (*regexp.Regexp, error) {
	expr := p.Expr
	if p.Literal {
		expr = regexp.QuoteMeta(expr)
	}
	return regexp.Compile("(?i)" + expr)
}

// Portable reports whether grep -E reads the pattern the way Regexp does.
// Literal patterns always are; expressions must parse as POSIX extended
// syntax, without Perl classes such as \d or flag groups such as (?i).
func (p Pattern) Portable() bool {
	if p.Literal {
		return true
	}
	_, err := syntax.Parse(p.Expr, syntax.POSIX)
	return err == nil
}

// String returns the expression as the caller wrote it.
func (p Pattern) String() string {
	return p.Expr
}

// NewFilter returns the filter for the configured backend. The exec backend
// needs tail and grep on PATH and reads fs only for patterns grep cannot
// match the same way.
func NewFilter(backend string, fs afero.Fs) (Filter, error) {
	switch backend {
	case config.BackendNative, "":
		return NewScanFilter(fs), nil
	case config.BackendExec:
		for _, tool := range []string{"tail", "grep"} {
			if _, err := exec.LookPath(tool); err != nil {
				return nil, errors.ConfigError(errors.CodeInvalidConfig,
					fmt.Sprintf("exec backend requires %s on PATH", tool), err)
			}
		}
		return NewExecFilter(fs), nil
	default:
		return nil, errors.ConfigError(errors.CodeInvalidConfig,
			fmt.Sprintf("unknown query backend %q", backend), nil)
	}
}

// checkEvery is how many lines are read between context checks
const checkEvery = 4096

// readLines calls fn for each line of r without its trailing newline. Lines
// of any length are supported.
func readLines(ctx context.Context, r io.Reader, fn func(string)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for n := 1; ; n++ {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line, err := br.ReadString('\n')
		if len(line) > 0 {
			fn(strings.TrimSuffix(line, "\n"))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
