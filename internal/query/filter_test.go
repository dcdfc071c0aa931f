package query

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bebsworthy/logwatch/internal/config"
	"github.com/bebsworthy/logwatch/internal/errors"
)

func TestNewPattern(t *testing.T) {
	tests := []struct {
		expr    string
		literal bool
	}{
		{"boom", false},
		{"time(out|d out)", false},
		{"[boom", true},
		{"(unclosed", true},
		{"a++", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p := NewPattern(tt.expr)
			assert.Equal(t, tt.literal, p.Literal)
			assert.Equal(t, tt.expr, p.String())

			_, err := p.Regexp()
			assert.NoError(t, err)
		})
	}
}

func TestPattern_CaseInsensitive(t *testing.T) {
	re, err := NewPattern("Boom").Regexp()
	require.NoError(t, err)
	assert.True(t, re.MatchString("BOOM happened"))
	assert.True(t, re.MatchString("kaboom"))

	re, err = NewPattern("[x").Regexp()
	require.NoError(t, err)
	assert.True(t, re.MatchString("found [X here"))
	assert.False(t, re.MatchString("x"))
}

func TestPattern_Portable(t *testing.T) {
	tests := []struct {
		expr     string
		portable bool
	}{
		{"boom", true},
		{"^error: b.om$", true},
		{"time(out|d out)", true},
		{"[[:digit:]]+", true},
		{"[boom", true}, // literal
		{`\d+`, false},
		{"(?i)boom", false},
		{`\bword\b`, false},
		{"a+?", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.portable, NewPattern(tt.expr).Portable())
		})
	}
}

func TestKeywordPattern(t *testing.T) {
	p := KeywordPattern([]string{"error", "warn", "failed", "exception"})
	assert.Equal(t, "(error|warn|failed|exception)", p.Expr)
	assert.False(t, p.Literal)

	re, err := p.Regexp()
	require.NoError(t, err)
	for _, line := range []string{"ERROR: x", "Warning", "build failed", "NullPointerException"} {
		assert.True(t, re.MatchString(line), line)
	}
	assert.False(t, re.MatchString("info: all good"))

	p = KeywordPattern([]string{"a.b"})
	assert.Equal(t, `(a\.b)`, p.Expr)
}

func TestNewFilter(t *testing.T) {
	fs := afero.NewMemMapFs()

	f, err := NewFilter(config.BackendNative, fs)
	require.NoError(t, err)
	assert.IsType(t, &ScanFilter{}, f)

	f, err = NewFilter("", fs)
	require.NoError(t, err)
	assert.IsType(t, &ScanFilter{}, f)

	_, err = NewFilter("awk", fs)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidConfig))
}

func TestReadLines(t *testing.T) {
	long := strings.Repeat("x", 200*1024)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"blank lines", "\n\na\n", []string{"", "", "a"}},
		{"carriage returns kept", "a\r\nb\r\n", []string{"a\r", "b\r"}},
		{"long line", long + "\nshort\n", []string{long, "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := readLines(context.Background(), strings.NewReader(tt.input), func(line string) {
				got = append(got, line)
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanFilter_MissingFile(t *testing.T) {
	f := NewScanFilter(afero.NewMemMapFs())

	_, err := f.Tail(context.Background(), "/nope.log", 10)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeFile, errors.ClassifyError(err).Type)
}

func TestScanFilter_InvalidLimit(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.log", []byte("a\n"), 0644))
	f := NewScanFilter(fs)

	_, err := f.Tail(context.Background(), "/a.log", 0)
	assert.Error(t, err)

	_, err = f.Match(context.Background(), "/a.log", NewPattern("a"), 0)
	assert.Error(t, err)
}

func TestScanFilter_TailFromEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := NewScanFilter(fs)
	ctx := context.Background()

	// Lines long enough that the tail spans several backward reads
	long := strings.Repeat("x", tailBlock/3)
	var sb strings.Builder
	for i := 1; i <= 10; i++ {
		sb.WriteString(fmt.Sprintf("%d %s\n", i, long))
	}
	require.NoError(t, afero.WriteFile(fs, "/big.log", []byte(sb.String()), 0644))

	lines, err := f.Tail(ctx, "/big.log", 4)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	for i, line := range lines {
		assert.True(t, strings.HasPrefix(line, fmt.Sprintf("%d x", i+7)), line[:8])
	}

	require.NoError(t, afero.WriteFile(fs, "/partial.log", []byte("a\nb\nc"), 0644))
	lines, err = f.Tail(ctx, "/partial.log", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, lines)

	lines, err = f.Tail(ctx, "/partial.log", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)

	require.NoError(t, afero.WriteFile(fs, "/blank.log", []byte("a\n\n\n"), 0644))
	lines, err = f.Tail(ctx, "/blank.log", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, lines)

	require.NoError(t, afero.WriteFile(fs, "/empty.log", nil, 0644))
	lines, err = f.Tail(ctx, "/empty.log", 5)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestTailOffset(t *testing.T) {
	ctx := context.Background()
	data := []byte("a\nb\nc\n")
	r := strings.NewReader(string(data))

	off, err := tailOffset(ctx, r, int64(len(data)), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), off)

	off, err = tailOffset(ctx, r, int64(len(data)), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = tailOffset(cancelled, r, int64(len(data)), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
