package query

import (
	"context"
	"io"

	"github.com/spf13/afero"

	"github.com/bebsworthy/logwatch/internal/buffer"
)

// ScanFilter reads artifacts in-process through an afero filesystem.
type ScanFilter struct {
	fs afero.Fs
}

// NewScanFilter creates a filter reading from fs.
func NewScanFilter(fs afero.Fs) *ScanFilter {
	return &ScanFilter{fs: fs}
}

// Tail reads the file backwards from the end to find where the last n lines
// start, then reads forward from there. Only the tail of the file is read.
func (f *ScanFilter) Tail(ctx context.Context, path string, n int) ([]string, error) {
	ring, err := buffer.NewLineRing(n)
	if err != nil {
		return nil, err
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	offset, err := tailOffset(ctx, file, info.Size(), n)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	if err := readLines(ctx, file, ring.Add); err != nil {
		return nil, err
	}
	return ring.Lines(), nil
}

// tailBlock is the size of each backward read
const tailBlock = 64 * 1024

// tailOffset returns an offset at or before the first of the last n lines of
// a file of the given size. It stops at the (n+1)th newline from the end,
// since the final newline may only terminate the last line.
func tailOffset(ctx context.Context, r io.ReaderAt, size int64, n int) (int64, error) {
	buf := make([]byte, tailBlock)
	newlines := 0

	for pos := size; pos > 0; {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		step := min(int64(tailBlock), pos)
		pos -= step

		chunk := buf[:step]
		if _, err := r.ReadAt(chunk, pos); err != nil && err != io.EOF {
			return 0, err
		}

		for i := len(chunk) - 1; i >= 0; i-- {
			if chunk[i] != '\n' {
				continue
			}
			newlines++
			if newlines > n {
				return pos + int64(i) + 1, nil
			}
		}
	}
	return 0, nil
}

// Match streams the file once, keeping the last limit matching lines.
func (f *ScanFilter) Match(ctx context.Context, path string, p Pattern, limit int) ([]string, error) {
	re, err := p.Regexp()
	if err != nil {
		return nil, err
	}

	ring, err := buffer.NewLineRing(limit)
	if err != nil {
		return nil, err
	}

	err = f.scan(ctx, path, func(line string) {
		if re.MatchString(line) {
			ring.Add(line)
		}
	})
	if err != nil {
		return nil, err
	}
	return ring.Lines(), nil
}

func (f *ScanFilter) scan(ctx context.Context, path string, fn func(string)) error {
	file, err := f.fs.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return readLines(ctx, file, fn)
}
