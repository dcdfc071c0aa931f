// Package buffer provides a fixed-capacity ring of text lines.
//
// The ring keeps the most recent lines pushed into it and drops the oldest
// once full. Queries use it to hold the last N lines of an artifact, or the
// last N matches of a filter, while streaming a file or command output once.
// Storage grows on demand, so a large capacity costs nothing until lines
// actually arrive.
package buffer

import "fmt"

// LineRing holds the most recent lines added to it.
// A LineRing is not safe for concurrent use.
type LineRing struct {
	lines    []string
	head     int // oldest line once the ring is full
	capacity int
}

// initialAlloc bounds the up-front allocation for large rings
const initialAlloc = 1024

// NewLineRing creates a ring that keeps at most capacity lines.
func NewLineRing(capacity int) (*LineRing, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("ring capacity must be positive, got %d", capacity)
	}

	return &LineRing{
		lines:    make([]string, 0, min(capacity, initialAlloc)),
		capacity: capacity,
	}, nil
}

// Add appends a line, evicting the oldest one when the ring is full.
func (r *LineRing) Add(line string) {
	if len(r.lines) < r.capacity {
		r.lines = append(r.lines, line)
		return
	}

	r.lines[r.head] = line
	r.head = (r.head + 1) % r.capacity
}

// Lines returns the retained lines, oldest first.
func (r *LineRing) Lines() []string {
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.head:]...)
	return append(out, r.lines[:r.head]...)
}
