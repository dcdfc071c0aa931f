// Package sources holds the registry of log sources LogWatch can query.
//
// A source is a symbolic name (expo, nodejs, nextjs, ...) bound to one log
// artifact on disk and to the shell command a developer runs to produce it.
// The registry is built once at startup and is read-only afterwards, so it
// can be shared between concurrent tool calls without locking.
package sources

import (
	"fmt"
	"path/filepath"

	"github.com/bebsworthy/logwatch/internal/config"
)

// ID is a source identifier. Identifiers are case-sensitive.
type ID string

// String returns the identifier text.
func (id ID) String() string {
	return string(id)
}

// Descriptor describes one log source.
type Descriptor struct {
	ID                  ID
	File                string
	Description         string
	CaptureCommand      string
	AlternativeCommands []string
}

// Registry is the closed, ordered set of known sources.
type Registry struct {
	order     []ID
	byID      map[ID]Descriptor
	defaultID ID
}

// NewRegistry builds a registry from descriptors, preserving their order.
// It fails on an empty set, duplicate or empty identifiers, relative artifact
// paths, and a default that is not one of the descriptors.
func NewRegistry(defaultID ID, descriptors ...Descriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("registry requires at least one source")
	}

	r := &Registry{
		order:     make([]ID, 0, len(descriptors)),
		byID:      make(map[ID]Descriptor, len(descriptors)),
		defaultID: defaultID,
	}

	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("source identifier cannot be empty")
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate source %q", d.ID)
		}
		if !filepath.IsAbs(d.File) {
			return nil, fmt.Errorf("source %q: log file must be an absolute path, got %q", d.ID, d.File)
		}

		d.AlternativeCommands = append([]string(nil), d.AlternativeCommands...)
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}

	if _, ok := r.byID[defaultID]; !ok {
		return nil, fmt.Errorf("default source %q is not registered", defaultID)
	}

	return r, nil
}

// FromConfig builds the registry described by the configuration.
func FromConfig(defaultSource string, cfgSources []config.SourceConfig) (*Registry, error) {
	descriptors := make([]Descriptor, 0, len(cfgSources))
	for _, s := range cfgSources {
		descriptors = append(descriptors, Descriptor{
			ID:                  ID(s.Name),
			File:                s.File,
			Description:         s.Description,
			CaptureCommand:      s.CaptureCommand,
			AlternativeCommands: s.AlternativeCommands,
		})
	}
	return NewRegistry(ID(defaultSource), descriptors...)
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id ID) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Names returns the identifiers as plain strings, for tool schemas and messages.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, id := range r.order {
		names[i] = string(id)
	}
	return names
}

// Default returns the source used when a caller names none.
func (r *Registry) Default() ID {
	return r.defaultID
}
