package sources

import (
	"github.com/bebsworthy/logwatch/internal/errors"
)

// Resolve maps a caller-supplied source name to a registered identifier.
// An empty name selects the default source. Unknown names are rejected with
// an INVALID_SOURCE error listing the valid identifiers; they are never
// silently replaced by the default.
func (r *Registry) Resolve(raw string) (ID, error) {
	if raw == "" {
		return r.defaultID, nil
	}

	id := ID(raw)
	if _, ok := r.byID[id]; ok {
		return id, nil
	}

	return "", errors.InvalidSource(raw, r.Names())
}

// ResolveLines returns *raw when the caller supplied a line count and
// fallback otherwise. Counts are validated during argument decoding.
func ResolveLines(raw *int, fallback int) int {
	if raw != nil {
		return *raw
	}
	return fallback
}
