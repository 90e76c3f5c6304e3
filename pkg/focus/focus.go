// Package focus resolves tool paths against the session's project focus.
//
// Absolute paths pass through unchanged. Relative paths are joined onto the
// focus directory, and resolving one without a focus is an error rather than
// a silent fallback to the process working directory.
package focus

import (
	"os"
	"path/filepath"

	"github.com/prismon/vps-agent/pkg/pathutil"
)

// Resolver holds the current project focus for one invocation
type Resolver struct {
	focus string
}

// NewResolver creates a resolver with no focus
func NewResolver() *Resolver {
	return &Resolver{}
}

// FromFocus builds a resolver from a replayed focus value. An empty focus
// yields a resolver with no focus. A focus that no longer exists on disk is
// an *InvalidFocusError.
func FromFocus(focus string) (*Resolver, error) {
	r := NewResolver()
	if focus == "" {
		return r, nil
	}
	if err := r.SetFocus(focus); err != nil {
		return r, err
	}
	return r, nil
}

// Focus returns the current focus, or "" when none is set
func (r *Resolver) Focus() string {
	return r.focus
}

// HasFocus reports whether a focus is set
func (r *Resolver) HasFocus() bool {
	return r.focus != ""
}

// SetFocus sets the focus to an absolute, existing directory. It only
// changes in-memory state; recording the change is the caller's job.
func (r *Resolver) SetFocus(path string) error {
	if !filepath.IsAbs(path) {
		return &InvalidFocusError{Path: path, Reason: "must be absolute"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &InvalidFocusError{Path: path, Reason: "does not exist"}
		}
		return &InvalidFocusError{Path: path, Reason: err.Error()}
	}
	if !info.IsDir() {
		return &InvalidFocusError{Path: path, Reason: "is not a directory"}
	}

	r.focus = filepath.Clean(path)
	return nil
}

// ClearFocus removes the focus
func (r *Resolver) ClearFocus() {
	r.focus = ""
}

// Resolve returns path unchanged if absolute, otherwise the cleaned join of
// the focus and path.
func (r *Resolver) Resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	if r.focus == "" {
		return "", &NoFocusError{Path: path}
	}
	return filepath.Join(r.focus, path), nil
}

// IsWithinFocus reports whether path resolves to the focus or beneath it.
// It is false when no focus is set or the path cannot be resolved.
func (r *Resolver) IsWithinFocus(path string) bool {
	if r.focus == "" {
		return false
	}
	resolved, err := r.Resolve(path)
	if err != nil {
		return false
	}
	return pathutil.HasPathPrefix(resolved, r.focus)
}

// RelativeToFocus returns path relative to the focus when it lies under it.
// Relative paths, paths outside the focus, and any path when no focus is set
// are returned unchanged.
func (r *Resolver) RelativeToFocus(path string) string {
	if r.focus == "" || !filepath.IsAbs(path) {
		return path
	}
	if !pathutil.HasPathPrefix(path, r.focus) {
		return path
	}
	rel, err := filepath.Rel(r.focus, path)
	if err != nil {
		return path
	}
	return rel
}
