// Package pathsec validates candidate filesystem paths against a set of
// allowed roots. Canonicalization uses real filesystem resolution (Abs +
// EvalSymlinks), never substring counting of "..", so symlink escapes and
// mixed separators are caught the same way as plain traversal.
package pathsec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Validator accepts only paths whose canonical form resolves inside at
// least one allowed root.
type Validator struct {
	roots []string // canonical allowed roots
}

// NewValidator canonicalizes the given roots and returns a Validator.
// Roots must exist; a root that cannot be resolved is an error.
func NewValidator(roots ...string) (*Validator, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("pathsec: at least one allowed root is required")
	}
	canonical := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("pathsec: resolve root %q: %w", r, err)
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("pathsec: resolve root %q: %w", r, err)
		}
		canonical = append(canonical, resolved)
	}
	return &Validator{roots: canonical}, nil
}

// Roots returns the canonical allowed roots.
func (v *Validator) Roots() []string {
	out := make([]string, len(v.roots))
	copy(out, v.roots)
	return out
}

// Resolve canonicalizes candidate (relative candidates are joined to
// baseDir) and returns the canonical path if it lies inside an allowed
// root. Rejection is always a hard failure carrying both the candidate and
// its canonical resolution.
func (v *Validator) Resolve(candidate, baseDir string) (string, error) {
	joined := candidate
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(baseDir, joined)
	}

	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", &Error{Candidate: candidate, Reason: err.Error()}
	}

	canonical, err := canonicalize(abs)
	if err != nil {
		return "", &Error{Candidate: candidate, Reason: err.Error()}
	}

	for _, root := range v.roots {
		if isDescendant(root, canonical) {
			return canonical, nil
		}
	}

	return "", &Error{
		Candidate: candidate,
		Canonical: canonical,
		Reason:    fmt.Sprintf("resolves outside allowed roots %v", v.roots),
	}
}

// canonicalize resolves symlinks in abs. If the path does not exist yet
// (e.g., an output artifact), symlinks are resolved for the nearest
// existing ancestor and the remaining components are re-joined.
func canonicalize(abs string) (string, error) {
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	// Walk up to the nearest existing ancestor.
	var tail []string
	dir := abs
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing ancestor for %q", abs)
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent

		resolved, err = filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
}

// isDescendant reports whether path equals root or is a path-component
// descendant of root. The comparison is component-wise; different volumes
// (Windows drives) never match.
func isDescendant(root, path string) bool {
	if filepath.VolumeName(root) != filepath.VolumeName(path) {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Error reports a path that failed security validation.
type Error struct {
	Candidate string
	Canonical string
	Reason    string
}

func (e *Error) Error() string {
	if e.Canonical != "" {
		return fmt.Sprintf("path %q (canonical %q) rejected: %s", e.Candidate, e.Canonical, e.Reason)
	}
	return fmt.Sprintf("path %q rejected: %s", e.Candidate, e.Reason)
}
