// Package storage abstracts where config fragments are read from and where
// built artifacts are written to. Local filesystem and HTTP backends are
// provided; callers are responsible for path validation before handing a
// local ref to this package.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
)

// Store reads config fragments and writes build artifacts.
type Store interface {
	// Read returns the full contents of ref.
	Read(ctx context.Context, ref string) ([]byte, error)
	// Exists reports whether ref is readable.
	Exists(ctx context.Context, ref string) (bool, error)
	// Write streams r to ref, replacing any existing content.
	Write(ctx context.Context, ref string, r io.Reader) error
}

// IsRemote reports whether ref carries a URL scheme (e.g., https://...).
// Single-letter "schemes" are treated as Windows drive letters, not URLs.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return len(u.Scheme) > 1
}

// NotFoundError reports a ref that does not exist in the backing store.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storage: %q not found", e.Ref)
}
