package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local is a filesystem-backed Store. Refs are absolute paths that have
// already passed security validation.
type Local struct{}

// NewLocal creates a filesystem store.
func NewLocal() *Local {
	return &Local{}
}

// Read returns the contents of the file at ref.
func (l *Local) Read(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Ref: ref}
		}
		return nil, fmt.Errorf("storage: read %q: %w", ref, err)
	}
	return data, nil
}

// Exists reports whether the file at ref exists.
func (l *Local) Exists(_ context.Context, ref string) (bool, error) {
	_, err := os.Stat(ref)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("storage: stat %q: %w", ref, err)
}

// Write streams r to the file at ref, creating parent directories as needed.
// The write goes through a temp file and rename so a failed export never
// leaves a truncated artifact at the destination.
func (l *Local) Write(_ context.Context, ref string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(ref), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for %q: %w", ref, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(ref), ".lakecraft-export-*")
	if err != nil {
		return fmt.Errorf("storage: temp file for %q: %w", ref, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: write %q: %w", ref, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: close %q: %w", ref, err)
	}
	if err := os.Rename(tmpName, ref); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: rename to %q: %w", ref, err)
	}
	return nil
}

var _ Store = (*Local)(nil)
