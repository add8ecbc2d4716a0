package imports

import (
	"fmt"
	"strings"
)

// NotFoundError reports an import whose file or object does not exist.
type NotFoundError struct {
	Path         string
	ImportedFrom string
}

func (e *NotFoundError) Error() string {
	if e.ImportedFrom != "" {
		return fmt.Sprintf("import %q (from %s) not found", e.Path, e.ImportedFrom)
	}
	return fmt.Sprintf("import %q not found", e.Path)
}

// ParseError reports a fragment that could not be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CircularError reports a circular import chain. Chain holds the canonical
// keys from the first occurrence of the repeated fragment back to itself.
type CircularError struct {
	Chain []string
}

func (e *CircularError) Error() string {
	return fmt.Sprintf("circular import: %s", strings.Join(e.Chain, " -> "))
}

// ValidationError reports an import entry that violates resolver policy,
// such as a remote URL with a scheme outside the allow-list.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("import %q rejected: %s", e.Path, e.Reason)
}
