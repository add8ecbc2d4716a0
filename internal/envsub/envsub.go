// Package envsub resolves ${env:NAME} tokens in the string leaves of a
// parsed config tree. Substitution is single-pass: substituted text is never
// rescanned, so a variable value containing ${env:...} stays verbatim.
package envsub

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// tokenPattern matches ${env:...} with any token body; the body is validated
// separately so malformed names fail loudly instead of passing through.
var tokenPattern = regexp.MustCompile(`\$\{env:([^}]*)\}`)

// namePattern is the set of valid environment variable names.
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Lookup is the environment lookup function. It defaults to os.LookupEnv
// and is swappable for tests.
type Lookup func(name string) (string, bool)

// Interpolator substitutes environment variables into config trees.
type Interpolator struct {
	lookup Lookup
}

// New creates an Interpolator reading from the process environment.
func New() *Interpolator {
	return &Interpolator{lookup: os.LookupEnv}
}

// NewWithLookup creates an Interpolator with a custom lookup, for tests.
func NewWithLookup(lookup Lookup) *Interpolator {
	return &Interpolator{lookup: lookup}
}

// Expand substitutes all ${env:NAME} tokens in a single string.
func (i *Interpolator) Expand(s string) (string, error) {
	if !strings.Contains(s, "${env:") {
		return s, nil
	}

	var firstErr error
	out := tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := tokenPattern.FindStringSubmatch(match)[1]
		if !namePattern.MatchString(name) {
			firstErr = &InvalidNameError{Name: name}
			return match
		}
		value, ok := i.lookup(name)
		if !ok {
			firstErr = &NotSetError{Name: name}
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Apply walks a config tree and expands every string leaf in place of the
// returned copy. Maps and slices are recursed; all other values pass through.
func (i *Interpolator) Apply(tree map[string]any) (map[string]any, error) {
	out, err := i.applyValue(tree)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func (i *Interpolator) applyValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return i.Expand(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			expanded, err := i.applyValue(child)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for idx, child := range val {
			expanded, err := i.applyValue(child)
			if err != nil {
				return nil, err
			}
			out[idx] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// InvalidNameError reports a malformed variable name inside an ${env:...} token.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid environment variable name %q in ${env:...} token", e.Name)
}

// NotSetError reports a referenced environment variable that is not set.
// Only the variable name is carried; values are never part of error text.
type NotSetError struct {
	Name string
}

func (e *NotSetError) Error() string {
	return fmt.Sprintf("environment variable %q is not set", e.Name)
}
