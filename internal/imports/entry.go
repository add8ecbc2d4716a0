package imports

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// importsKey is the reserved top-level key listing a fragment's imports.
const importsKey = "imports"

// Entry is one declared import: a path or URI, plus optional merge and
// selection modifiers.
type Entry struct {
	// Path is the file path, glob pattern, or URL of the imported fragment.
	Path string `mapstructure:"path"`

	// Override selects merge semantics: true (default) deep-merges with the
	// import winning conflicts as later content is layered on top; false
	// fills only keys that are still absent.
	Override *bool `mapstructure:"override"`

	// Sections restricts the merge to the listed top-level keys.
	Sections []string `mapstructure:"sections"`

	// Exclude removes glob-expanded entries whose base name matches this
	// pattern. Applied after expansion.
	Exclude string `mapstructure:"exclude"`
}

// override returns the effective override flag (default true).
func (e Entry) override() bool {
	return e.Override == nil || *e.Override
}

// parseEntries decodes the raw imports list of a fragment. Each element is
// either a bare string path or a map with path/override/sections/exclude.
func parseEntries(origin string, raw any) ([]Entry, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &ParseError{Path: origin, Err: fmt.Errorf("%q must be a list, got %T", importsKey, raw)}
	}

	entries := make([]Entry, 0, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case string:
			entries = append(entries, Entry{Path: v})
		case map[string]any:
			var e Entry
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:      &e,
				ErrorUnused: true,
			})
			if err != nil {
				return nil, fmt.Errorf("imports: build decoder: %w", err)
			}
			if err := dec.Decode(v); err != nil {
				return nil, &ParseError{Path: origin, Err: fmt.Errorf("import entry %d: %w", i, err)}
			}
			if e.Path == "" {
				return nil, &ParseError{Path: origin, Err: fmt.Errorf("import entry %d: missing path", i)}
			}
			entries = append(entries, e)
		default:
			return nil, &ParseError{Path: origin, Err: fmt.Errorf("import entry %d: expected string or map, got %T", i, item)}
		}
	}
	return entries, nil
}
