package config

import (
	"fmt"
	"regexp"

	"github.com/go-viper/mapstructure/v2"
)

// optionKeyPattern bounds option and setting keys, which reach generated
// SQL as bare words.
var optionKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Decode turns a merged config tree into a typed Catalog and validates it.
// This is the single place an untyped tree becomes typed; it runs exactly
// once per top-level build.
func Decode(tree map[string]any) (*Catalog, error) {
	var cat Catalog
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cat,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := dec.Decode(tree); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks structural invariants: required fields, unique names,
// closed kind sets, and scalar-only option values. Run once per build.
func (c *Catalog) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Reason: "catalog name is required"}
	}

	if err := validateOptionValues("settings", c.Settings); err != nil {
		return err
	}

	seenViews := make(map[string]bool, len(c.Views))
	for i, v := range c.Views {
		field := fmt.Sprintf("views[%d]", i)
		if v.Name == "" {
			return &ValidationError{Field: field, Reason: "view name is required"}
		}
		qualified := v.Schema + "." + v.Name
		if seenViews[qualified] {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("duplicate view name %q", v.Name)}
		}
		seenViews[qualified] = true

		if err := v.Source.validate(field); err != nil {
			return err
		}
	}

	seenAliases := make(map[string]bool, len(c.Attachments))
	for i, a := range c.Attachments {
		field := fmt.Sprintf("attachments[%d]", i)
		if a.Config == "" {
			return &ValidationError{Field: field, Reason: "attachment config path is required"}
		}
		if a.Alias == "" {
			return &ValidationError{Field: field, Reason: "attachment alias is required"}
		}
		if seenAliases[a.Alias] {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("duplicate attachment alias %q", a.Alias)}
		}
		seenAliases[a.Alias] = true
	}

	seenSecrets := make(map[string]bool, len(c.Secrets))
	for i, s := range c.Secrets {
		field := fmt.Sprintf("secrets[%d]", i)
		if s.Name == "" {
			return &ValidationError{Field: field, Reason: "secret name is required"}
		}
		if seenSecrets[s.Name] {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("duplicate secret name %q", s.Name)}
		}
		seenSecrets[s.Name] = true

		if !secretKinds[s.Kind] {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown secret kind %q", s.Kind)}
		}
		// Providers reach SQL as bare words, same constraint as option keys.
		if s.Provider != "" && !optionKeyPattern.MatchString(s.Provider) {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("invalid provider %q", s.Provider)}
		}
		if err := validateOptionValues(field+".options", s.Options); err != nil {
			return err
		}
	}

	return nil
}

func (s Source) validate(field string) error {
	switch s.Kind {
	case SourceFile:
		if s.Path == "" {
			return &ValidationError{Field: field, Reason: "file source requires a path"}
		}
		switch s.Format {
		case "", "parquet", "csv", "json":
		default:
			return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown file format %q", s.Format)}
		}
		return validateOptionValues(field+".source.options", s.Options)
	case SourceTable:
		if s.Table == "" {
			return &ValidationError{Field: field, Reason: "table source requires a table name"}
		}
		return nil
	case SourceQuery:
		if s.SQL == "" {
			return &ValidationError{Field: field, Reason: "query source requires sql"}
		}
		return nil
	default:
		return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown source kind %q", s.Kind)}
	}
}

// validateOptionValues enforces the closed set of runtime kinds accepted by
// SQL rendering (bool, int, float, string) at the config boundary, so
// option rendering never guesses a type late.
func validateOptionValues(field string, options map[string]any) error {
	for key, v := range options {
		if !optionKeyPattern.MatchString(key) {
			return &ValidationError{
				Field:  field + "." + key,
				Reason: "option keys must match [A-Za-z_][A-Za-z0-9_]*",
			}
		}
		switch v.(type) {
		case bool, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64, string:
		default:
			return &ValidationError{
				Field:  field + "." + key,
				Reason: fmt.Sprintf("option values must be bool, integer, float or string; got %T", v),
			}
		}
	}
	return nil
}

// ValidationError reports an invalid catalog configuration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid config: %s", e.Reason)
}
