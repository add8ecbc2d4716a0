// Package dialect is the single source of truth for turning strings into
// safe SQL identifiers, literals, and option values. Every dynamic SQL
// fragment in lakecraft passes through this package before it reaches a
// statement string; no other package may concatenate untrusted text into SQL.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// IdentifierConfig describes how a dialect quotes identifiers.
type IdentifierConfig struct {
	// Quote is the opening quote character (e.g., `"` or "[")
	Quote string
	// QuoteEnd is the closing quote character (same as Quote for most dialects)
	QuoteEnd string
	// Escape is the escaped form of QuoteEnd inside an identifier (e.g., `""`)
	Escape string
}

// Dialect holds quoting configuration for a target engine.
type Dialect struct {
	Name        string
	Identifiers IdentifierConfig
}

// DuckDB returns the dialect for the embedded DuckDB engine.
// DuckDB follows the SQL standard: double-quoted identifiers,
// single-quoted literals, embedded quotes doubled.
func DuckDB() *Dialect {
	return &Dialect{
		Name: "duckdb",
		Identifiers: IdentifierConfig{
			Quote:    `"`,
			QuoteEnd: `"`,
			Escape:   `""`,
		},
	}
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters,
// doubling any embedded closing quotes. Used for every database, schema,
// table, view, and alias name.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteLiteral quotes a string literal, doubling embedded single quotes.
// Used for paths, connection strings, and credential values.
func (d *Dialect) QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QualifyName joins identifier parts with dots, quoting each part.
func (d *Dialect) QualifyName(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(quoted, ".")
}

// RenderOption renders a runtime option value as SQL text.
// Booleans become unquoted TRUE/FALSE, integers and floats become unquoted
// decimal text, strings are quoted as literals. Any other type is a hard
// error; there is deliberately no unquoted fallback.
func (d *Dialect) RenderOption(value any) (string, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return d.QuoteLiteral(v), nil
	default:
		return "", &UnsupportedOptionTypeError{Value: value}
	}
}

// UnsupportedOptionTypeError is returned by RenderOption for values outside
// the closed set of accepted kinds (bool, int, float, string).
type UnsupportedOptionTypeError struct {
	Value any
}

func (e *UnsupportedOptionTypeError) Error() string {
	return fmt.Sprintf("unsupported option type %T; only bool, integer, float and string values may reach SQL", e.Value)
}
