package builder

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lakecraft-labs/lakecraft/internal/config"
	"github.com/lakecraft-labs/lakecraft/internal/graph"
	"github.com/lakecraft-labs/lakecraft/pkg/dialect"
)

// All statement text is assembled here and nowhere else. Every dynamic
// fragment passes through pkg/dialect except the declared SQL body of a
// query-source view, which is trusted config content (see viewSource).

func installExtensionSQL(d *dialect.Dialect, name string) []string {
	quoted := d.QuoteIdentifier(name)
	return []string{
		"INSTALL " + quoted,
		"LOAD " + quoted,
	}
}

func setSettingSQL(d *dialect.Dialect, key string, value any) (string, error) {
	rendered, err := d.RenderOption(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SET %s = %s", d.QuoteIdentifier(key), rendered), nil
}

func attachSQL(d *dialect.Dialect, alias string, ref graph.AttachmentRef) string {
	stmt := fmt.Sprintf("ATTACH IF NOT EXISTS %s AS %s",
		d.QuoteLiteral(ref.Artifact), d.QuoteIdentifier(alias))
	if ref.ReadOnly {
		stmt += " (READ_ONLY)"
	}
	return stmt
}

func createSecretSQL(d *dialect.Dialect, s config.Secret) (string, error) {
	parts := []string{"TYPE " + strings.ToUpper(string(s.Kind))}
	if s.Provider != "" {
		// Provider is validated to be identifier-shaped at decode time.
		parts = append(parts, "PROVIDER "+strings.ToUpper(s.Provider))
	}

	// Options in sorted key order so generated SQL is deterministic.
	keys := make([]string, 0, len(s.Options))
	for k := range s.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rendered, err := d.RenderOption(s.Options[k])
		if err != nil {
			return "", fmt.Errorf("secret %q option %q: %w", s.Name, k, err)
		}
		parts = append(parts, strings.ToUpper(k)+" "+rendered)
	}

	if len(s.Scope) > 0 {
		quoted := make([]string, len(s.Scope))
		for i, sc := range s.Scope {
			quoted[i] = d.QuoteLiteral(sc)
		}
		parts = append(parts, "SCOPE "+strings.Join(quoted, ", "))
	}

	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (%s)",
		d.QuoteIdentifier(s.Name), strings.Join(parts, ", ")), nil
}

func createViewSQL(d *dialect.Dialect, v config.View) (string, error) {
	from, err := viewSource(d, v.Source)
	if err != nil {
		return "", fmt.Errorf("view %q: %w", v.Name, err)
	}

	projection := "*"
	if len(v.Columns) > 0 {
		cols := make([]string, len(v.Columns))
		for i, c := range v.Columns {
			cols[i] = d.QuoteIdentifier(c)
		}
		projection = strings.Join(cols, ", ")
	}

	name := d.QuoteIdentifier(v.Name)
	if v.Schema != "" {
		name = d.QualifyName(v.Schema, v.Name)
	}

	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT %s FROM %s",
		name, projection, from), nil
}

// viewSource renders the FROM clause for a typed view source. File and
// table sources are fully dialect-mediated; a query source's SQL body is
// the author's declared view definition and is embedded as written, which
// is the one place config text reaches a statement without quoting.
func viewSource(d *dialect.Dialect, src config.Source) (string, error) {
	switch src.Kind {
	case config.SourceFile:
		reader, err := fileReader(src)
		if err != nil {
			return "", err
		}
		args := []string{d.QuoteLiteral(src.Path)}

		keys := make([]string, 0, len(src.Options))
		for k := range src.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rendered, err := d.RenderOption(src.Options[k])
			if err != nil {
				return "", fmt.Errorf("option %q: %w", k, err)
			}
			args = append(args, k+" = "+rendered)
		}
		return reader + "(" + strings.Join(args, ", ") + ")", nil

	case config.SourceTable:
		parts := make([]string, 0, 3)
		if src.Catalog != "" {
			parts = append(parts, src.Catalog)
		}
		if src.Schema != "" {
			parts = append(parts, src.Schema)
		}
		parts = append(parts, src.Table)
		return d.QualifyName(parts...), nil

	case config.SourceQuery:
		// The declared view body, parenthesized as a derived table.
		// Trusted as written, not dialect-mediated.
		return "(" + src.SQL + ")", nil

	default:
		return "", fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// fileReader selects the DuckDB table function for a file source, inferring
// the format from the path extension when not declared.
func fileReader(src config.Source) (string, error) {
	format := src.Format
	if format == "" {
		switch strings.ToLower(filepath.Ext(src.Path)) {
		case ".parquet":
			format = "parquet"
		case ".csv":
			format = "csv"
		case ".json", ".ndjson", ".jsonl":
			format = "json"
		default:
			return "", fmt.Errorf("cannot infer format from path %q; set format explicitly", src.Path)
		}
	}

	switch format {
	case "parquet":
		return "read_parquet", nil
	case "csv":
		return "read_csv", nil
	case "json":
		return "read_json", nil
	default:
		return "", fmt.Errorf("unknown file format %q", format)
	}
}
