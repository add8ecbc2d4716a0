// Package config defines the typed catalog configuration decoded from a
// merged config tree, and validates it exactly once per run.
package config

import (
	"log/slog"
)

// Catalog is the validated configuration for one catalog build.
type Catalog struct {
	// Name identifies the catalog; used as the default artifact name.
	Name string `mapstructure:"name"`

	// Database is the output path of the built artifact. Empty means
	// "<name>.duckdb" next to the config.
	Database string `mapstructure:"database"`

	// Extensions to INSTALL/LOAD before anything else (e.g., httpfs).
	Extensions []string `mapstructure:"extensions"`

	// Settings applied at session level (e.g., memory_limit, threads).
	// Values are constrained to bool/int/float/string at decode time.
	Settings map[string]any `mapstructure:"settings"`

	// Attachments reference other catalog configs to build and attach.
	Attachments []Attachment `mapstructure:"attachments"`

	// Secrets registered with the engine for remote storage access.
	Secrets []Secret `mapstructure:"secrets"`

	// Views created in the catalog.
	Views []View `mapstructure:"views"`

	// Export optionally streams the built artifact to a destination.
	Export *Export `mapstructure:"export"`
}

// Attachment references another catalog config whose built artifact is
// attached into this catalog's session.
type Attachment struct {
	// Config is the path of the referenced catalog config.
	Config string `mapstructure:"config"`

	// Alias is the database alias the attachment is visible under.
	Alias string `mapstructure:"alias"`

	// ReadOnly defaults to true; attachments are read-only unless
	// explicitly opened for writes.
	ReadOnly *bool `mapstructure:"read_only"`
}

// IsReadOnly returns the effective read-only flag.
func (a Attachment) IsReadOnly() bool {
	return a.ReadOnly == nil || *a.ReadOnly
}

// SecretKind is the closed set of credential kinds. Each kind is one
// tagged variant consumed by both validation and SQL generation.
type SecretKind string

// Supported secret kinds.
const (
	SecretS3          SecretKind = "s3"
	SecretGCS         SecretKind = "gcs"
	SecretAzure       SecretKind = "azure"
	SecretR2          SecretKind = "r2"
	SecretHuggingFace SecretKind = "huggingface"
)

// secretKinds is the authoritative kind set.
var secretKinds = map[SecretKind]bool{
	SecretS3:          true,
	SecretGCS:         true,
	SecretAzure:       true,
	SecretR2:          true,
	SecretHuggingFace: true,
}

// Secret is one engine credential. Values arrive as opaque strings,
// possibly env-interpolated; this package never inspects their content.
type Secret struct {
	// Name is the secret's identifier within the engine.
	Name string `mapstructure:"name"`

	// Kind selects the credential variant.
	Kind SecretKind `mapstructure:"kind"`

	// Provider selects how the engine acquires credentials
	// (e.g., "config", "credential_chain").
	Provider string `mapstructure:"provider"`

	// Scope limits the secret to specific path prefixes.
	Scope []string `mapstructure:"scope"`

	// Options are kind-specific key/value pairs (region, endpoint, key_id,
	// secret, ...). Values are constrained to bool/int/float/string.
	Options map[string]any `mapstructure:"options"`
}

// Redacted wraps a credential value so the logging boundary itself redacts
// it: any slog call rendering a Redacted prints a placeholder, never the
// value.
type Redacted string

// LogValue implements slog.LogValuer.
func (Redacted) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}

// SourceKind is the closed set of view source descriptions.
type SourceKind string

// Supported view source kinds.
const (
	SourceFile  SourceKind = "file"
	SourceTable SourceKind = "table"
	SourceQuery SourceKind = "query"
)

// View declares one view in the catalog.
type View struct {
	// Name of the view.
	Name string `mapstructure:"name"`

	// Schema the view is created in. Empty means the engine default.
	Schema string `mapstructure:"schema"`

	// Source describes what the view selects from.
	Source Source `mapstructure:"source"`

	// Columns optionally restricts the projection.
	Columns []string `mapstructure:"columns"`
}

// Source is a view's typed source description.
type Source struct {
	// Kind selects the variant: file, table, or query.
	Kind SourceKind `mapstructure:"kind"`

	// Path of the data file(s) for kind=file. May be a glob or remote URL.
	Path string `mapstructure:"path"`

	// Format of the file for kind=file: parquet, csv, or json.
	// Empty means inferred from the path extension.
	Format string `mapstructure:"format"`

	// Options passed to the file reader for kind=file.
	Options map[string]any `mapstructure:"options"`

	// Catalog/Schema/Table reference for kind=table.
	Catalog string `mapstructure:"catalog"`
	Schema  string `mapstructure:"schema"`
	Table   string `mapstructure:"table"`

	// SQL is the declared view body for kind=query. It is embedded in the
	// generated statement as written, without quoting or mediation: anyone
	// who can declare a view already controls the SQL the view runs.
	SQL string `mapstructure:"sql"`
}

// Export configures streaming the built artifact to a destination.
type Export struct {
	// Destination path or URL. Empty disables export; the local artifact
	// path is left unchanged.
	Destination string `mapstructure:"destination"`
}
