package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	// AllowRoots are the directory trees local config reads are confined
	// to. Empty means the current working directory.
	AllowRoots []string `koanf:"allow_roots"`

	// RemoteImports enables fetching config fragments over HTTP(S).
	RemoteImports bool `koanf:"remote_imports"`

	// AllowedSchemes is the remote URL scheme allow-list.
	AllowedSchemes []string `koanf:"allowed_schemes"`

	// StatePath is the build-run history database.
	StatePath string `koanf:"state_path"`

	// HTTPTimeout bounds each remote fragment fetch and export upload.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// MaxDepth bounds attachment nesting.
	MaxDepth int `koanf:"max_depth"`

	// Timeout bounds a whole build; zero means no limit.
	Timeout time.Duration `koanf:"timeout"`

	Verbose   bool   `koanf:"verbose"`
	LogFormat string `koanf:"log_format"`
}

// Default configuration values.
const (
	DefaultStateFile   = ".lakecraft/state.db"
	DefaultLogFormat   = "text"
	DefaultMaxDepth    = 5
	DefaultHTTPTimeout = 30 * time.Second
)
