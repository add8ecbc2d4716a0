// Package config loads CLI configuration from file, environment variables
// and flags.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey stores the CLI logger in a command context.
type loggerKey struct{}

// Package-level koanf instance and config file tracking.
var (
	k              = koanf.New(".")
	configFileUsed string
	current        *Config
)

// findConfigFile finds the config file to use.
// Priority: explicit path > lakecraft.yaml > lakecraft.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"lakecraft.yaml", "lakecraft.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Reset clears loaded configuration. Used for testing.
func Reset() {
	k = koanf.New(".")
	configFileUsed = ""
	current = nil
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"allow_roots":     []string{},
		"remote_imports":  false,
		"allowed_schemes": []string{"https"},
		"state_path":      DefaultStateFile,
		"http_timeout":    DefaultHTTPTimeout,
		"max_depth":       DefaultMaxDepth,
		"timeout":         0,
		"verbose":         false,
		"log_format":      DefaultLogFormat,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// LAKECRAFT_STATE_PATH -> state_path
	if err := k.Load(env.Provider("LAKECRAFT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LAKECRAFT_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// Bridge flag names to config keys where they differ.
			switch key {
			case "allow_root":
				key = "allow_roots"
			case "state":
				key = "state_path"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Paths from the config file resolve against its directory; paths from
	// flags or env resolve against the working directory.
	base := "."
	if configFileUsed != "" {
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			base = filepath.Dir(abs)
		}
	}
	rootsFromFlags := flags != nil && flags.Changed("allow-root")
	for i, root := range cfg.AllowRoots {
		cfg.AllowRoots[i] = absolutize(root, base, rootsFromFlags)
	}
	stateFromFlags := flags != nil && flags.Changed("state")
	cfg.StatePath = absolutize(cfg.StatePath, base, stateFromFlags)

	current = &cfg
	return &cfg, nil
}

func absolutize(path, base string, fromFlags bool) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if fromFlags {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// Current returns the most recently loaded config, or defaults when none
// has been loaded.
func Current() *Config {
	if current != nil {
		return current
	}
	return &Config{
		AllowedSchemes: []string{"https"},
		StatePath:      DefaultStateFile,
		HTTPTimeout:    DefaultHTTPTimeout,
		MaxDepth:       DefaultMaxDepth,
		LogFormat:      DefaultLogFormat,
	}
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// WithLogger stores the CLI logger in a context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the CLI logger from a context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
