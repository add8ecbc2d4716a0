package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent-but-unsearched"), nil)
	require.Error(t, err) // explicit missing file is an error

	Reset()
	cfg, err = Load("", nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.AllowRoots)
	assert.False(t, cfg.RemoteImports)
	assert.Equal(t, []string{"https"}, cfg.AllowedSchemes)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.False(t, cfg.Verbose)
}

func TestLoadConfigFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "lakecraft.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
allow_roots:
  - catalogs
remote_imports: true
http_timeout: 5s
max_depth: 3
`), 0o644))

	cfg, err := Load(cfgFile, nil)
	require.NoError(t, err)

	// Relative paths in the file resolve against its directory.
	assert.Equal(t, []string{filepath.Join(dir, "catalogs")}, cfg.AllowRoots)
	assert.True(t, cfg.RemoteImports)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, cfgFile, GetConfigFileUsed())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "lakecraft.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("max_depth: 3\n"), 0o644))

	t.Setenv("LAKECRAFT_MAX_DEPTH", "7")

	cfg, err := Load(cfgFile, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxDepth)
}

func TestLoadFlagsOverrideAll(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "lakecraft.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("max_depth: 3\nverbose: false\n"), 0o644))

	t.Setenv("LAKECRAFT_MAX_DEPTH", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-depth", 0, "")
	flags.Bool("verbose", false, "")
	flags.String("state", "", "")
	require.NoError(t, flags.Parse([]string{"--max-depth", "2", "--verbose", "--state", "run/state.db"}))

	cfg, err := Load(cfgFile, flags)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxDepth)
	assert.True(t, cfg.Verbose)

	// --state resolves against the working directory, not the config file.
	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "run", "state.db"), cfg.StatePath)
}

func TestUnchangedFlagsDoNotOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "lakecraft.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("max_depth: 3\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-depth", 5, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(cfgFile, flags)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxDepth)
}

func TestCurrentFallsBackToDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg := Current()
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
}
