package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakecraft-labs/lakecraft/internal/cli/config"
)

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.Reset()
	t.Cleanup(config.Reset)

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	// Canonicalize so paths survive symlinked temp dirs on macOS.
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	return resolved
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lakecraft v")
}

func TestResolveMergesImports(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"base.yaml": `
settings:
  threads: 4
views:
  - name: events
    source:
      kind: file
      path: events.parquet
`,
		"main.yaml": `
imports:
  - path: base.yaml
name: analytics
views:
  - name: summary
    source:
      kind: query
      sql: SELECT 1
`,
	})

	out, err := execute(t, "resolve", filepath.Join(dir, "main.yaml"), "--allow-root", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "name: analytics")
	assert.Contains(t, out, "events")
	assert.Contains(t, out, "summary")
	assert.Contains(t, out, "threads: 4")
	// Import directives are consumed, not part of the merged tree.
	assert.NotContains(t, out, "imports:")
}

func TestResolveTrace(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"base.yaml": "settings:\n  threads: 2\n",
		"main.yaml": "imports:\n  - path: base.yaml\nname: analytics\n",
	})

	out, err := execute(t, "resolve", filepath.Join(dir, "main.yaml"), "--allow-root", dir, "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, `"nodes"`)
	assert.Contains(t, out, filepath.Join(dir, "base.yaml"))
}

func TestResolveRejectsEscapingPath(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"inner/main.yaml": "name: analytics\n",
	})

	_, err := execute(t, "resolve", filepath.Join(dir, "inner", "main.yaml"), "--allow-root", filepath.Join(dir, "other"))
	require.Error(t, err)
}

func TestBuildDryRunPrintsStatements(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.yaml": `
name: analytics
extensions:
  - httpfs
settings:
  threads: 4
views:
  - name: events
    source:
      kind: file
      path: data/events.parquet
`,
	})
	statePath := filepath.Join(dir, "state.db")

	out, err := execute(t, "build", filepath.Join(dir, "main.yaml"),
		"--dry-run", "--allow-root", dir, "--state", statePath)
	require.NoError(t, err)

	assert.Contains(t, out, `INSTALL "httpfs"`)
	assert.Contains(t, out, `SET "threads" = 4`)
	assert.Contains(t, out, `CREATE OR REPLACE VIEW "events"`)
	assert.Contains(t, out, "read_parquet")
	assert.Contains(t, out, "Dry run: 1 catalogs")

	// Nothing was built.
	_, statErr := os.Stat(filepath.Join(dir, "analytics.duckdb"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuildDryRunWithAttachment(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"child.yaml": `
name: core
views:
  - name: users
    source:
      kind: query
      sql: SELECT 1 AS id
`,
		"main.yaml": `
name: analytics
attachments:
  - config: child.yaml
    alias: core
`,
	})
	statePath := filepath.Join(dir, "state.db")

	out, err := execute(t, "build", filepath.Join(dir, "main.yaml"),
		"--dry-run", "--allow-root", dir, "--state", statePath)
	require.NoError(t, err)

	// Child renders before the parent, and the parent attaches it.
	childIdx := bytes.Index([]byte(out), []byte("child.yaml"))
	mainIdx := bytes.Index([]byte(out), []byte("main.yaml"))
	require.GreaterOrEqual(t, childIdx, 0)
	require.GreaterOrEqual(t, mainIdx, 0)
	assert.Less(t, childIdx, mainIdx)
	assert.Contains(t, out, "ATTACH IF NOT EXISTS")
	assert.Contains(t, out, `AS "core"`)
	assert.Contains(t, out, "Dry run: 2 catalogs")
}

func TestBuildRecordsRunHistory(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.yaml": "name: analytics\n",
	})
	statePath := filepath.Join(dir, "state.db")

	_, err := execute(t, "build", filepath.Join(dir, "main.yaml"),
		"--dry-run", "--allow-root", dir, "--state", statePath)
	require.NoError(t, err)

	out, err := execute(t, "runs", "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "main.yaml")
}

func TestBuildReportsCycle(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.yaml": "name: a\nattachments:\n  - config: b.yaml\n    alias: b\n",
		"b.yaml": "name: b\nattachments:\n  - config: a.yaml\n    alias: a\n",
	})
	statePath := filepath.Join(dir, "state.db")

	_, err := execute(t, "build", filepath.Join(dir, "a.yaml"),
		"--dry-run", "--allow-root", dir, "--state", statePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic attachment")
}

func TestBuildRejectsArtifactOutsideRoots(t *testing.T) {
	outside := t.TempDir()
	dir := writeFiles(t, map[string]string{
		"main.yaml": `
name: analytics
database: ` + filepath.Join(outside, "evil.duckdb") + `
`,
	})
	statePath := filepath.Join(dir, "state.db")

	_, err := execute(t, "build", filepath.Join(dir, "main.yaml"),
		"--dry-run", "--allow-root", dir, "--state", statePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact")
	assert.Contains(t, err.Error(), "outside allowed roots")
}

func TestBuildRejectsAttachedArtifactOutsideRoots(t *testing.T) {
	outside := t.TempDir()
	dir := writeFiles(t, map[string]string{
		"child.yaml": `
name: core
database: ` + filepath.Join(outside, "core.duckdb") + `
`,
		"main.yaml": `
name: analytics
attachments:
  - config: child.yaml
    alias: core
`,
	})
	statePath := filepath.Join(dir, "state.db")

	_, err := execute(t, "build", filepath.Join(dir, "main.yaml"),
		"--dry-run", "--allow-root", dir, "--state", statePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside allowed roots")
	assert.Contains(t, err.Error(), "child.yaml")
}

func TestBuildRejectsExportDestinationOutsideRoots(t *testing.T) {
	outside := t.TempDir()
	dir := writeFiles(t, map[string]string{
		"main.yaml": `
name: analytics
export:
  destination: ` + filepath.Join(outside, "out.duckdb") + `
`,
	})
	statePath := filepath.Join(dir, "state.db")

	_, err := execute(t, "build", filepath.Join(dir, "main.yaml"),
		"--dry-run", "--allow-root", dir, "--state", statePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export destination")
	assert.Contains(t, err.Error(), "outside allowed roots")
}

func TestBuildAllowsRemoteExportDestination(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.yaml": `
name: analytics
export:
  destination: https://lake.example.com/analytics.duckdb
`,
	})
	statePath := filepath.Join(dir, "state.db")

	out, err := execute(t, "build", filepath.Join(dir, "main.yaml"),
		"--dry-run", "--allow-root", dir, "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "CHECKPOINT")
}

func TestBuildOutputFlagNotConfined(t *testing.T) {
	outside := t.TempDir()
	dir := writeFiles(t, map[string]string{
		"main.yaml": "name: analytics\n",
	})
	statePath := filepath.Join(dir, "state.db")

	// --output is operator-supplied, not config content, so it may point
	// outside the allowed roots.
	_, err := execute(t, "build", filepath.Join(dir, "main.yaml"),
		"--dry-run", "--allow-root", dir, "--state", statePath,
		"--output", filepath.Join(outside, "main.duckdb"))
	require.NoError(t, err)
}

func TestGraphJSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"child.yaml": "name: core\n",
		"main.yaml":  "name: analytics\nattachments:\n  - config: child.yaml\n    alias: core\n",
	})

	out, err := execute(t, "graph", filepath.Join(dir, "main.yaml"),
		"--format", "json", "--allow-root", dir)
	require.NoError(t, err)

	assert.Contains(t, out, filepath.Join(dir, "child.yaml"))
	assert.Contains(t, out, `"alias": "core"`)
	assert.Contains(t, out, filepath.Join(dir, "core.duckdb"))
}

func TestGraphTable(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.yaml": "name: analytics\n",
	})

	out, err := execute(t, "graph", filepath.Join(dir, "main.yaml"), "--allow-root", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 1 catalogs")
	assert.Contains(t, out, "analytics.duckdb")
}

func TestRunsEmptyStore(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")
	out, err := execute(t, "runs", "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")
}
