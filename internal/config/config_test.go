package config

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTree() map[string]any {
	return map[string]any{
		"name": "analytics",
		"extensions": []any{"httpfs"},
		"settings": map[string]any{
			"memory_limit": "2GB",
			"threads":      4,
		},
		"attachments": []any{
			map[string]any{"config": "./warehouse.yaml", "alias": "warehouse"},
		},
		"secrets": []any{
			map[string]any{
				"name": "lake_s3",
				"kind": "s3",
				"options": map[string]any{
					"region": "us-east-1",
					"key_id": "AKIA123",
				},
			},
		},
		"views": []any{
			map[string]any{
				"name": "orders",
				"source": map[string]any{
					"kind":   "file",
					"path":   "s3://lake/orders/*.parquet",
					"format": "parquet",
				},
			},
		},
	}
}

func TestDecode_Valid(t *testing.T) {
	cat, err := Decode(validTree())
	require.NoError(t, err)

	assert.Equal(t, "analytics", cat.Name)
	assert.Equal(t, []string{"httpfs"}, cat.Extensions)
	require.Len(t, cat.Attachments, 1)
	assert.True(t, cat.Attachments[0].IsReadOnly(), "attachments default to read-only")
	require.Len(t, cat.Secrets, 1)
	assert.Equal(t, SecretS3, cat.Secrets[0].Kind)
	require.Len(t, cat.Views, 1)
	assert.Equal(t, SourceFile, cat.Views[0].Source.Kind)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		substr string
	}{
		{
			"missing name",
			func(m map[string]any) { delete(m, "name") },
			"name is required",
		},
		{
			"duplicate view",
			func(m map[string]any) {
				m["views"] = append(m["views"].([]any), m["views"].([]any)[0])
			},
			"duplicate view",
		},
		{
			"duplicate alias",
			func(m map[string]any) {
				m["attachments"] = append(m["attachments"].([]any), m["attachments"].([]any)[0])
			},
			"duplicate attachment alias",
		},
		{
			"duplicate secret",
			func(m map[string]any) {
				m["secrets"] = append(m["secrets"].([]any), m["secrets"].([]any)[0])
			},
			"duplicate secret",
		},
		{
			"unknown secret kind",
			func(m map[string]any) {
				m["secrets"].([]any)[0].(map[string]any)["kind"] = "ftp"
			},
			"unknown secret kind",
		},
		{
			"nested option value",
			func(m map[string]any) {
				m["secrets"].([]any)[0].(map[string]any)["options"].(map[string]any)["scope"] = []any{"a", "b"}
			},
			"option values must be",
		},
		{
			"setting with map value",
			func(m map[string]any) {
				m["settings"].(map[string]any)["weird"] = map[string]any{"x": 1}
			},
			"option values must be",
		},
		{
			"view without source kind",
			func(m map[string]any) {
				m["views"].([]any)[0].(map[string]any)["source"] = map[string]any{}
			},
			"unknown source kind",
		},
		{
			"file source without path",
			func(m map[string]any) {
				m["views"].([]any)[0].(map[string]any)["source"] = map[string]any{"kind": "file"}
			},
			"requires a path",
		},
		{
			"bad file format",
			func(m map[string]any) {
				src := m["views"].([]any)[0].(map[string]any)["source"].(map[string]any)
				src["format"] = "xml"
			},
			"unknown file format",
		},
		{
			"attachment without alias",
			func(m map[string]any) {
				m["attachments"].([]any)[0].(map[string]any)["alias"] = ""
			},
			"alias is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := validTree()
			tt.mutate(tree)

			_, err := Decode(tree)
			require.Error(t, err)

			var valErr *ValidationError
			require.True(t, errors.As(err, &valErr), "got %T: %v", err, err)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestRedacted_LogValue(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(slog.NewTextHandler(&sb, nil))

	logger.Info("registering secret", "name", "lake_s3", "secret", Redacted("hunter2"))

	out := sb.String()
	assert.Contains(t, out, "[redacted]")
	assert.NotContains(t, out, "hunter2")
}

func TestSourceQuery(t *testing.T) {
	tree := validTree()
	tree["views"] = []any{
		map[string]any{
			"name":   "totals",
			"source": map[string]any{"kind": "query", "sql": "SELECT 1 AS n"},
		},
	}

	cat, err := Decode(tree)
	require.NoError(t, err)
	assert.Equal(t, SourceQuery, cat.Views[0].Source.Kind)
}
