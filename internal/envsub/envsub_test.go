package envsub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLookup(env map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestExpand(t *testing.T) {
	i := NewWithLookup(testLookup(map[string]string{
		"AWS_REGION": "us-east-1",
		"BUCKET":     "data-lake",
		"EMPTY":      "",
	}))

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no tokens", "plain string", "plain string"},
		{"single token", "${env:AWS_REGION}", "us-east-1"},
		{"embedded token", "s3://${env:BUCKET}/raw", "s3://data-lake/raw"},
		{"multiple tokens", "${env:BUCKET}-${env:AWS_REGION}", "data-lake-us-east-1"},
		{"empty value ok", "x${env:EMPTY}y", "xy"},
		{"plain dollar untouched", "$BUCKET ${BUCKET}", "$BUCKET ${BUCKET}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := i.Expand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_MissingVariable(t *testing.T) {
	i := NewWithLookup(testLookup(nil))

	_, err := i.Expand("prefix-${env:MISSING_VAR}")
	require.Error(t, err)

	var notSet *NotSetError
	require.True(t, errors.As(err, &notSet))
	assert.Equal(t, "MISSING_VAR", notSet.Name)
}

func TestExpand_InvalidName(t *testing.T) {
	i := NewWithLookup(testLookup(map[string]string{"OK": "v"}))

	for _, in := range []string{
		"${env:1BAD}",
		"${env:has-dash}",
		"${env:}",
		"${env:with space}",
	} {
		_, err := i.Expand(in)
		require.Error(t, err, "input %q", in)

		var invalid *InvalidNameError
		assert.True(t, errors.As(err, &invalid), "input %q: got %T", in, err)
	}
}

func TestExpand_NoRecursiveInterpolation(t *testing.T) {
	// A value containing an ${env:...} token must be substituted verbatim,
	// not resolved again.
	i := NewWithLookup(testLookup(map[string]string{
		"OUTER": "${env:INNER}",
		"INNER": "should-not-appear",
	}))

	got, err := i.Expand("${env:OUTER}")
	require.NoError(t, err)
	assert.Equal(t, "${env:INNER}", got)
}

func TestApply(t *testing.T) {
	i := NewWithLookup(testLookup(map[string]string{
		"REGION": "eu-west-1",
		"KEY":    "abc123",
	}))

	tree := map[string]any{
		"name": "analytics",
		"secrets": []any{
			map[string]any{
				"type":   "s3",
				"region": "${env:REGION}",
				"key_id": "${env:KEY}",
			},
		},
		"count":   3,
		"enabled": true,
	}

	got, err := i.Apply(tree)
	require.NoError(t, err)

	secret := got["secrets"].([]any)[0].(map[string]any)
	assert.Equal(t, "eu-west-1", secret["region"])
	assert.Equal(t, "abc123", secret["key_id"])
	assert.Equal(t, 3, got["count"])
	assert.Equal(t, true, got["enabled"])

	// Input tree untouched
	orig := tree["secrets"].([]any)[0].(map[string]any)
	assert.Equal(t, "${env:REGION}", orig["region"])
}

func TestApply_ErrorPropagates(t *testing.T) {
	i := NewWithLookup(testLookup(nil))

	_, err := i.Apply(map[string]any{
		"nested": map[string]any{
			"deep": []any{"${env:NOPE}"},
		},
	})
	var notSet *NotSetError
	require.True(t, errors.As(err, &notSet))
	assert.Equal(t, "NOPE", notSet.Name)
}
