package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"https://example.com/cfg.yaml", true},
		{"http://internal/cfg.yaml", true},
		{"s3://bucket/cfg.yaml", true},
		{"./relative/cfg.yaml", false},
		{"/abs/path/cfg.yaml", false},
		{"cfg.yaml", false},
		{`C:\configs\cfg.yaml`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRemote(tt.ref), "ref %q", tt.ref)
	}
}

func TestLocal_ReadExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))

	l := NewLocal()
	ctx := context.Background()

	data, err := l.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "name: x\n", string(data))

	ok, err := l.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Exists(ctx, filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.Read(ctx, filepath.Join(dir, "missing.yaml"))
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestLocal_Write(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out", "artifact.duckdb")

	l := NewLocal()
	require.NoError(t, l.Write(context.Background(), dest, bytes.NewReader([]byte("payload"))))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// No leftover temp files
	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHTTP_Read(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cfg.yaml":
			_, _ = w.Write([]byte("views: []\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h, err := NewHTTP(5 * time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	data, err := h.Read(ctx, srv.URL+"/cfg.yaml")
	require.NoError(t, err)
	assert.Equal(t, "views: []\n", string(data))

	_, err = h.Read(ctx, srv.URL+"/missing.yaml")
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestHTTP_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("too late"))
	}))
	defer srv.Close()

	h, err := NewHTTP(50 * time.Millisecond)
	require.NoError(t, err)

	_, err = h.Read(context.Background(), srv.URL+"/slow.yaml")
	require.Error(t, err)
}

func TestHTTP_ZeroTimeoutRejected(t *testing.T) {
	_, err := NewHTTP(0)
	require.Error(t, err)
	_, err = NewHTTP(-time.Second)
	require.Error(t, err)
}
