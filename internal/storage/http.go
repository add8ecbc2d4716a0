package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTP is a Store backed by an HTTP(S) endpoint. Reads are GETs, existence
// checks are HEADs, writes are PUTs. Every request carries the configured
// timeout; a zero timeout is not a valid state and is rejected up front.
type HTTP struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTP creates an HTTP store with the given per-request timeout.
func NewHTTP(timeout time.Duration) (*HTTP, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("storage: http timeout must be positive, got %v", timeout)
	}
	return &HTTP{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}, nil
}

// Read fetches ref with a GET request.
func (h *HTTP) Read(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: build request for %q: %w", ref, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: fetch %q: %w", ref, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{Ref: ref}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("storage: fetch %q: HTTP %d", ref, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read body of %q: %w", ref, err)
	}
	return data, nil
}

// Exists checks ref with a HEAD request.
func (h *HTTP) Exists(ctx context.Context, ref string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, ref, nil)
	if err != nil {
		return false, fmt.Errorf("storage: build request for %q: %w", ref, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("storage: head %q: %w", ref, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("storage: head %q: HTTP %d", ref, resp.StatusCode)
	}
	return true, nil
}

// Write streams r to ref with a PUT request.
func (h *HTTP) Write(ctx context.Context, ref string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ref, r)
	if err != nil {
		return fmt.Errorf("storage: build request for %q: %w", ref, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage: put %q: %w", ref, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("storage: put %q: HTTP %d", ref, resp.StatusCode)
	}
	return nil
}

var _ Store = (*HTTP)(nil)
