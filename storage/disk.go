// Package storage keeps uploaded project files on the local disk.
package storage

import (
	"collab-live/errors"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DiskBlobStore writes blobs under a root directory. Keys are slash
// separated and may not escape the root.
type DiskBlobStore struct {
	root    string
	baseURL string
	log     *slog.Logger
}

func NewDiskBlobStore(root, baseURL string, log *slog.Logger) (*DiskBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskBlobStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/"), log: log}, nil
}

func (s *DiskBlobStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: blob key %q", errors.ErrInvalidInput, key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes the blob through a temporary file renamed into place, so a
// reader never sees a partial blob.
func (s *DiskBlobStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return 0, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	s.log.Debug("Blob stored", "key", key, "bytes", n)
	return n, nil
}

func (s *DiskBlobStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.ErrFileNotFound
	}
	return f, err
}

// Delete is idempotent.
func (s *DiskBlobStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL is the public address the REST surface serves the blob from.
func (s *DiskBlobStore) URL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// contextReader stops a copy once the context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
