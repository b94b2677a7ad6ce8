// Package storage keeps uploaded references and generated images on local
// disk under keys such as "uploads/<user>/<id>.png".
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"stylegen/internal/domain"
)

// ErrInvalidKey is returned for empty keys and keys that escape the root.
var ErrInvalidKey = errors.New("storage: invalid key")

type FileStore struct {
	root    string
	baseURL string
}

// NewFileStore creates root if needed. baseURL is the public prefix the
// router serves root under.
func NewFileStore(root, baseURL string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &FileStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FileStore) BasePath() string { return s.root }

// Write stores data under key and returns the normalized key. The bytes go
// to a temp file in the target directory first so readers never observe a
// partially written image.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	key, err := s.resolve(ctx, key)
	if err != nil {
		return "", err
	}
	dst := s.file(key)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(dir, ".part-*")
	if err != nil {
		return "", fmt.Errorf("storage: write %s: %w", key, err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storage: write %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storage: write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storage: write %s: %w", key, err)
	}
	return key, nil
}

// Read maps a missing file to domain.ErrNotFound.
func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	key, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.file(key))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Delete is idempotent.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	key, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}
	if err := os.Remove(s.file(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL is the inverse of URL. Query strings and fragments are ignored;
// URLs outside baseURL are not ours.
func (s *FileStore) KeyFromURL(raw string) (string, bool) {
	if s.baseURL == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(raw, s.baseURL+"/")
	if !ok {
		return "", false
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}
	key, err := cleanKey(rest)
	return key, err == nil
}

func (s *FileStore) resolve(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return cleanKey(key)
}

func (s *FileStore) file(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// cleanKey turns key into a slash-separated relative path inside the root.
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), `\`, "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	// path.Clean on a rooted path drops leading "..", so compare against
	// the unrooted form to catch escapes.
	if cleaned == "" || path.Clean(strings.TrimLeft(key, "/")) != cleaned {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
