// Package imagesrc resolves image references (data URIs, stored keys, and
// remote URLs) to raw bytes.
package imagesrc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxImageBytes bounds every fetched payload.
const MaxImageBytes = 25 << 20

var (
	ErrUnsupportedSource = errors.New("imagesrc: unsupported image reference")
	ErrTooLarge          = errors.New("imagesrc: image exceeds size limit")
)

// Store is the subset of storage.FileStore the fetcher reads from.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	KeyFromURL(raw string) (string, bool)
}

// Fetcher loads image bytes from any reference the service hands out.
type Fetcher struct {
	store  Store
	client *http.Client
}

// NewFetcher builds a Fetcher; timeout bounds remote downloads.
func NewFetcher(store Store, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{store: store, client: &http.Client{Timeout: timeout}}
}

// WithHTTPClient swaps the client used for remote downloads.
func (f *Fetcher) WithHTTPClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// Fetch resolves ref to bytes.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, ErrUnsupportedSource
	case strings.HasPrefix(ref, "data:"):
		return DecodeDataURI(ref)
	}
	if f.store != nil {
		if key, ok := f.store.KeyFromURL(ref); ok {
			return f.store.Read(ctx, key)
		}
		if key, ok := strings.CutPrefix(ref, "/static/"); ok {
			return f.store.Read(ctx, key)
		}
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return f.download(ctx, ref)
	}
	return nil, fmt.Errorf("%w: %.40q", ErrUnsupportedSource, ref)
}

// DataURI resolves ref and re-encodes it as a data URI. Local references are
// not reachable by the provider, so they are always inlined.
func (f *Fetcher) DataURI(ctx context.Context, ref, contentType string) (string, error) {
	if strings.HasPrefix(strings.TrimSpace(ref), "data:") {
		return strings.TrimSpace(ref), nil
	}
	data, err := f.Fetch(ctx, ref)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("imagesrc: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagesrc: download: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imagesrc: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("imagesrc: read body: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// DecodeDataURI decodes a base64 data URI.
func DecodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data uri", ErrUnsupportedSource)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: data uri is not base64", ErrUnsupportedSource)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes {
		return nil, ErrTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("imagesrc: decode data uri: %w", err)
	}
	return data, nil
}
