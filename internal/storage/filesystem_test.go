package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stylegen/internal/domain"
)

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"uploads/a.png":      "uploads/a.png",
		"/uploads//b.png":    "uploads/b.png",
		`uploads\c.png`:      "uploads/c.png",
		"uploads/../d.png":   "d.png",
		"./generated/e.webp": "generated/e.webp",
		"../etc/passwd":      "",
		"a/../../b":          "",
		"..":                 "",
		"  ":                 "",
	}
	for in, want := range cases {
		got, err := cleanKey(in)
		if want == "" {
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("cleanKey(%q) = %q, %v; want ErrInvalidKey", in, got, err)
			}
			continue
		}
		if err != nil || got != want {
			t.Errorf("cleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestFileStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewFileStore(root, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := store.Write(ctx, "/generated/j1/0.png", []byte("v1"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "generated/j1/0.png" {
		t.Fatalf("key = %q", key)
	}
	if _, err := store.Write(ctx, key, []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if data, err := store.Read(ctx, key); err != nil || string(data) != "v2" {
		t.Fatalf("Read = %q, %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "generated", "j1"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".part-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := store.Read(ctx, key); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Read after delete = %v", err)
	}
	if _, err := store.Write(ctx, "../escape.png", nil); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("escaping write = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.Read(cancelled, key); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled Read = %v", err)
	}
}

func TestURLMapping(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static/")
	if err != nil {
		t.Fatal(err)
	}
	url := store.URL("uploads/u1/ref.png")
	if url != "http://localhost:8080/static/uploads/u1/ref.png" {
		t.Fatalf("URL = %q", url)
	}
	cases := []struct {
		raw  string
		key  string
		ours bool
	}{
		{raw: url, key: "uploads/u1/ref.png", ours: true},
		{raw: url + "?v=3#top", key: "uploads/u1/ref.png", ours: true},
		{raw: "http://localhost:8080/static/uploads/my%20ref.png", key: "uploads/my ref.png", ours: true},
		{raw: "http://localhost:8080/static/../secret", ours: false},
		{raw: "https://elsewhere.example/x.png", ours: false},
	}
	for _, tc := range cases {
		key, ok := store.KeyFromURL(tc.raw)
		if ok != tc.ours || key != tc.key {
			t.Errorf("KeyFromURL(%q) = %q, %v; want %q, %v", tc.raw, key, ok, tc.key, tc.ours)
		}
	}
}
