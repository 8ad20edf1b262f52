package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sanctions-web/sanctions-web/internal/config"
	"github.com/sanctions-web/sanctions-web/internal/storage"
)

// newTestStorage creates a LocalStorage backed by a temporary directory
// seeded with files (path -> content).
func newTestStorage(t *testing.T, files map[string]string) *LocalStorage {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			t.Fatal("MkdirAll:", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			t.Fatal("WriteFile:", err)
		}
	}
	s, err := New(&config.LocalStorageConfig{BasePath: dir})
	if err != nil {
		t.Fatal("New:", err)
	}
	return s
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(&config.LocalStorageConfig{BasePath: filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Error("New() expected error for a missing base directory")
	}
}

func TestNew_FileInsteadOfDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(&config.LocalStorageConfig{BasePath: path}); err == nil {
		t.Error("New() expected error when base path is a file")
	}
}

func TestDownload(t *testing.T) {
	s := newTestStorage(t, map[string]string{"snapshots/index.json": `{"datasets":[]}`})

	rc, err := s.Download(context.Background(), "snapshots/index.json")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"datasets":[]}` {
		t.Errorf("Download() content = %q", got)
	}
}

func TestDownload_NotFound(t *testing.T) {
	s := newTestStorage(t, nil)

	_, err := s.Download(context.Background(), "nope.json")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download() error = %v, want storage.ErrNotFound", err)
	}
}

func TestDownload_PathStaysInsideBase(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := newTestStorage(t, nil)

	// "../" segments are clamped to the base directory, so this resolves to
	// a non-existent file inside it rather than the file next door.
	_, err := s.Download(context.Background(), "../../../../"+outside)
	if err == nil {
		t.Fatal("Download() escaped the base directory")
	}
}

func TestExists(t *testing.T) {
	s := newTestStorage(t, map[string]string{"index.json": "{}"})
	ctx := context.Background()

	ok, err := s.Exists(ctx, "index.json")
	if err != nil || !ok {
		t.Errorf("Exists(index.json) = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.Exists(ctx, "other.json")
	if err != nil || ok {
		t.Errorf("Exists(other.json) = %v, %v; want false, nil", ok, err)
	}
}

func TestGetMetadata(t *testing.T) {
	s := newTestStorage(t, map[string]string{"index.json": "hello"})

	meta, err := s.GetMetadata(context.Background(), "index.json")
	if err != nil {
		t.Fatalf("GetMetadata() error: %v", err)
	}
	if meta.Path != "index.json" {
		t.Errorf("Path = %q", meta.Path)
	}
	if meta.Size != 5 {
		t.Errorf("Size = %d, want 5", meta.Size)
	}
	if meta.Checksum != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("Checksum = %q", meta.Checksum)
	}
	if meta.LastModified.IsZero() {
		t.Error("LastModified is zero")
	}
}

func TestGetMetadata_NotFound(t *testing.T) {
	s := newTestStorage(t, nil)
	if _, err := s.GetMetadata(context.Background(), "missing.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetMetadata() error = %v, want storage.ErrNotFound", err)
	}
}
