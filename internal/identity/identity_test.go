package identity

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadOrCreate_GeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "secret_key")

	id, err := LoadOrCreate(keyPath)
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if id.NodeID.IsZero() {
		t.Fatal("LoadOrCreate() returned zero NodeID")
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("key file not created: %v", err)
	}
	if info.Size() != SecretKeySize {
		t.Fatalf("key file size = %d, want %d", info.Size(), SecretKeySize)
	}
	if runtime.GOOS != "windows" {
		if mode := info.Mode().Perm(); mode != 0600 {
			t.Errorf("key file permissions = %04o, want 0600", mode)
		}
	}
}

func TestLoadOrCreate_PersistsAcrossColdStarts(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "secret_key")

	first, err := LoadOrCreate(keyPath)
	if err != nil {
		t.Fatalf("first LoadOrCreate() error = %v", err)
	}

	second, err := LoadOrCreate(keyPath)
	if err != nil {
		t.Fatalf("second LoadOrCreate() error = %v", err)
	}

	if first.NodeID != second.NodeID {
		t.Fatalf("NodeID changed across cold starts: %s != %s", first.NodeID, second.NodeID)
	}
}

func TestLoadOrCreate_BadSizeFails(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "secret_key")

	if err := os.WriteFile(keyPath, make([]byte, 31), 0600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	_, err := LoadOrCreate(keyPath)
	if err == nil {
		t.Fatal("LoadOrCreate() with 31-byte key file: want error, got nil")
	}
	var initErr *InitializationError
	if !errors.As(err, &initErr) {
		t.Fatalf("LoadOrCreate() error = %v, want *InitializationError", err)
	}
}

func TestNodeIDFromBytes_WrongLength(t *testing.T) {
	if _, err := NodeIDFromBytes(make([]byte, 10)); err == nil {
		t.Fatal("NodeIDFromBytes() with wrong length: want error, got nil")
	}
}
