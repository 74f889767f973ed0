package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDataDir returns the per-user directory syncmesh uses when
// --dir is not given: the secret key, blob store, and config document
// all live under it.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv("SYNCMESH_DATA_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(base, ".local", "share", "syncmesh"), nil
}
