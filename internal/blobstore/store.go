// Package blobstore is the content-addressed blob store: a flat,
// hash-named directory on disk plus a libp2p stream protocol for
// fetching a blob from the peer that created its ticket.
package blobstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// dirName is the subdirectory of the data directory blobs live under.
const dirName = "blob_data"

// Store is a flat, content-addressed blob directory: every blob is
// stored as a single file named by its hex-encoded hash.
type Store struct {
	root string
}

// Open returns a Store rooted at <dataDir>/blob_data, creating the
// directory if it does not exist.
func Open(dataDir string) (*Store, error) {
	root := filepath.Join(dataDir, dirName)
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, &IoError{Op: "create blob dir", Err: err}
	}
	return &Store{root: root}, nil
}

func (s *Store) path(h ContentHash) string {
	return filepath.Join(s.root, h.String())
}

// Has reports whether a blob with hash h is already stored locally.
func (s *Store) Has(h ContentHash) bool {
	_, err := os.Stat(s.path(h))
	return err == nil
}

// Import hashes data, and — unless a blob with that hash already
// exists — writes it to the store via a temp file + atomic rename.
// Returns the blob's hash regardless of whether it was newly written.
func (s *Store) Import(data []byte) (ContentHash, error) {
	h, err := HashReader(bytes.NewReader(data))
	if err != nil {
		return ContentHash{}, &IoError{Op: "hash data", Err: err}
	}
	if s.Has(h) {
		return h, nil
	}

	tmp, err := os.CreateTemp(s.root, "import-*.tmp")
	if err != nil {
		return ContentHash{}, &IoError{Op: "create temp file", Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ContentHash{}, &IoError{Op: "write temp file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ContentHash{}, &IoError{Op: "close temp file", Err: err}
	}
	if err := os.Rename(tmpPath, s.path(h)); err != nil {
		os.Remove(tmpPath)
		return ContentHash{}, &IoError{Op: "rename into place", Err: err}
	}
	return h, nil
}

// ImportFile reads and imports a file from the local filesystem.
func (s *Store) ImportFile(path string) (ContentHash, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ContentHash{}, &IoError{Op: "read source file", Err: err}
	}
	return s.Import(data)
}

// Export copies the blob named by h to dest, creating dest's parent
// directory if needed.
func (s *Store) Export(h ContentHash, dest string) error {
	data, err := s.Read(h)
	if err != nil {
		return err
	}
	if parent := filepath.Dir(dest); parent != "." {
		if err := os.MkdirAll(parent, 0700); err != nil {
			return &IoError{Op: "create destination dir", Err: err}
		}
	}
	if err := os.WriteFile(dest, data, 0600); err != nil {
		return &IoError{Op: "write destination file", Err: err}
	}
	return nil
}

// Read returns the full contents of the blob named by h.
func (s *Store) Read(h ContentHash) ([]byte, error) {
	data, err := os.ReadFile(s.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &IoError{Op: "read blob", Err: fmt.Errorf("blob %s not found", h)}
		}
		return nil, &IoError{Op: "read blob", Err: err}
	}
	return data, nil
}

// ReadStream opens the blob named by h for streaming, e.g. to serve it
// over a transfer stream without buffering the whole file.
func (s *Store) ReadStream(h ContentHash) (io.ReadCloser, error) {
	f, err := os.Open(s.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &IoError{Op: "open blob", Err: fmt.Errorf("blob %s not found", h)}
		}
		return nil, &IoError{Op: "open blob", Err: err}
	}
	return f, nil
}
