// Package snapshot stores the canonical payload of each successfully pushed
// configuration, addressed by its fingerprint. The store lets status
// reporting and conflict investigation show what was last pushed without a
// remote read. Losing it is harmless; it is rebuilt on the next sync.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bianoble/convai/internal/fingerprint"
)

// Store is a fingerprint-addressed payload store.
type Store struct {
	dir string
}

// New creates a Store at the given directory, creating it if necessary.
func New(dir string) (*Store, error) {
	objDir := filepath.Join(dir, "objects")
	if err := os.MkdirAll(objDir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory %s: %w", objDir, err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the default snapshot directory.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache/convai.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "convai")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return filepath.Join(os.TempDir(), "convai-snapshots")
		}
		return filepath.Join("/tmp", "convai-snapshots")
	}
	return filepath.Join(home, ".cache", "convai")
}

// Put stores a canonical payload under its fingerprint. Storing the same
// payload twice is a no-op.
func (s *Store) Put(hash string, payload []byte) error {
	path := s.objectPath(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".convai-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot %s: %w", hash, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot %s: %w", hash, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storing snapshot %s: %w", hash, err)
	}
	return nil
}

// Get retrieves a payload by fingerprint. Returns nil, false if absent.
// A stored payload whose content no longer matches its fingerprint is
// corruption and is reported as an error.
func (s *Store) Get(hash string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.objectPath(hash))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot %s: %w", hash, err)
	}

	if actual := fingerprint.SumBytes(data); actual != hash {
		return nil, false, fmt.Errorf("snapshot %s is corrupt (content hashes to %s)", hash, actual)
	}
	return data, true, nil
}

// Has reports whether a payload for the fingerprint exists and is intact.
func (s *Store) Has(hash string) bool {
	_, ok, err := s.Get(hash)
	return err == nil && ok
}

func (s *Store) objectPath(hash string) string {
	return filepath.Join(s.dir, "objects", hash)
}
