package cache

import (
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// SchemaVersion is bumped whenever a cached artifact's layout changes, so old
// blobs are recomputed instead of silently misread.
const SchemaVersion = 1

// Fingerprint identifies the model and schema an artifact was computed with.
// A cached blob whose fingerprint does not match the running configuration is
// treated as absent and recomputed.
type Fingerprint struct {
	SchemaVersion int
	Embedder      string
	// Policy names derivation parameters beyond the model for artifacts
	// whose content depends on them. Empty when none apply.
	Policy string
}

type envelope struct {
	Fingerprint Fingerprint
}

// Store loads and saves derived artifacts as gob blobs at fixed paths.
type Store struct {
	logger *log.Logger
}

// NewStore creates a new artifact store.
func NewStore(logger *log.Logger) *Store {
	return &Store{logger: logger}
}

// Load decodes the artifact at path into v and reports whether it was usable.
// A missing file, an undecodable blob or a fingerprint mismatch all report
// false without error: the caller recomputes. Only unexpected I/O failures
// return an error.
func (s *Store) Load(path string, fp Fingerprint, v any) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open cache %s: %w", path, err)
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)

	var header envelope
	if err := decoder.Decode(&header); err != nil {
		s.logger.Printf("Cache %s is unreadable, recomputing: %v", path, err)
		return false, nil
	}
	if header.Fingerprint != fp {
		s.logger.Printf("Cache %s was built with %+v, want %+v, recomputing", path, header.Fingerprint, fp)
		return false, nil
	}

	if err := decoder.Decode(v); err != nil {
		s.logger.Printf("Cache %s payload is corrupt, recomputing: %v", path, err)
		return false, nil
	}

	return true, nil
}

// Save writes v to path as a fingerprinted gob blob. The write goes through a
// temp file and a rename, so a concurrent reader never observes a torn blob.
func (s *Store) Save(path string, fp Fingerprint, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	encoder := gob.NewEncoder(tmp)
	if err := encoder.Encode(envelope{Fingerprint: fp}); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode cache header: %w", err)
	}
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush cache file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish cache %s: %w", path, err)
	}

	return nil
}
