package fleet

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"fleetsync/pkg/logging"
)

// Store loads and saves the fleet document.
type Store interface {
	Load() (*Document, error)
	Save(doc *Document) error
}

// FileStore persists the fleet document as a YAML file.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore creates a store for the document at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and validates the document. All failures are returned as
// *PersistenceError; schema violations wrap a *ValidationError.
func (s *FileStore) Load() (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &PersistenceError{Path: s.path, Op: "load", Err: err}
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, &PersistenceError{Path: s.path, Op: "load", Err: err}
	}

	logging.Debug("FleetStore", "Loaded %d nodes from %s", len(doc.Nodes), s.path)
	return doc, nil
}

// Save validates doc and replaces the file atomically (temp file + rename)
// so a crash never leaves a truncated document behind.
func (s *FileStore) Save(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return &PersistenceError{Path: s.path, Op: "save", Err: err}
	}

	data, err := Marshal(doc)
	if err != nil {
		return &PersistenceError{Path: s.path, Op: "save", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &PersistenceError{Path: s.path, Op: "save", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &PersistenceError{Path: s.path, Op: "save", Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return &PersistenceError{Path: s.path, Op: "save", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return &PersistenceError{Path: s.path, Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &PersistenceError{Path: s.path, Op: "save", Err: err}
	}

	// Keep the permissions of an existing document.
	if info, err := os.Stat(s.path); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	} else {
		_ = os.Chmod(tmpName, 0644)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return &PersistenceError{Path: s.path, Op: "save", Err: err}
	}

	logging.Info("FleetStore", "Saved %d nodes to %s", len(doc.Nodes), s.path)
	return nil
}

// Parse decodes and validates a YAML fleet document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fleet document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Marshal encodes the document as YAML with two-space indentation.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode fleet document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
