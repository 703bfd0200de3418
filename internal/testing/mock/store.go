package mock

import (
	"sync"

	"fleetsync/internal/fleet"
)

// MemoryStore keeps the fleet document in memory. Load and Save copy the
// document so callers cannot alias the stored state.
type MemoryStore struct {
	mu      sync.Mutex
	doc     *fleet.Document
	loads   int
	saves   int
	saveErr error
}

// NewMemoryStore creates a store holding a copy of doc.
func NewMemoryStore(doc *fleet.Document) *MemoryStore {
	if doc == nil {
		doc = &fleet.Document{}
	}
	return &MemoryStore{doc: doc.Clone()}
}

// Load implements fleet.Store.
func (m *MemoryStore) Load() (*fleet.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return m.doc.Clone(), nil
}

// Save implements fleet.Store. A configured save error is wrapped in a
// *fleet.PersistenceError like the file store does.
func (m *MemoryStore) Save(doc *fleet.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return &fleet.PersistenceError{Path: "memory", Op: "save", Err: m.saveErr}
	}
	m.saves++
	m.doc = doc.Clone()
	return nil
}

// FailSaves makes every later Save return err; nil restores saving.
func (m *MemoryStore) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves returns the number of successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Loads returns the number of loads.
func (m *MemoryStore) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Document returns a copy of the stored document.
func (m *MemoryStore) Document() *fleet.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}
