package userapi

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a namespace has no document under an id, or
// when a namespace holds no documents at all.
var ErrNotFound = errors.New("document not found")

// Store keeps raw JSON documents grouped by namespace. A namespace exists
// while it holds at least one document.
type Store interface {
	Get(namespace, id string) ([]byte, error)
	// Put stores doc and reports whether the id was new.
	Put(namespace, id string, doc []byte) (created bool, err error)
	Delete(namespace, id string) error
	// List returns every document of a namespace keyed by id.
	List(namespace string) (map[string][]byte, error)
	// Drop removes a namespace and reports how many documents it held.
	Drop(namespace string) (int, error)
	Namespaces() []string
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string][]byte
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{namespaces: make(map[string]map[string][]byte)}
}

// Get returns the document stored under namespace and id.
func (m *MemStore) Get(namespace, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.namespaces[namespace][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Put stores a copy of doc.
func (m *MemStore) Put(namespace, id string, doc []byte) (bool, error) {
	stored := append([]byte(nil), doc...)

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.namespaces[namespace] = ns
	}
	_, exists := ns[id]
	ns[id] = stored
	return !exists, nil
}

// Delete removes one document; an emptied namespace disappears with it.
func (m *MemStore) Delete(namespace, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns := m.namespaces[namespace]
	if _, ok := ns[id]; !ok {
		return ErrNotFound
	}
	delete(ns, id)
	if len(ns) == 0 {
		delete(m.namespaces, namespace)
	}
	return nil
}

// List returns a snapshot of a namespace. The map is the caller's to keep.
func (m *MemStore) List(namespace string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string][]byte, len(ns))
	for id, doc := range ns {
		out[id] = doc
	}
	return out, nil
}

// Drop removes a namespace with all its documents.
func (m *MemStore) Drop(namespace string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return 0, ErrNotFound
	}
	delete(m.namespaces, namespace)
	return len(ns), nil
}

// Namespaces returns the non-empty namespaces in sorted order.
func (m *MemStore) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.namespaces))
	for name := range m.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
