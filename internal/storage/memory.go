package storage

import "sync"

// MemoryStore is an in-process Store with mutation broadcast. It backs
// session-scoped state and is the default for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string]string
	watchers map[string]map[int]WatchFunc
	nextID   int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]string),
		watchers: make(map[string]map[int]WatchFunc),
	}
}

// Get returns the value under key
func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	return value, ok
}

// Set stores value under key and notifies watchers
func (m *MemoryStore) Set(key, value string) {
	m.mu.Lock()
	m.values[key] = value
	fns := m.watchersFor(key)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(value, true)
	}
}

// Delete removes key and notifies watchers. Deleting a missing key is a
// no-op.
func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	_, existed := m.values[key]
	delete(m.values, key)
	var fns []WatchFunc
	if existed {
		fns = m.watchersFor(key)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn("", false)
	}
}

// Keys returns all stored keys
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.values))
	for key := range m.values {
		keys = append(keys, key)
	}
	return keys
}

// Watch registers fn for mutations of key and returns a cancel function
func (m *MemoryStore) Watch(key string, fn WatchFunc) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watchers[key] == nil {
		m.watchers[key] = make(map[int]WatchFunc)
	}
	id := m.nextID
	m.nextID++
	m.watchers[key][id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers[key], id)
	}
}

// watchersFor snapshots the watcher list for key. Callers must hold mu.
func (m *MemoryStore) watchersFor(key string) []WatchFunc {
	fns := make([]WatchFunc, 0, len(m.watchers[key]))
	for _, fn := range m.watchers[key] {
		fns = append(fns, fn)
	}
	return fns
}

// MemoryScoper hands out independent MemoryStores per scope identifier
type MemoryScoper struct {
	mu     sync.Mutex
	scopes map[string]*MemoryStore
}

// NewMemoryScoper creates an empty scoper
func NewMemoryScoper() *MemoryScoper {
	return &MemoryScoper{scopes: make(map[string]*MemoryStore)}
}

// Scope returns the store for id, creating it on first use
func (s *MemoryScoper) Scope(id string) Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, ok := s.scopes[id]
	if !ok {
		store = NewMemoryStore()
		s.scopes[id] = store
	}
	return store
}

// Drop discards the store for id, if any
func (s *MemoryScoper) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes, id)
}
