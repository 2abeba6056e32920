package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mindweave/mindweave/core"
)

// entry is the internal representation persisted by InMemoryStore.
type entry struct {
	id       string
	content  string
	metadata map[string]any
}

// InMemoryStore is a naive process-local MemoryStore. It keeps append-only
// session scoped snippets and answers searches with a case-insensitive
// substring scan in insertion order, assigning a constant score of 1.0 to
// every hit. Suitable for tests and single-process deployments; swap for a
// semantic index when retrieval quality matters.
//
// Concurrency: protected by RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]entry // sessionID -> ordered snippets
}

// NewInMemoryStore creates a new in-memory memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]entry)}
}

// Store appends a new snippet generating a simple incremental id.
func (m *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("mem_%d", len(m.entries[sessionID]))
	m.entries[sessionID] = append(m.entries[sessionID], entry{id: id, content: content, metadata: metadata})
	return nil
}

// Search performs a case-insensitive substring match over stored snippets.
// Results keep insertion order, up to the provided limit.
func (m *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	results := make([]core.SearchResult, 0, limit)
	for _, e := range m.entries[sessionID] {
		if limit > 0 && len(results) >= limit {
			break
		}
		if q == "" || strings.Contains(strings.ToLower(e.content), q) {
			md := make(map[string]any, len(e.metadata))
			for k, v := range e.metadata {
				md[k] = v
			}
			results = append(results, core.SearchResult{ID: e.id, Content: e.content, Score: 1.0, Metadata: md})
		}
	}
	return results, nil
}

// Delete removes a stored snippet by id.
func (m *InMemoryStore) Delete(sessionID string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.entries[sessionID]
	if !ok {
		return fmt.Errorf("memory not found")
	}
	for i, e := range entries {
		if e.id == memoryID {
			m.entries[sessionID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memory not found")
}
