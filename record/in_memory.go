package record

import (
	"sync"

	"github.com/mindweave/mindweave/core"
)

// InMemoryStore is a volatile RecordStore keeping full graph records in a
// process local map. Suited to tests and demos. Records are deep-copied on
// save and load so callers cannot mutate stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]core.Record
}

// NewInMemoryStore returns an empty in-memory record store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]core.Record)}
}

// Save implements core.RecordStore.
func (s *InMemoryStore) Save(sessionID string, rec core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = copyRecord(rec)
	return nil
}

// Load implements core.RecordStore.
func (s *InMemoryStore) Load(sessionID string) (core.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return core.Record{}, false, nil
	}
	return copyRecord(rec), true, nil
}

func copyRecord(rec core.Record) core.Record {
	cp := core.Record{
		Nodes:   make([]core.Node, len(rec.Nodes)),
		Edges:   make([]core.Edge, len(rec.Edges)),
		History: make([]core.HistoryEntry, len(rec.History)),
		Turn:    rec.Turn,
	}
	copy(cp.Nodes, rec.Nodes)
	copy(cp.Edges, rec.Edges)
	copy(cp.History, rec.History)
	return cp
}
