package core

// RecordStore persists the per-session graph record. Implementations rewrite
// the full record on every Save; durability is best-effort from the caller's
// perspective; in-memory graph state stays authoritative when Save fails.
type RecordStore interface {
	Save(sessionID string, rec Record) error
	// Load returns the stored record and whether one existed.
	Load(sessionID string) (Record, bool, error)
}

// SearchResult is one hit returned by a MemoryStore search.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MemoryStore defines persistence + retrieval for conversational memory
// snippets, session scoped. The pipeline ingests extracted entities into it
// from a supervised background task; reply generation may search it.
type MemoryStore interface {
	Store(sessionID string, content string, metadata map[string]any) error
	Search(sessionID string, query string, limit int) ([]SearchResult, error)
	Delete(sessionID string, memoryID string) error
}
