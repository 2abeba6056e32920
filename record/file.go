package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mindweave/mindweave/core"
)

// FileStore persists one JSON file per session, rewritten in full on every
// Save. The full-snapshot overwrite keeps the record trivially consistent:
// there is no append-only log to compact or replay.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed record store rooted at dir. The
// directory is created lazily on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// Save implements core.RecordStore. The record is written to a temporary
// file and renamed so readers never observe a partial write.
func (s *FileStore) Save(sessionID string, rec core.Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tmp := s.path(sessionID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmp, s.path(sessionID)); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// Load implements core.RecordStore.
func (s *FileStore) Load(sessionID string) (core.Record, bool, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if os.IsNotExist(err) {
		return core.Record{}, false, nil
	}
	if err != nil {
		return core.Record{}, false, fmt.Errorf("read record: %w", err)
	}

	var rec core.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.Record{}, false, fmt.Errorf("decode record: %w", err)
	}
	return rec, true, nil
}
