package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const jsonFormatVersion = 1

// JSONStore keeps the history in a single JSON file, rewritten atomically
// on Flush through a temporary file and rename.
type JSONStore struct {
	path    string
	records *recordMap
}

type jsonDocument struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Tasks     []Record  `json:"tasks"`
}

// NewJSONStore opens the history file at path. A missing file is an empty
// history; an unreadable or corrupt one is reported.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{path: path, records: newRecordMap()}
	if err := s.loadFromDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) Get(taskID string) (Record, bool) { return s.records.get(taskID) }
func (s *JSONStore) Put(rec Record)                   { s.records.put(rec) }
func (s *JSONStore) Delete(taskID string)             { s.records.del(taskID) }

// Flush rewrites the file when anything changed since the last flush.
func (s *JSONStore) Flush() error {
	if !s.records.hasPending() {
		return nil
	}
	upserts, deletes := s.records.pending()
	if err := s.saveToDisk(); err != nil {
		return err
	}
	s.records.commit(upserts, deletes)
	return nil
}

// Close flushes pending changes.
func (s *JSONStore) Close() error {
	return s.Flush()
}

func (s *JSONStore) loadFromDisk() error {
	// #nosec G304 -- path comes from the validated configuration.
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read history file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode history file %s: %w", s.path, err)
	}
	if doc.Version != jsonFormatVersion {
		return fmt.Errorf("history file %s has unsupported version %d", s.path, doc.Version)
	}
	s.records.load(doc.Tasks)
	return nil
}

func (s *JSONStore) saveToDisk() error {
	doc := jsonDocument{
		Version:   jsonFormatVersion,
		UpdatedAt: time.Now().UTC(),
		Tasks:     s.records.snapshot(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temporary history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
