// Package history persists what the staleness oracle needs to remember
// between invocations: which tasks completed successfully, with which
// dependency list and signature.
//
// Stores buffer changes in memory; Flush writes them out. All methods are
// safe for concurrent use.
package history

import (
	"slices"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/config"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

// Record is the last successful run of one task.
type Record struct {
	TaskID      string    `json:"task_id"`
	CompletedAt time.Time `json:"completed_at"`
	FileDeps    []string  `json:"file_deps,omitempty"`
	Signature   string    `json:"signature,omitempty"`
}

// SameDeps reports whether deps equals the recorded dependency list.
func (r Record) SameDeps(deps []string) bool {
	return slices.Equal(r.FileDeps, deps)
}

// Store is the run-history persistence.
type Store interface {
	Get(taskID string) (Record, bool)
	Put(rec Record)
	Delete(taskID string)
	// Flush persists buffered changes.
	Flush() error
	Close() error
}

// Open returns the store selected by cfg.
func Open(cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case config.HistorySQLite:
		return NewSQLiteStore(cfg.Path)
	case config.HistoryJSON, "":
		return NewJSONStore(cfg.Path)
	default:
		return nil, ferrors.ConfigError("unknown history backend").
			WithContext("backend", string(cfg.Backend)).Build()
	}
}

// Memory is a non-persistent Store, used when history must be ignored.
type Memory struct {
	records *recordMap
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: newRecordMap()}
}

func (m *Memory) Get(taskID string) (Record, bool) { return m.records.get(taskID) }
func (m *Memory) Put(rec Record)                   { m.records.put(rec) }
func (m *Memory) Delete(taskID string)             { m.records.del(taskID) }
func (m *Memory) Flush() error                     { return nil }
func (m *Memory) Close() error                     { return nil }
