package history

import (
	"cmp"
	"slices"
	"sync"
)

// recordMap is the in-memory view shared by every backend. It tracks which
// ids changed since the last flush.
type recordMap struct {
	mu      sync.RWMutex
	records map[string]Record
	dirty   map[string]bool
}

func newRecordMap() *recordMap {
	return &recordMap{
		records: make(map[string]Record),
		dirty:   make(map[string]bool),
	}
}

func (m *recordMap) get(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if ok {
		r.FileDeps = slices.Clone(r.FileDeps)
	}
	return r, ok
}

func (m *recordMap) put(r Record) {
	r.FileDeps = slices.Clone(r.FileDeps)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.TaskID] = r
	m.dirty[r.TaskID] = true
}

func (m *recordMap) del(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return
	}
	delete(m.records, id)
	m.dirty[id] = true
}

// load replaces the contents without marking anything dirty.
func (m *recordMap) load(records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.TaskID] = r
	}
}

// pending returns the changes since the last commit: records to upsert and
// ids to delete.
func (m *recordMap) pending() (upserts []Record, deletes []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id := range m.dirty {
		if r, ok := m.records[id]; ok {
			upserts = append(upserts, r)
		} else {
			deletes = append(deletes, id)
		}
	}
	slices.SortFunc(upserts, byTaskID)
	slices.Sort(deletes)
	return upserts, deletes
}

func (m *recordMap) snapshot() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	slices.SortFunc(out, byTaskID)
	return out
}

// commit clears the dirty marks of flushed ids.
func (m *recordMap) commit(upserts []Record, deletes []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range upserts {
		delete(m.dirty, r.TaskID)
	}
	for _, id := range deletes {
		delete(m.dirty, id)
	}
}

func (m *recordMap) hasPending() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dirty) > 0
}

func byTaskID(a, b Record) int { return cmp.Compare(a.TaskID, b.TaskID) }
