// Package collection keeps the per-tenant in-memory copies of master-data tables.
package collection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/agencydesk/mdconsole/pkg/model"
)

var ErrCrossTenant = errors.New("record belongs to another company")

type entry struct {
	records []model.Record
	index   map[int64]int
	loaded  bool
	stale   bool
}

func newEntry() *entry {
	return &entry{index: make(map[int64]int)}
}

func (e *entry) reindex() {
	e.index = make(map[int64]int, len(e.records))
	for i, record := range e.records {
		e.index[record.ID] = i
	}
}

// Store holds one tenant's collections. Records whose comp_id differs from the
// store's company are never admitted.
type Store struct {
	compID int64

	mu   sync.RWMutex
	cols map[model.EntityType]*entry
}

func NewStore(compID int64) *Store {
	return &Store{compID: compID, cols: make(map[model.EntityType]*entry)}
}

func (s *Store) CompID() int64 {
	return s.compID
}

func (s *Store) entryLocked(entityType model.EntityType) *entry {
	e, ok := s.cols[entityType]
	if !ok {
		e = newEntry()
		s.cols[entityType] = e
	}
	return e
}

// Replace swaps in a freshly fetched collection and returns how many records were
// dropped for belonging to another company.
func (s *Store) Replace(entityType model.EntityType, records []model.Record) int {
	admitted := make([]model.Record, 0, len(records))
	dropped := 0
	for _, record := range records {
		if record.CompID != s.compID {
			dropped++
			continue
		}
		admitted = append(admitted, record.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(entityType)
	e.records = admitted
	e.reindex()
	e.loaded = true
	e.stale = false
	return dropped
}

// Merge replaces the record with the same id, or appends it.
func (s *Store) Merge(entityType model.EntityType, record model.Record) error {
	if record.CompID != s.compID {
		return fmt.Errorf("%w: %s %d has comp_id %d", ErrCrossTenant, entityType, record.ID, record.CompID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(entityType)
	if idx, ok := e.index[record.ID]; ok {
		e.records[idx] = record.Clone()
		return nil
	}
	e.records = append(e.records, record.Clone())
	e.index[record.ID] = len(e.records) - 1
	return nil
}

func (s *Store) Remove(entityType model.EntityType, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cols[entityType]
	if !ok {
		return false
	}
	idx, ok := e.index[id]
	if !ok {
		return false
	}
	e.records = append(e.records[:idx], e.records[idx+1:]...)
	e.reindex()
	return true
}

// SetStatus flips a record's status in place and returns the previous value.
func (s *Store) SetStatus(entityType model.EntityType, id int64, status model.Status) (model.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cols[entityType]
	if !ok {
		return 0, false
	}
	idx, ok := e.index[id]
	if !ok {
		return 0, false
	}
	prev := e.records[idx].Status
	e.records[idx].Status = status
	return prev, true
}

// Records returns a copy of the collection in server order.
func (s *Store) Records(entityType model.EntityType) []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.cols[entityType]
	if !ok {
		return nil
	}
	out := make([]model.Record, len(e.records))
	copy(out, e.records)
	return out
}

func (s *Store) Get(entityType model.EntityType, id int64) (model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.cols[entityType]
	if !ok {
		return model.Record{}, false
	}
	idx, ok := e.index[id]
	if !ok {
		return model.Record{}, false
	}
	return e.records[idx], true
}

// Fresh reports whether the collection is loaded and not marked stale.
func (s *Store) Fresh(entityType model.EntityType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.cols[entityType]
	return ok && e.loaded && !e.stale
}

func (s *Store) MarkStale(types ...model.EntityType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range types {
		if e, ok := s.cols[t]; ok {
			e.stale = true
		}
	}
}
