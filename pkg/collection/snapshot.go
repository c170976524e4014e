package collection

import "github.com/agencydesk/mdconsole/pkg/model"

type snapshotEntry struct {
	records []model.Record
	present bool
	loaded  bool
}

// Snapshot is a point-in-time copy of some collections, used to undo client-side
// changes when authoritative state cannot be fetched.
type Snapshot struct {
	entries map[model.EntityType]snapshotEntry
}

func (s Snapshot) Types() []model.EntityType {
	out := make([]model.EntityType, 0, len(s.entries))
	for t := range s.entries {
		out = append(out, t)
	}
	return out
}

// SetStatus changes a record's status inside the snapshot only, so that a restore
// lands on the status the record had before an optimistic flip.
func (s Snapshot) SetStatus(entityType model.EntityType, id int64, status model.Status) bool {
	e, ok := s.entries[entityType]
	if !ok {
		return false
	}
	for i := range e.records {
		if e.records[i].ID == id {
			e.records[i].Status = status
			return true
		}
	}
	return false
}

func (s *Store) Snapshot(types ...model.EntityType) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{entries: make(map[model.EntityType]snapshotEntry, len(types))}
	for _, t := range types {
		e, ok := s.cols[t]
		if !ok {
			snap.entries[t] = snapshotEntry{}
			continue
		}
		records := make([]model.Record, len(e.records))
		for i, record := range e.records {
			records[i] = record.Clone()
		}
		snap.entries[t] = snapshotEntry{records: records, present: true, loaded: e.loaded}
	}
	return snap
}

func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for t, saved := range snap.entries {
		if !saved.present {
			delete(s.cols, t)
			continue
		}
		e := s.entryLocked(t)
		e.records = saved.records
		e.loaded = saved.loaded
		e.reindex()
	}
}
