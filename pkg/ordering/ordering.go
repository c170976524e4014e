// Package ordering keeps seq_no style ordering fields dense across sibling records.
package ordering

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agencydesk/mdconsole/pkg/model"
)

var ErrNotPermutation = errors.New("order must list every sibling exactly once")

// Change assigns Seq to record ID.
type Change struct {
	ID  int64
	Seq int64
}

// Siblings returns the records whose foreignKey equals parentID, sorted by orderField
// and then by id. An empty foreignKey selects every record.
func Siblings(records []model.Record, foreignKey string, parentID int64, orderField string) []model.Record {
	var out []model.Record
	for _, r := range records {
		if foreignKey != "" {
			fk, ok := r.Int64Field(foreignKey)
			if !ok || fk != parentID {
				continue
			}
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, _ := out[i].Int64Field(orderField)
		sj, _ := out[j].Int64Field(orderField)
		if si != sj {
			return si < sj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Next is the seq_no a newly inserted sibling receives.
func Next(siblings []model.Record) int64 {
	return int64(len(siblings))
}

// PlanReorder maps orderedIDs onto 0..N-1 and returns only the records whose current
// position differs.
func PlanReorder(siblings []model.Record, orderedIDs []int64, orderField string) ([]Change, error) {
	if len(orderedIDs) != len(siblings) {
		return nil, fmt.Errorf("%w: got %d ids for %d siblings", ErrNotPermutation, len(orderedIDs), len(siblings))
	}

	current := make(map[int64]int64, len(siblings))
	for _, r := range siblings {
		seq, ok := r.Int64Field(orderField)
		if !ok {
			seq = -1
		}
		current[r.ID] = seq
	}

	seen := make(map[int64]bool, len(orderedIDs))
	var changes []Change
	for pos, id := range orderedIDs {
		seq, ok := current[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d is not a sibling", ErrNotPermutation, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: %d listed twice", ErrNotPermutation, id)
		}
		seen[id] = true
		if seq != int64(pos) {
			changes = append(changes, Change{ID: id, Seq: int64(pos)})
		}
	}
	return changes, nil
}

// Compact renumbers siblings, already in display order, to 0..N-1.
func Compact(siblings []model.Record, orderField string) []Change {
	var changes []Change
	for pos, r := range siblings {
		if seq, ok := r.Int64Field(orderField); !ok || seq != int64(pos) {
			changes = append(changes, Change{ID: r.ID, Seq: int64(pos)})
		}
	}
	return changes
}

// Dense reports whether siblings carry exactly 0..N-1.
func Dense(siblings []model.Record, orderField string) bool {
	seen := make(map[int64]bool, len(siblings))
	for _, r := range siblings {
		seq, ok := r.Int64Field(orderField)
		if !ok || seq < 0 || seq >= int64(len(siblings)) || seen[seq] {
			return false
		}
		seen[seq] = true
	}
	return true
}
