// Package cascade implements the status-toggle cascade: dependency resolution, the
// confirmation gate, mutation planning and execution against the master-data API.
package cascade

import (
	"fmt"

	"github.com/agencydesk/mdconsole/pkg/hierarchy"
	"github.com/agencydesk/mdconsole/pkg/model"
)

// Collections is read access to the already-loaded master-data tables.
type Collections interface {
	Records(entityType model.EntityType) []model.Record
}

type Dependent struct {
	Type  model.EntityType `json:"entity_type"`
	ID    int64            `json:"id"`
	Label string           `json:"label"`
	Depth int              `json:"depth"`
	// Cascade is false for report-only dependents, which are counted but never mutated.
	Cascade bool `json:"cascade"`
}

type DependencySet []Dependent

func (d DependencySet) Empty() bool {
	return len(d) == 0
}

// Cascadable returns the dependents a cascade must mutate.
func (d DependencySet) Cascadable() DependencySet {
	out := make(DependencySet, 0, len(d))
	for _, dep := range d {
		if dep.Cascade {
			out = append(out, dep)
		}
	}
	return out
}

func (d DependencySet) Labels() []string {
	out := make([]string, 0, len(d))
	for _, dep := range d {
		out = append(out, dep.Label)
	}
	return out
}

type node struct {
	entityType model.EntityType
	id         int64
}

// ResolveDependents walks the hierarchy breadth-first from the root, collecting every
// active record that references it directly or through active intermediates. Inactive
// children are already off and are neither reported nor walked through. The walk
// stops as soon as a level yields nothing.
func ResolveDependents(h *hierarchy.Hierarchy, rootType model.EntityType, rootID int64, cols Collections) (DependencySet, error) {
	if !h.Has(rootType) {
		return nil, fmt.Errorf("%w: %s in %s", hierarchy.ErrUnknownEntity, rootType, h.Name)
	}

	root := node{entityType: rootType, id: rootID}
	seen := map[node]bool{root: true}
	frontier := []node{root}
	var out DependencySet

	// Children are matched against the current frontier in one pass per relation, so
	// each collection is scanned once per level rather than once per parent.
	for depth := 1; len(frontier) > 0; depth++ {
		var next []node
		for _, rel := range relationsFrom(h, frontier) {
			parents := make(map[int64]bool)
			for _, n := range frontier {
				if n.entityType == rel.Parent {
					parents[n.id] = true
				}
			}
			spec, _ := h.Entity(rel.Child)

			for _, record := range cols.Records(rel.Child) {
				if record.Status != model.StatusActive {
					continue
				}
				fk, ok := record.Int64Field(rel.ForeignKey)
				if !ok || !parents[fk] {
					continue
				}
				key := node{entityType: rel.Child, id: record.ID}
				if seen[key] {
					continue
				}
				seen[key] = true

				cascade := !rel.ReportOnly
				out = append(out, Dependent{
					Type:    rel.Child,
					ID:      record.ID,
					Label:   fmt.Sprintf("%s: %s", spec.Label, DisplayName(spec, record)),
					Depth:   depth,
					Cascade: cascade,
				})
				// report-only leaves are not walked further
				if cascade {
					next = append(next, key)
				}
			}
		}
		frontier = next
	}

	return out, nil
}

// relationsFrom returns the child relations of every type present in the frontier.
func relationsFrom(h *hierarchy.Hierarchy, frontier []node) []hierarchy.Relation {
	types := make(map[model.EntityType]bool)
	var ordered []model.EntityType
	for _, n := range frontier {
		if !types[n.entityType] {
			types[n.entityType] = true
			ordered = append(ordered, n.entityType)
		}
	}
	var out []hierarchy.Relation
	for _, t := range ordered {
		out = append(out, h.ChildRelations(t)...)
	}
	return out
}

// DisplayName is the record's display column, or "#id" when that is empty.
func DisplayName(spec hierarchy.EntitySpec, record model.Record) string {
	if name := record.StringField(spec.DisplayField); name != "" {
		return name
	}
	return fmt.Sprintf("#%d", record.ID)
}
