// Package hierarchy declares master-data entity types and the parent/child relations
// between them. Definitions are static configuration; nothing here performs I/O.
package hierarchy

import (
	"errors"
	"fmt"

	"github.com/agencydesk/mdconsole/pkg/model"
)

// EntitySpec describes one master-data table.
type EntitySpec struct {
	Type         model.EntityType
	Label        string
	Endpoint     string
	DisplayField string
	// OrderField is set for sibling collections that keep a dense seq_no.
	OrderField string
	// Required lists the fields a create/update form must carry.
	Required []string
	// Removable types may be hard-deleted.
	Removable bool
}

// Relation is a directed edge Child.ForeignKey -> Parent.id.
type Relation struct {
	Child      model.EntityType
	ForeignKey string
	Parent     model.EntityType
	// ReportOnly children are counted as dependents but never mutated by a cascade.
	ReportOnly bool
}

type Hierarchy struct {
	Name      string
	Title     string
	Entities  []EntitySpec
	Relations []Relation

	byType map[model.EntityType]int
}

func New(name, title string, entities []EntitySpec, relations []Relation) (*Hierarchy, error) {
	h := &Hierarchy{
		Name:      name,
		Title:     title,
		Entities:  entities,
		Relations: relations,
		byType:    make(map[model.EntityType]int, len(entities)),
	}
	for i, entity := range entities {
		if entity.Type == "" || entity.Endpoint == "" || entity.DisplayField == "" {
			return nil, fmt.Errorf("hierarchy %s: entity %d is missing type, endpoint or display field", name, i)
		}
		if _, dup := h.byType[entity.Type]; dup {
			return nil, fmt.Errorf("hierarchy %s: duplicate entity %s", name, entity.Type)
		}
		h.byType[entity.Type] = i
	}
	for _, rel := range relations {
		if _, ok := h.byType[rel.Child]; !ok {
			return nil, fmt.Errorf("hierarchy %s: relation child %s is not declared", name, rel.Child)
		}
		if _, ok := h.byType[rel.Parent]; !ok {
			return nil, fmt.Errorf("hierarchy %s: relation parent %s is not declared", name, rel.Parent)
		}
		if rel.ForeignKey == "" {
			return nil, fmt.Errorf("hierarchy %s: relation %s -> %s has no foreign key", name, rel.Child, rel.Parent)
		}
	}
	if err := h.checkAcyclic(); err != nil {
		return nil, err
	}
	return h, nil
}

func MustNew(name, title string, entities []EntitySpec, relations []Relation) *Hierarchy {
	h, err := New(name, title, entities, relations)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *Hierarchy) Entity(entityType model.EntityType) (EntitySpec, bool) {
	idx, ok := h.byType[entityType]
	if !ok {
		return EntitySpec{}, false
	}
	return h.Entities[idx], true
}

func (h *Hierarchy) Has(entityType model.EntityType) bool {
	_, ok := h.byType[entityType]
	return ok
}

// ChildRelations returns the relations whose parent is entityType, in declaration order.
func (h *Hierarchy) ChildRelations(entityType model.EntityType) []Relation {
	var out []Relation
	for _, rel := range h.Relations {
		if rel.Parent == entityType {
			out = append(out, rel)
		}
	}
	return out
}

// ParentRelations returns the relations whose child is entityType.
func (h *Hierarchy) ParentRelations(entityType model.EntityType) []Relation {
	var out []Relation
	for _, rel := range h.Relations {
		if rel.Child == entityType {
			out = append(out, rel)
		}
	}
	return out
}

func (h *Hierarchy) Types() []model.EntityType {
	out := make([]model.EntityType, 0, len(h.Entities))
	for _, entity := range h.Entities {
		out = append(out, entity.Type)
	}
	return out
}

func (h *Hierarchy) checkAcyclic() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[model.EntityType]int, len(h.Entities))

	var visit func(t model.EntityType) error
	visit = func(t model.EntityType) error {
		switch state[t] {
		case visiting:
			return fmt.Errorf("hierarchy %s: cycle through %s", h.Name, t)
		case done:
			return nil
		}
		state[t] = visiting
		for _, rel := range h.ChildRelations(t) {
			if err := visit(rel.Child); err != nil {
				return err
			}
		}
		state[t] = done
		return nil
	}

	for _, entity := range h.Entities {
		if err := visit(entity.Type); err != nil {
			return err
		}
	}
	return nil
}

var ErrUnknownEntity = errors.New("unknown entity type")
