package cascade

import "github.com/agencydesk/mdconsole/pkg/model"

type Mutation struct {
	Type   model.EntityType       `json:"entity_type"`
	ID     int64                  `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// Status returns the status the mutation writes.
func (m Mutation) Status() model.Status {
	if value, ok := m.Fields[model.FieldStatus].(model.Status); ok {
		return value
	}
	return model.StatusInactive
}

// PlanCascade builds the mutations for a status change: the root first, then one per
// cascadable dependent, each (type, id) at most once.
func PlanCascade(rootType model.EntityType, rootID int64, newStatus model.Status, dependents DependencySet) []Mutation {
	seen := make(map[node]bool, len(dependents)+1)
	mutations := make([]Mutation, 0, len(dependents)+1)

	add := func(entityType model.EntityType, id int64) {
		key := node{entityType: entityType, id: id}
		if seen[key] {
			return
		}
		seen[key] = true
		mutations = append(mutations, Mutation{
			Type:   entityType,
			ID:     id,
			Fields: map[string]interface{}{model.FieldStatus: newStatus},
		})
	}

	add(rootType, rootID)
	for _, dep := range dependents {
		if dep.Cascade {
			add(dep.Type, dep.ID)
		}
	}
	return mutations
}

// TouchedTypes lists the entity types a plan writes to, in first-seen order.
func TouchedTypes(mutations []Mutation) []model.EntityType {
	seen := make(map[model.EntityType]bool)
	var out []model.EntityType
	for _, m := range mutations {
		if !seen[m.Type] {
			seen[m.Type] = true
			out = append(out, m.Type)
		}
	}
	return out
}
