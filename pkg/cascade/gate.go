package cascade

import (
	"fmt"
	"strings"

	"github.com/agencydesk/mdconsole/pkg/hierarchy"
	"github.com/agencydesk/mdconsole/pkg/model"
)

// ShouldConfirm reports whether flipping a record away from currentStatus needs an
// explicit user confirmation. Only deactivation with active dependents does;
// activation never cascades and is never gated.
func ShouldConfirm(currentStatus model.Status, dependents DependencySet) bool {
	if currentStatus != model.StatusActive {
		return false
	}
	return !dependents.Empty()
}

// CheckActivation refuses to activate a record while any of its parents is inactive,
// which would break the "no active child under an inactive parent" invariant.
func CheckActivation(h *hierarchy.Hierarchy, entityType model.EntityType, record model.Record, cols Collections) error {
	var blocked []string
	for _, rel := range h.ParentRelations(entityType) {
		parentID, ok := record.Int64Field(rel.ForeignKey)
		if !ok {
			continue
		}
		spec, _ := h.Entity(rel.Parent)
		for _, parent := range cols.Records(rel.Parent) {
			if parent.ID != parentID {
				continue
			}
			if parent.Status != model.StatusActive {
				blocked = append(blocked, fmt.Sprintf("%s: %s", spec.Label, DisplayName(spec, parent)))
			}
			break
		}
	}
	if len(blocked) == 0 {
		return nil
	}
	return &ValidationError{
		Field:   model.FieldStatus,
		Message: "cannot activate while parent is inactive (" + strings.Join(blocked, ", ") + ")",
	}
}
