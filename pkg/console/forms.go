package console

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/cascade"
	"github.com/agencydesk/mdconsole/pkg/eventbus"
	"github.com/agencydesk/mdconsole/pkg/hierarchy"
	"github.com/agencydesk/mdconsole/pkg/inflight"
	"github.com/agencydesk/mdconsole/pkg/model"
	"github.com/agencydesk/mdconsole/pkg/ordering"
)

// Save creates a record after validating required fields and parent references.
// Records of ordered types are appended after their siblings.
func (w *Workspace) Save(ctx context.Context, domain string, entityType model.EntityType, fields map[string]interface{}) (model.Record, error) {
	h, spec, err := w.entity(domain, entityType)
	if err != nil {
		return model.Record{}, err
	}
	if err := w.ensureLoaded(ctx, h); err != nil {
		return model.Record{}, err
	}

	payload := cleanFields(fields)
	status := model.StatusActive
	if raw, ok := fields[model.FieldStatus]; ok {
		rec := model.Record{Fields: map[string]interface{}{model.FieldStatus: raw}}
		value, ok := rec.Int64Field(model.FieldStatus)
		if !ok || !model.Status(value).Valid() {
			return model.Record{}, &cascade.ValidationError{Field: model.FieldStatus, Message: "must be 0 or 1"}
		}
		status = model.Status(value)
	}

	if err := w.validateFields(spec, payload); err != nil {
		return model.Record{}, err
	}
	if err := w.checkParents(h, entityType, payload, status); err != nil {
		return model.Record{}, err
	}

	if spec.OrderField != "" {
		_, parentID := orderScope(h, entityType, payload)
		release, err := w.holdScopes(ctx, entityType, parentID)
		if err != nil {
			return model.Record{}, err
		}
		defer release()
		siblings, err := w.compactScope(ctx, h, spec, parentID)
		if err != nil {
			return model.Record{}, err
		}
		payload[spec.OrderField] = ordering.Next(siblings)
	}
	payload[model.FieldStatus] = status
	payload[model.FieldCompID] = w.compID

	created, err := w.api.Create(ctx, spec.Endpoint, payload)
	if err != nil {
		return model.Record{}, err
	}
	if created.CompID == 0 {
		created.CompID = w.compID
	}
	if spec.OrderField != "" {
		if created.Fields == nil {
			created.Fields = make(map[string]interface{})
		}
		if _, ok := created.Fields[spec.OrderField]; !ok {
			created.Fields[spec.OrderField] = payload[spec.OrderField]
		}
	}
	if err := w.store.Merge(entityType, created); err != nil {
		return model.Record{}, err
	}

	w.logger.Info("record created", zap.String("entity_type", string(entityType)), zap.Int64("id", created.ID))
	w.publishSaved(ctx, h, entityType, created.ID)
	return created, nil
}

// Update replaces a record's editable fields. Status is changed through RequestToggle
// only, so that cascades are never bypassed.
func (w *Workspace) Update(ctx context.Context, domain string, entityType model.EntityType, id int64, fields map[string]interface{}) (model.Record, error) {
	h, spec, err := w.entity(domain, entityType)
	if err != nil {
		return model.Record{}, err
	}
	if err := w.ensureLoaded(ctx, h); err != nil {
		return model.Record{}, err
	}
	existing, ok := w.store.Get(entityType, id)
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %s %d", ErrRecordNotFound, entityType, id)
	}

	if raw, ok := fields[model.FieldStatus]; ok {
		rec := model.Record{Fields: map[string]interface{}{model.FieldStatus: raw}}
		if value, ok := rec.Int64Field(model.FieldStatus); !ok || model.Status(value) != existing.Status {
			return model.Record{}, &cascade.ValidationError{Field: model.FieldStatus, Message: "use the status toggle to change status"}
		}
	}

	lockKey := inflight.Key(w.compID, entityType, id)
	lockToken, err := w.locker.TryLock(ctx, lockKey)
	if err != nil {
		return model.Record{}, err
	}
	defer w.release(lockKey, lockToken)

	payload := existing.Clone().Fields
	for k, v := range cleanFields(fields) {
		payload[k] = v
	}

	if err := w.validateFields(spec, payload); err != nil {
		return model.Record{}, err
	}
	if err := w.checkParents(h, entityType, payload, existing.Status); err != nil {
		return model.Record{}, err
	}

	var moved bool
	var oldParent int64
	if spec.OrderField != "" {
		_, oldParent = orderScope(h, entityType, existing.Fields)
		_, newParent := orderScope(h, entityType, payload)
		release, err := w.holdScopes(ctx, entityType, oldParent, newParent)
		if err != nil {
			return model.Record{}, err
		}
		defer release()

		// position changes within a parent go through Reorder
		if seq, ok := existing.Fields[spec.OrderField]; ok {
			payload[spec.OrderField] = seq
		}
		if newParent != oldParent {
			siblings, err := w.compactScope(ctx, h, spec, newParent)
			if err != nil {
				return model.Record{}, err
			}
			payload[spec.OrderField] = ordering.Next(siblings)
			moved = true
		}
	}
	payload[model.FieldStatus] = existing.Status
	payload[model.FieldCompID] = w.compID

	updated, err := w.api.Update(ctx, spec.Endpoint, id, payload)
	if err != nil {
		return model.Record{}, err
	}
	if updated.ID == 0 {
		updated.ID = id
	}
	if updated.CompID == 0 {
		updated.CompID = w.compID
	}
	if spec.OrderField != "" {
		if updated.Fields == nil {
			updated.Fields = make(map[string]interface{})
		}
		if _, ok := updated.Fields[spec.OrderField]; !ok {
			updated.Fields[spec.OrderField] = payload[spec.OrderField]
		}
	}
	if err := w.store.Merge(entityType, updated); err != nil {
		return model.Record{}, err
	}

	if moved {
		if _, err := w.compactScope(ctx, h, spec, oldParent); err != nil {
			return model.Record{}, fmt.Errorf("renumber former siblings of %s %d: %w", entityType, id, err)
		}
	}

	w.publishSaved(ctx, h, entityType, id)
	return updated, nil
}

// Remove hard-deletes a record. Only removable types allow it; everything else is
// retired by deactivation.
func (w *Workspace) Remove(ctx context.Context, domain string, entityType model.EntityType, id int64) error {
	h, spec, err := w.entity(domain, entityType)
	if err != nil {
		return err
	}
	if !spec.Removable {
		return fmt.Errorf("%w: %s", ErrNotRemovable, entityType)
	}
	if !w.store.Fresh(entityType) {
		if err := w.loadType(ctx, spec); err != nil {
			return err
		}
	}
	existing, ok := w.store.Get(entityType, id)
	if !ok {
		return fmt.Errorf("%w: %s %d", ErrRecordNotFound, entityType, id)
	}

	lockKey := inflight.Key(w.compID, entityType, id)
	lockToken, err := w.locker.TryLock(ctx, lockKey)
	if err != nil {
		return err
	}
	defer w.release(lockKey, lockToken)

	var parentID int64
	if spec.OrderField != "" {
		_, parentID = orderScope(h, entityType, existing.Fields)
		release, err := w.holdScopes(ctx, entityType, parentID)
		if err != nil {
			return err
		}
		defer release()
	}

	if err := w.api.Delete(ctx, spec.Endpoint, id); err != nil {
		return err
	}
	w.store.Remove(entityType, id)
	if spec.OrderField != "" {
		if _, err := w.compactScope(ctx, h, spec, parentID); err != nil {
			return fmt.Errorf("renumber siblings after removing %s %d: %w", entityType, id, err)
		}
	}
	w.logger.Info("record removed", zap.String("entity_type", string(entityType)), zap.Int64("id", id))
	w.publishSaved(ctx, h, entityType, id)
	return nil
}

// Reorder rewrites the ordering field of one parent's children to match orderedIDs.
// The PATCHes are sent one at a time; on failure the collection is re-fetched.
func (w *Workspace) Reorder(ctx context.Context, domain string, entityType model.EntityType, parentID int64, orderedIDs []int64) ([]model.Record, error) {
	h, spec, err := w.entity(domain, entityType)
	if err != nil {
		return nil, err
	}
	if spec.OrderField == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotOrdered, entityType)
	}
	if !w.store.Fresh(entityType) {
		if err := w.loadType(ctx, spec); err != nil {
			return nil, err
		}
	}

	release, err := w.holdScopes(ctx, entityType, parentID)
	if err != nil {
		return nil, err
	}
	defer release()

	fk := scopeKey(h, entityType)
	siblings := ordering.Siblings(w.store.Records(entityType), fk, parentID, spec.OrderField)
	changes, err := ordering.PlanReorder(siblings, orderedIDs, spec.OrderField)
	if err != nil {
		return nil, &cascade.ValidationError{Field: "order", Message: err.Error()}
	}

	var held []lockHold
	defer func() {
		for _, l := range held {
			w.release(l.key, l.token)
		}
	}()
	for _, c := range changes {
		key := inflight.Key(w.compID, entityType, c.ID)
		token, err := w.locker.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		held = append(held, lockHold{key: key, token: token})
	}

	if err := w.applyOrder(ctx, spec, changes); err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		w.publishSaved(ctx, h, entityType, parentID)
	}
	return ordering.Siblings(w.store.Records(entityType), fk, parentID, spec.OrderField), nil
}

// validateFields checks that every required form field carries a value.
func (w *Workspace) validateFields(spec hierarchy.EntitySpec, fields map[string]interface{}) error {
	for _, name := range spec.Required {
		if err := w.validate.Var(fields[name], "required"); err != nil {
			return &cascade.ValidationError{Field: name, Message: "is required"}
		}
	}
	return nil
}

// checkParents verifies that every foreign key points at a loaded parent, and that an
// active record is not placed under an inactive parent.
func (w *Workspace) checkParents(h *hierarchy.Hierarchy, entityType model.EntityType, fields map[string]interface{}, status model.Status) error {
	rec := model.Record{Fields: fields}
	for _, rel := range h.ParentRelations(entityType) {
		raw, present := fields[rel.ForeignKey]
		if !present || raw == nil {
			continue
		}
		parentID, ok := rec.Int64Field(rel.ForeignKey)
		if !ok {
			return &cascade.ValidationError{Field: rel.ForeignKey, Message: "must be an id"}
		}
		parentSpec, _ := h.Entity(rel.Parent)
		parent, ok := w.store.Get(rel.Parent, parentID)
		if !ok {
			return &cascade.ValidationError{Field: rel.ForeignKey, Message: fmt.Sprintf("unknown %s %d", parentSpec.Label, parentID)}
		}
		if status == model.StatusActive && parent.Status != model.StatusActive {
			return &cascade.ValidationError{
				Field:   rel.ForeignKey,
				Message: fmt.Sprintf("%s %s is inactive", parentSpec.Label, cascade.DisplayName(parentSpec, parent)),
			}
		}
		fields[rel.ForeignKey] = parentID
	}
	return nil
}

// scopeKey is the foreign key that groups siblings for ordering, or "" when the type
// is ordered globally.
func scopeKey(h *hierarchy.Hierarchy, entityType model.EntityType) string {
	for _, rel := range h.ParentRelations(entityType) {
		if !rel.ReportOnly {
			return rel.ForeignKey
		}
	}
	return ""
}

func orderScope(h *hierarchy.Hierarchy, entityType model.EntityType, fields map[string]interface{}) (string, int64) {
	fk := scopeKey(h, entityType)
	if fk == "" {
		return "", 0
	}
	parentID, _ := model.Record{Fields: fields}.Int64Field(fk)
	return fk, parentID
}

// cleanFields drops the columns the console owns.
func cleanFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch k {
		case model.FieldID, model.FieldStatus, model.FieldCompID:
			continue
		}
		out[k] = v
	}
	return out
}

func (w *Workspace) publishSaved(ctx context.Context, h *hierarchy.Hierarchy, entityType model.EntityType, id int64) {
	if w.publisher == nil {
		return
	}
	change := eventbus.StatusChanged{
		CompID:   w.compID,
		Domain:   h.Name,
		RootType: string(entityType),
		RootID:   id,
		Types:    []string{string(entityType)},
		Affected: 1,
	}
	if err := w.publisher.PublishStatusChanged(context.WithoutCancel(ctx), eventbus.TypeRecordSaved, change); err != nil {
		w.logger.Warn("failed to publish record change", zap.Error(err))
	}
}
