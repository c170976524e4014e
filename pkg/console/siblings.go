package console

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/hierarchy"
	"github.com/agencydesk/mdconsole/pkg/inflight"
	"github.com/agencydesk/mdconsole/pkg/model"
	"github.com/agencydesk/mdconsole/pkg/ordering"
)

type lockHold struct {
	key   string
	token string
}

// holdScopes serializes read-then-write sequences over the ordered children of each
// parent: in process with one mutex per scope, across replicas with an in-flight lease.
// Scopes are taken in ascending parent order.
func (w *Workspace) holdScopes(ctx context.Context, entityType model.EntityType, parentIDs ...int64) (func(), error) {
	ids := make([]int64, 0, len(parentIDs))
	seen := make(map[int64]bool, len(parentIDs))
	for _, id := range parentIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	keys := make([]string, len(ids))
	mus := make([]*sync.Mutex, len(ids))
	w.scopeMu.Lock()
	for i, id := range ids {
		keys[i] = inflight.ScopeKey(w.compID, entityType, id)
		mu, ok := w.scopes[keys[i]]
		if !ok {
			mu = &sync.Mutex{}
			w.scopes[keys[i]] = mu
		}
		mus[i] = mu
	}
	w.scopeMu.Unlock()

	for _, mu := range mus {
		mu.Lock()
	}

	var held []lockHold
	release := func() {
		for _, l := range held {
			w.release(l.key, l.token)
		}
		for i := len(mus) - 1; i >= 0; i-- {
			mus[i].Unlock()
		}
	}
	for _, key := range keys {
		token, err := w.locker.TryLock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, lockHold{key: key, token: token})
	}
	return release, nil
}

// compactScope renumbers one parent's children to 0..N-1 when they are not dense and
// returns them in display order. The caller holds the scope.
func (w *Workspace) compactScope(ctx context.Context, h *hierarchy.Hierarchy, spec hierarchy.EntitySpec, parentID int64) ([]model.Record, error) {
	fk := scopeKey(h, spec.Type)
	siblings := ordering.Siblings(w.store.Records(spec.Type), fk, parentID, spec.OrderField)
	if ordering.Dense(siblings, spec.OrderField) {
		return siblings, nil
	}
	w.logger.Info("renumbering siblings",
		zap.String("entity_type", string(spec.Type)),
		zap.Int64("parent_id", parentID),
		zap.Int("siblings", len(siblings)),
	)
	if err := w.applyOrder(ctx, spec, ordering.Compact(siblings, spec.OrderField)); err != nil {
		return nil, err
	}
	return ordering.Siblings(w.store.Records(spec.Type), fk, parentID, spec.OrderField), nil
}

// applyOrder sends one PATCH per change, in order, and merges each answer. On failure
// the collection is re-fetched, or marked stale when that fails as well.
func (w *Workspace) applyOrder(ctx context.Context, spec hierarchy.EntitySpec, changes []ordering.Change) error {
	runCtx := context.WithoutCancel(ctx)
	for _, c := range changes {
		record, err := w.api.Patch(runCtx, spec.Endpoint, c.ID, map[string]interface{}{spec.OrderField: c.Seq})
		if err != nil {
			w.logger.Warn("ordering update failed, reloading collection",
				zap.String("entity_type", string(spec.Type)),
				zap.Int64("id", c.ID),
				zap.Error(err),
			)
			if reloadErr := w.loadType(runCtx, spec); reloadErr != nil {
				w.store.MarkStale(spec.Type)
			}
			return err
		}
		existing, _ := w.store.Get(spec.Type, c.ID)
		merged := existing.Clone()
		for k, v := range record.Fields {
			merged.Fields[k] = v
		}
		merged.Fields[spec.OrderField] = c.Seq
		if err := w.store.Merge(spec.Type, merged); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workspace) release(key, token string) {
	if err := w.locker.Unlock(context.Background(), key, token); err != nil {
		w.logger.Warn("failed to release in-flight lock", zap.String("key", key), zap.Error(err))
	}
}
