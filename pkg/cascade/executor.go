package cascade

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agencydesk/mdconsole/pkg/collection"
	"github.com/agencydesk/mdconsole/pkg/hierarchy"
	"github.com/agencydesk/mdconsole/pkg/metrics"
	"github.com/agencydesk/mdconsole/pkg/model"
)

// API is the slice of the master-data client the executor needs.
type API interface {
	Patch(ctx context.Context, endpoint string, id int64, fields map[string]interface{}) (model.Record, error)
	List(ctx context.Context, endpoint string) ([]model.Record, error)
}

// Store is the writable side of the in-memory collections.
type Store interface {
	Collections
	Get(entityType model.EntityType, id int64) (model.Record, bool)
	Merge(entityType model.EntityType, record model.Record) error
	Replace(entityType model.EntityType, records []model.Record) int
	Snapshot(types ...model.EntityType) collection.Snapshot
	Restore(snap collection.Snapshot)
	MarkStale(types ...model.EntityType)
}

type Result struct {
	Root     model.Record
	Updated  []model.Record
	Cascaded int
	Duration time.Duration
}

type Executor struct {
	api    API
	logger *zap.Logger
}

func NewExecutor(api API, logger *zap.Logger) *Executor {
	return &Executor{api: api, logger: logger}
}

// Execute persists the planned mutations concurrently, one PATCH each, and merges the
// results into the store. If any mutation fails, every touched collection is re-fetched
// from the API; when that is impossible the baseline snapshot is restored instead and
// every restored collection is marked stale. The store never ends up with a mix of
// persisted and client-only values.
//
// Mutations run on a context detached from ctx's cancellation: once issued, a cascade
// completes or fails on its own.
func (e *Executor) Execute(ctx context.Context, h *hierarchy.Hierarchy, store Store, mutations []Mutation, baseline *collection.Snapshot) (*Result, error) {
	if len(mutations) == 0 {
		return nil, fmt.Errorf("cascade has no mutations")
	}

	endpoints := make(map[model.EntityType]string)
	for _, m := range mutations {
		spec, ok := h.Entity(m.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %s in %s", hierarchy.ErrUnknownEntity, m.Type, h.Name)
		}
		endpoints[m.Type] = spec.Endpoint
	}

	touched := TouchedTypes(mutations)
	var snap collection.Snapshot
	if baseline != nil {
		snap = *baseline
	} else {
		snap = store.Snapshot(touched...)
	}

	started := time.Now()
	runCtx := context.WithoutCancel(ctx)

	results := make([]model.Record, len(mutations))
	errs := make([]error, len(mutations))

	var g errgroup.Group
	for i := range mutations {
		i := i
		m := mutations[i]
		g.Go(func() error {
			record, err := e.api.Patch(runCtx, endpoints[m.Type], m.ID, m.Fields)
			if err != nil {
				errs[i] = err
				return err
			}
			results[i] = record
			return nil
		})
	}
	_ = g.Wait()

	var failed []FailedMutation
	for i, err := range errs {
		if err != nil {
			failed = append(failed, FailedMutation{Type: mutations[i].Type, ID: mutations[i].ID, Err: err})
		}
	}

	if len(failed) == 0 {
		for i, record := range results {
			if err := store.Merge(mutations[i].Type, mergeOnto(store, mutations[i].Type, record)); err != nil {
				failed = append(failed, FailedMutation{Type: mutations[i].Type, ID: mutations[i].ID, Err: err})
			}
		}
	}

	for i, m := range mutations {
		outcome := "ok"
		if errs[i] != nil {
			outcome = "error"
		}
		metrics.CascadeMutationsTotal.WithLabelValues(h.Name, string(m.Type), outcome).Inc()
	}

	if len(failed) > 0 {
		cascadeErr := &CascadeError{Failed: failed}
		e.reconcile(runCtx, h, store, touched, endpoints, snap, cascadeErr)
		e.logger.Warn("cascade failed",
			zap.String("domain", h.Name),
			zap.String("root_type", string(mutations[0].Type)),
			zap.Int64("root_id", mutations[0].ID),
			zap.Int("failed", len(failed)),
			zap.Int("mutations", len(mutations)),
			zap.String("reconciliation", string(cascadeErr.Reconciliation)),
			zap.Error(failed[0].Err),
		)
		return nil, cascadeErr
	}

	result := &Result{
		Cascaded: len(mutations) - 1,
		Duration: time.Since(started),
	}
	for i, m := range mutations {
		merged, _ := store.Get(m.Type, m.ID)
		if i == 0 {
			result.Root = merged
		}
		result.Updated = append(result.Updated, merged)
	}

	e.logger.Info("cascade applied",
		zap.String("domain", h.Name),
		zap.String("root_type", string(mutations[0].Type)),
		zap.Int64("root_id", mutations[0].ID),
		zap.Int("cascaded", result.Cascaded),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (e *Executor) reconcile(ctx context.Context, h *hierarchy.Hierarchy, store Store, touched []model.EntityType, endpoints map[model.EntityType]string, snap collection.Snapshot, cascadeErr *CascadeError) {
	fresh := make(map[model.EntityType][]model.Record, len(touched))
	for _, t := range touched {
		records, err := e.api.List(ctx, endpoints[t])
		if err != nil {
			cascadeErr.ReloadErr = err
			break
		}
		fresh[t] = records
	}

	if cascadeErr.ReloadErr != nil {
		store.Restore(snap)
		store.MarkStale(touched...)
		store.MarkStale(snap.Types()...)
		cascadeErr.Reconciliation = Restored
		e.logger.Error("failed to reload collections after cascade failure, restored snapshot",
			zap.String("domain", h.Name),
			zap.Error(cascadeErr.ReloadErr),
		)
		return
	}

	for t, records := range fresh {
		if dropped := store.Replace(t, records); dropped > 0 {
			e.logger.Warn("dropped records of another company", zap.String("entity_type", string(t)), zap.Int("dropped", dropped))
		}
	}
	cascadeErr.Reconciliation = Refetched
}

// mergeOnto overlays a PATCH response on the record already held, so that endpoints
// answering with a partial body do not erase columns.
func mergeOnto(store Store, entityType model.EntityType, response model.Record) model.Record {
	existing, ok := store.Get(entityType, response.ID)
	if !ok {
		return response
	}
	merged := existing.Clone()
	for k, v := range response.Fields {
		merged.Fields[k] = v
	}
	merged.Status = response.Status
	if response.CompID != 0 {
		merged.CompID = response.CompID
	}
	return merged
}
