// Package console is the service behind the master-data console: one Workspace per
// company holds the loaded collections and drives toggles, forms and reordering.
package console

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agencydesk/mdconsole/pkg/cascade"
	"github.com/agencydesk/mdconsole/pkg/collection"
	"github.com/agencydesk/mdconsole/pkg/domains"
	"github.com/agencydesk/mdconsole/pkg/eventbus"
	"github.com/agencydesk/mdconsole/pkg/hierarchy"
	"github.com/agencydesk/mdconsole/pkg/inflight"
	"github.com/agencydesk/mdconsole/pkg/model"
	"github.com/agencydesk/mdconsole/pkg/store"
)

// API is the master-data client surface the console uses.
type API interface {
	cascade.API
	Get(ctx context.Context, endpoint string, id int64) (model.Record, error)
	Create(ctx context.Context, endpoint string, fields map[string]interface{}) (model.Record, error)
	Update(ctx context.Context, endpoint string, id int64, fields map[string]interface{}) (model.Record, error)
	Delete(ctx context.Context, endpoint string, id int64) error
}

// Publisher tells other replicas which collections changed.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, eventType string, change eventbus.StatusChanged) error
}

type Options struct {
	Registry        *domains.Registry
	Locker          inflight.Locker
	Journal         store.Journal
	Publisher       Publisher
	ConfirmationTTL time.Duration
	Logger          *zap.Logger
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = domains.Default()
	}
	if o.Locker == nil {
		o.Locker = inflight.NewMemoryLocker(0)
	}
	if o.ConfirmationTTL <= 0 {
		o.ConfirmationTTL = 5 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type loadHandle struct {
	gen    uint64
	cancel context.CancelFunc
}

type Workspace struct {
	compID    int64
	api       API
	registry  *domains.Registry
	store     *collection.Store
	executor  *cascade.Executor
	locker    inflight.Locker
	journal   store.Journal
	publisher Publisher
	validate  *validator.Validate
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	tickets map[string]*pendingToggle

	loadMu  sync.Mutex
	loadGen uint64
	loads   map[model.EntityType]loadHandle

	scopeMu sync.Mutex
	scopes  map[string]*sync.Mutex
}

func NewWorkspace(compID int64, api API, opts Options) *Workspace {
	opts = opts.withDefaults()
	logger := opts.Logger.With(zap.Int64("comp_id", compID))
	return &Workspace{
		compID:    compID,
		api:       api,
		registry:  opts.Registry,
		store:     collection.NewStore(compID),
		executor:  cascade.NewExecutor(api, logger),
		locker:    opts.Locker,
		journal:   opts.Journal,
		publisher: opts.Publisher,
		validate:  validator.New(),
		ttl:       opts.ConfirmationTTL,
		logger:    logger,
		now:       opts.Now,
		tickets:   make(map[string]*pendingToggle),
		loads:     make(map[model.EntityType]loadHandle),
		scopes:    make(map[string]*sync.Mutex),
	}
}

func (w *Workspace) CompID() int64 {
	return w.compID
}

func (w *Workspace) hierarchy(domain string) (*hierarchy.Hierarchy, error) {
	h, ok := w.registry.Get(domain)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	return h, nil
}

func (w *Workspace) entity(domain string, entityType model.EntityType) (*hierarchy.Hierarchy, hierarchy.EntitySpec, error) {
	h, err := w.hierarchy(domain)
	if err != nil {
		return nil, hierarchy.EntitySpec{}, err
	}
	spec, ok := h.Entity(entityType)
	if !ok {
		return nil, hierarchy.EntitySpec{}, fmt.Errorf("%w: %s in %s", hierarchy.ErrUnknownEntity, entityType, domain)
	}
	return h, spec, nil
}

// Load fetches every collection of the domain and returns the record count per type.
func (w *Workspace) Load(ctx context.Context, domain string) (map[model.EntityType]int, error) {
	h, err := w.hierarchy(domain)
	if err != nil {
		return nil, err
	}
	if err := w.loadTypes(ctx, h, h.Entities); err != nil {
		return nil, err
	}
	counts := make(map[model.EntityType]int, len(h.Entities))
	for _, spec := range h.Entities {
		counts[spec.Type] = len(w.store.Records(spec.Type))
	}
	return counts, nil
}

// Collection returns the records of one type, fetching it first if it is missing or
// stale.
func (w *Workspace) Collection(ctx context.Context, domain string, entityType model.EntityType) ([]model.Record, error) {
	_, spec, err := w.entity(domain, entityType)
	if err != nil {
		return nil, err
	}
	if !w.store.Fresh(entityType) {
		if err := w.loadType(ctx, spec); err != nil {
			return nil, err
		}
	}
	return w.store.Records(entityType), nil
}

// ensureLoaded fetches the domain's missing or stale collections.
func (w *Workspace) ensureLoaded(ctx context.Context, h *hierarchy.Hierarchy) error {
	var missing []hierarchy.EntitySpec
	for _, spec := range h.Entities {
		if !w.store.Fresh(spec.Type) {
			missing = append(missing, spec)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return w.loadTypes(ctx, h, missing)
}

func (w *Workspace) loadTypes(ctx context.Context, h *hierarchy.Hierarchy, specs []hierarchy.EntitySpec) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			return w.loadType(gctx, spec)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load %s: %w", h.Name, err)
	}
	return nil
}

// loadType fetches one collection. A newer load of the same type cancels this one,
// which then returns ErrSuperseded without touching the store.
func (w *Workspace) loadType(ctx context.Context, spec hierarchy.EntitySpec) error {
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.loadMu.Lock()
	w.loadGen++
	gen := w.loadGen
	if prev, ok := w.loads[spec.Type]; ok {
		prev.cancel()
	}
	w.loads[spec.Type] = loadHandle{gen: gen, cancel: cancel}
	w.loadMu.Unlock()

	records, err := w.api.List(loadCtx, spec.Endpoint)

	w.loadMu.Lock()
	defer w.loadMu.Unlock()
	current, ok := w.loads[spec.Type]
	if !ok || current.gen != gen {
		return fmt.Errorf("%s: %w", spec.Type, ErrSuperseded)
	}
	delete(w.loads, spec.Type)

	if err != nil {
		return fmt.Errorf("%s: %w", spec.Type, err)
	}
	if dropped := w.store.Replace(spec.Type, records); dropped > 0 {
		w.logger.Warn("dropped records of another company",
			zap.String("entity_type", string(spec.Type)),
			zap.Int("dropped", dropped),
		)
	}
	return nil
}

// Invalidate marks collections stale; the next read re-fetches them.
func (w *Workspace) Invalidate(types ...model.EntityType) {
	w.store.MarkStale(types...)
}

// Dependents lists the active records that a deactivation of the record would reach.
func (w *Workspace) Dependents(ctx context.Context, domain string, entityType model.EntityType, id int64) (cascade.DependencySet, error) {
	h, _, err := w.entity(domain, entityType)
	if err != nil {
		return nil, err
	}
	if err := w.ensureLoaded(ctx, h); err != nil {
		return nil, err
	}
	if _, ok := w.store.Get(entityType, id); !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrRecordNotFound, entityType, id)
	}
	return cascade.ResolveDependents(h, entityType, id, w.store)
}

// Cascades returns the journaled status changes of this company.
func (w *Workspace) Cascades(ctx context.Context, domain string, limit, offset int) ([]model.CascadeRun, int64, error) {
	if w.journal == nil {
		return nil, 0, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return w.journal.List(ctx, w.compID, domain, limit, offset)
}
