package console

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/cascade"
	"github.com/agencydesk/mdconsole/pkg/eventbus"
	"github.com/agencydesk/mdconsole/pkg/hierarchy"
	"github.com/agencydesk/mdconsole/pkg/inflight"
	"github.com/agencydesk/mdconsole/pkg/metrics"
	"github.com/agencydesk/mdconsole/pkg/model"
)

type OutcomeKind string

const (
	OutcomeApplied              OutcomeKind = "applied"
	OutcomeConfirmationRequired OutcomeKind = "confirmation_required"
)

// Outcome is the single result of a toggle request: either the change was applied, or
// it waits on a confirmation ticket.
type Outcome struct {
	Kind       OutcomeKind           `json:"kind"`
	Notice     string                `json:"notice,omitempty"`
	Ticket     string                `json:"ticket,omitempty"`
	ExpiresAt  *time.Time            `json:"expires_at,omitempty"`
	Dependents cascade.DependencySet `json:"dependents,omitempty"`
	Record     model.Record          `json:"record"`
	Cascaded   int                   `json:"cascaded"`
}

type pendingToggle struct {
	ticket     string
	userID     int64
	h          *hierarchy.Hierarchy
	entityType model.EntityType
	id         int64
	prevStatus model.Status
	newStatus  model.Status
	lockKey    string
	lockToken  string
	dependents cascade.DependencySet
	expiresAt  time.Time
}

type userKey struct{}

// WithUser records the acting user for the journal.
func WithUser(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func userFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(userKey{}).(int64)
	return id
}

// RequestToggle flips a record's status. The flip is applied to the loaded collection
// right away and the record stays locked until the change is persisted, rejected or,
// when dependents need a confirmation, until the ticket is confirmed or cancelled.
func (w *Workspace) RequestToggle(ctx context.Context, domain string, entityType model.EntityType, id int64) (*Outcome, error) {
	h, spec, err := w.entity(domain, entityType)
	if err != nil {
		return nil, err
	}
	if err := w.ensureLoaded(ctx, h); err != nil {
		return nil, err
	}
	record, ok := w.store.Get(entityType, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrRecordNotFound, entityType, id)
	}

	lockKey := inflight.Key(w.compID, entityType, id)
	lockToken, err := w.locker.TryLock(ctx, lockKey)
	if err != nil {
		return nil, err
	}

	p := &pendingToggle{
		userID:     userFromContext(ctx),
		h:          h,
		entityType: entityType,
		id:         id,
		prevStatus: record.Status,
		newStatus:  record.Status.Toggle(),
		lockKey:    lockKey,
		lockToken:  lockToken,
	}

	if p.newStatus == model.StatusActive {
		if err := cascade.CheckActivation(h, entityType, record, w.store); err != nil {
			w.unlock(p)
			return nil, err
		}
	}

	w.store.SetStatus(entityType, id, p.newStatus)

	var dependents cascade.DependencySet
	if p.newStatus == model.StatusInactive {
		dependents, err = cascade.ResolveDependents(h, entityType, id, w.store)
		if err != nil {
			w.revert(p)
			return nil, err
		}
		metrics.DependentsResolved.WithLabelValues(h.Name).Observe(float64(len(dependents)))
	}

	if cascade.ShouldConfirm(p.prevStatus, dependents) {
		return w.holdForConfirmation(p, spec, record, dependents), nil
	}
	return w.execute(ctx, p, spec, dependents)
}

func (w *Workspace) holdForConfirmation(p *pendingToggle, spec hierarchy.EntitySpec, record model.Record, dependents cascade.DependencySet) *Outcome {
	p.ticket = uuid.NewString()
	p.expiresAt = w.now().Add(w.ttl)
	p.dependents = dependents

	w.mu.Lock()
	w.tickets[p.ticket] = p
	w.mu.Unlock()
	metrics.ConfirmationsPending.WithLabelValues(p.h.Name).Inc()

	w.logger.Info("status change awaiting confirmation",
		zap.String("ticket", p.ticket),
		zap.String("entity_type", string(p.entityType)),
		zap.Int64("id", p.id),
		zap.Int("dependents", len(dependents)),
	)

	expires := p.expiresAt
	record.Status = p.newStatus
	return &Outcome{
		Kind:       OutcomeConfirmationRequired,
		Notice:     fmt.Sprintf("%s has %d active dependent records", cascade.DisplayName(spec, record), len(dependents)),
		Ticket:     p.ticket,
		ExpiresAt:  &expires,
		Dependents: dependents,
		Record:     record,
	}
}

// Confirm executes a held toggle. Dependents are resolved again, since the loaded
// collections may have changed while the ticket was open. When records appeared that
// the ticket never listed, nothing is executed: the toggle is held again under a new
// ticket that lists the whole current set.
func (w *Workspace) Confirm(ctx context.Context, ticket string) (*Outcome, error) {
	p, err := w.takeTicket(ticket)
	if err != nil {
		return nil, err
	}
	if w.now().After(p.expiresAt) {
		w.revert(p)
		return nil, ErrConfirmationExpired
	}

	spec, _ := p.h.Entity(p.entityType)
	dependents, err := cascade.ResolveDependents(p.h, p.entityType, p.id, w.store)
	if err != nil {
		w.revert(p)
		return nil, err
	}
	if unseen := unlisted(p.dependents, dependents); unseen > 0 {
		w.logger.Info("dependents changed while awaiting confirmation",
			zap.String("ticket", ticket),
			zap.Int("unseen", unseen),
		)
		record, _ := w.store.Get(p.entityType, p.id)
		return w.holdForConfirmation(p, spec, record, dependents), nil
	}
	return w.execute(ctx, p, spec, dependents)
}

// unlisted counts the dependents in current that listed does not contain.
func unlisted(listed, current cascade.DependencySet) int {
	seen := make(map[model.EntityType]map[int64]bool, len(listed))
	for _, d := range listed {
		if seen[d.Type] == nil {
			seen[d.Type] = make(map[int64]bool)
		}
		seen[d.Type][d.ID] = true
	}
	n := 0
	for _, d := range current {
		if !seen[d.Type][d.ID] {
			n++
		}
	}
	return n
}

// Cancel drops a held toggle and reverts the optimistic flip.
func (w *Workspace) Cancel(ticket string) error {
	p, err := w.takeTicket(ticket)
	if err != nil {
		return err
	}
	w.revert(p)
	w.logger.Info("status change cancelled", zap.String("ticket", ticket))
	return nil
}

// Sweep cancels tickets that expired before now and returns how many it dropped.
func (w *Workspace) Sweep(now time.Time) int {
	w.mu.Lock()
	var expired []*pendingToggle
	for ticket, p := range w.tickets {
		if now.After(p.expiresAt) {
			expired = append(expired, p)
			delete(w.tickets, ticket)
		}
	}
	w.mu.Unlock()

	for _, p := range expired {
		metrics.ConfirmationsPending.WithLabelValues(p.h.Name).Dec()
		w.revert(p)
	}
	return len(expired)
}

func (w *Workspace) PendingTickets() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tickets)
}

func (w *Workspace) takeTicket(ticket string) (*pendingToggle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.tickets[ticket]
	if !ok {
		return nil, ErrConfirmationNotFound
	}
	delete(w.tickets, ticket)
	metrics.ConfirmationsPending.WithLabelValues(p.h.Name).Dec()
	return p, nil
}

func (w *Workspace) execute(ctx context.Context, p *pendingToggle, spec hierarchy.EntitySpec, dependents cascade.DependencySet) (*Outcome, error) {
	defer w.unlock(p)

	mutations := cascade.PlanCascade(p.entityType, p.id, p.newStatus, dependents)
	// only the written collections, as of now: other writes must survive a restore
	baseline := w.store.Snapshot(cascade.TouchedTypes(mutations)...)
	baseline.SetStatus(p.entityType, p.id, p.prevStatus)

	result, err := w.executor.Execute(ctx, p.h, w.store, mutations, &baseline)
	if err != nil {
		var cascadeErr *cascade.CascadeError
		if errors.As(err, &cascadeErr) {
			outcome := model.CascadeRefetched
			if cascadeErr.Reconciliation == cascade.Restored {
				outcome = model.CascadeRestored
			}
			metrics.CascadesTotal.WithLabelValues(p.h.Name, string(outcome)).Inc()
			w.journalRun(ctx, p, mutations, outcome, err)
			return nil, err
		}
		w.store.SetStatus(p.entityType, p.id, p.prevStatus)
		return nil, err
	}

	metrics.CascadesTotal.WithLabelValues(p.h.Name, string(model.CascadeApplied)).Inc()
	metrics.CascadeDuration.WithLabelValues(p.h.Name).Observe(result.Duration.Seconds())
	w.journalRun(ctx, p, mutations, model.CascadeApplied, nil)
	w.publish(ctx, p, mutations)

	return &Outcome{
		Kind:       OutcomeApplied,
		Notice:     notice(spec, result.Root, p.newStatus, result.Cascaded),
		Dependents: dependents,
		Record:     result.Root,
		Cascaded:   result.Cascaded,
	}, nil
}

func notice(spec hierarchy.EntitySpec, root model.Record, status model.Status, cascaded int) string {
	name := cascade.DisplayName(spec, root)
	if cascaded == 0 {
		return fmt.Sprintf("%s has been %s", name, status.Verb())
	}
	return fmt.Sprintf("%s and its %d related records have been %s", name, cascaded, status.Verb())
}

func (w *Workspace) revert(p *pendingToggle) {
	w.store.SetStatus(p.entityType, p.id, p.prevStatus)
	w.unlock(p)
}

func (w *Workspace) unlock(p *pendingToggle) {
	w.release(p.lockKey, p.lockToken)
}

func (w *Workspace) journalRun(ctx context.Context, p *pendingToggle, mutations []cascade.Mutation, outcome model.CascadeOutcome, runErr error) {
	if w.journal == nil {
		return
	}

	affected := make(pq.Int64Array, 0, len(mutations))
	planned := make([]interface{}, 0, len(mutations))
	for _, m := range mutations {
		affected = append(affected, m.ID)
		planned = append(planned, map[string]interface{}{"entity_type": string(m.Type), "id": m.ID})
	}

	run := &model.CascadeRun{
		ID:          uuid.New(),
		CompID:      w.compID,
		UserID:      p.userID,
		Domain:      p.h.Name,
		RootType:    string(p.entityType),
		RootID:      p.id,
		NewStatus:   int(p.newStatus),
		Outcome:     outcome,
		AffectedIDs: affected,
		Mutations:   model.JSONB{"mutations": planned},
	}
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}

	var event *model.CascadeEvent
	if outcome == model.CascadeApplied {
		event = &model.CascadeEvent{
			EventID:   uuid.New(),
			CompID:    w.compID,
			EventType: model.EventStatusChanged,
			Status:    model.OutboxStatusPending,
			Payload: model.JSONB{
				"run_id":     run.ID.String(),
				"comp_id":    w.compID,
				"domain":     p.h.Name,
				"root_type":  string(p.entityType),
				"root_id":    p.id,
				"new_status": int(p.newStatus),
				"affected":   len(mutations),
			},
		}
	}

	if err := w.journal.Record(context.WithoutCancel(ctx), run, event); err != nil {
		w.logger.Warn("failed to journal cascade", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
}

func (w *Workspace) publish(ctx context.Context, p *pendingToggle, mutations []cascade.Mutation) {
	if w.publisher == nil {
		return
	}
	touched := cascade.TouchedTypes(mutations)
	types := make([]string, 0, len(touched))
	for _, t := range touched {
		types = append(types, string(t))
	}
	change := eventbus.StatusChanged{
		CompID:    w.compID,
		Domain:    p.h.Name,
		RootType:  string(p.entityType),
		RootID:    p.id,
		NewStatus: int(p.newStatus),
		Types:     types,
		Affected:  len(mutations),
	}
	if err := w.publisher.PublishStatusChanged(context.WithoutCancel(ctx), eventbus.TypeStatusChanged, change); err != nil {
		w.logger.Warn("failed to publish status change", zap.Error(err))
	}
}
