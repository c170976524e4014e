package console

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/domains"
	"github.com/agencydesk/mdconsole/pkg/eventbus"
	"github.com/agencydesk/mdconsole/pkg/model"
)

// Manager owns one Workspace per company.
type Manager struct {
	api  API
	opts Options

	mu         sync.RWMutex
	workspaces map[int64]*Workspace
}

func NewManager(api API, opts Options) *Manager {
	return &Manager{
		api:        api,
		opts:       opts.withDefaults(),
		workspaces: make(map[int64]*Workspace),
	}
}

func (m *Manager) Workspace(compID int64) *Workspace {
	m.mu.RLock()
	ws, ok := m.workspaces[compID]
	m.mu.RUnlock()
	if ok {
		return ws
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.workspaces[compID]; ok {
		return ws
	}
	ws = NewWorkspace(compID, m.api, m.opts)
	m.workspaces[compID] = ws
	return ws
}

func (m *Manager) Registry() *domains.Registry {
	return m.opts.Registry
}

func (m *Manager) snapshot() []*Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		out = append(out, ws)
	}
	return out
}

// Sweep cancels expired confirmations in every workspace.
func (m *Manager) Sweep(now time.Time) int {
	total := 0
	for _, ws := range m.snapshot() {
		total += ws.Sweep(now)
	}
	return total
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				m.opts.Logger.Info("expired confirmations cancelled", zap.Int("count", n))
			}
		}
	}
}

// HandleEvent marks the collections named by a status or save event stale in the
// affected company's workspace. Companies without a workspace have nothing cached.
func (m *Manager) HandleEvent(event *eventbus.Event) {
	if event.Type != eventbus.TypeStatusChanged && event.Type != eventbus.TypeRecordSaved {
		return
	}
	change, err := eventbus.DecodeStatusChanged(event)
	if err != nil {
		m.opts.Logger.Warn("failed to decode event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	m.mu.RLock()
	ws, ok := m.workspaces[change.CompID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	types := make([]model.EntityType, 0, len(change.Types))
	for _, t := range change.Types {
		types = append(types, model.EntityType(t))
	}
	ws.Invalidate(types...)
	m.opts.Logger.Debug("collections invalidated by event",
		zap.Int64("comp_id", change.CompID),
		zap.Strings("types", change.Types),
	)
}

// Listen applies events until the channel closes or ctx is done.
func (m *Manager) Listen(ctx context.Context, events <-chan *eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.HandleEvent(event)
		}
	}
}
