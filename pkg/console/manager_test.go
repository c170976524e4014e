package console

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/domains"
	"github.com/agencydesk/mdconsole/pkg/eventbus"
)

func TestManagerKeepsOneWorkspacePerCompany(t *testing.T) {
	m := NewManager(nil, Options{Logger: zap.NewNop()})
	require.Same(t, m.Workspace(1), m.Workspace(1))
	require.NotSame(t, m.Workspace(1), m.Workspace(2))
	require.Equal(t, int64(2), m.Workspace(2).CompID())
	require.Len(t, m.Registry().Names(), 5)
}

func TestManagerHandleEventInvalidates(t *testing.T) {
	h := newHarness(t)
	h.seedAgency()
	ctx := context.Background()

	m := NewManager(nil, Options{Logger: zap.NewNop()})
	m.workspaces[comp] = h.ws

	_, err := h.ws.Load(ctx, domains.Agency)
	require.NoError(t, err)
	require.True(t, h.ws.store.Fresh(domains.TypeAgency))

	event, err := eventbus.NewEvent(eventbus.TypeStatusChanged, eventbus.StatusChanged{CompID: comp, Types: []string{domains.TypeAgency}})
	require.NoError(t, err)

	events := make(chan *eventbus.Event, 1)
	events <- &event
	close(events)
	m.Listen(ctx, events)

	require.False(t, h.ws.store.Fresh(domains.TypeAgency))
	require.True(t, h.ws.store.Fresh(domains.TypeAgencyScheme))
}

func TestManagerSweepsAllWorkspaces(t *testing.T) {
	h := newHarness(t)
	h.seedAgency()

	m := NewManager(nil, Options{Logger: zap.NewNop()})
	m.workspaces[comp] = h.ws

	_, err := h.ws.RequestToggle(context.Background(), domains.Agency, domains.TypeAgency, 1)
	require.NoError(t, err)
	require.Equal(t, 1, m.Sweep(h.now.Add(time.Hour)))
}
