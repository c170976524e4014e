package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/apiclient"
	"github.com/agencydesk/mdconsole/pkg/config"
	"github.com/agencydesk/mdconsole/pkg/eventbus"
	"github.com/agencydesk/mdconsole/pkg/model"
)

const comp = int64(1)

type row map[string]interface{}

// upstream is an in-memory master-data API.
type upstream struct {
	mu        sync.Mutex
	tables    map[string]map[int64]row
	nextID    int64
	failPatch map[string]bool
	failList  bool
	patches   []string

	// the next list request waits on listGate until it is closed or the caller goes away
	listGate chan struct{}
	listSeen chan struct{}
}

func newUpstream() *upstream {
	return &upstream{
		tables:    make(map[string]map[int64]row),
		nextID:    1000,
		failPatch: make(map[string]bool),
	}
}

func (u *upstream) seed(endpoint string, rows ...row) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tables[endpoint] == nil {
		u.tables[endpoint] = make(map[int64]row)
	}
	for _, r := range rows {
		if _, ok := r["comp_id"]; !ok {
			r["comp_id"] = comp
		}
		if _, ok := r["status"]; !ok {
			r["status"] = 1
		}
		u.tables[endpoint][asInt(r["id"])] = r
	}
}

func (u *upstream) status(endpoint string, id int64) int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return asInt(u.tables[endpoint][id]["status"])
}

func (u *upstream) field(endpoint string, id int64, name string) interface{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tables[endpoint][id][name]
}

func (u *upstream) failPatchOn(endpoint string, id int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failPatch[endpoint+"/"+strconv.FormatInt(id, 10)] = true
}

func (u *upstream) setFailList(fail bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failList = fail
}

// gateNextList parks the next list request. The returned channel fires once that
// request has arrived.
func (u *upstream) gateNextList(t *testing.T) <-chan struct{} {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	gate := make(chan struct{})
	u.listGate = gate
	u.listSeen = make(chan struct{}, 1)
	t.Cleanup(func() { close(gate) })
	return u.listSeen
}

func (u *upstream) patchCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.patches)
}

func asInt(v interface{}) int64 {
	switch typed := v.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	}
	return 0
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.Count(strings.Trim(r.URL.Path, "/"), "/") == 0 {
		u.mu.Lock()
		gate, seen := u.listGate, u.listSeen
		u.listGate, u.listSeen = nil, nil
		u.mu.Unlock()
		if gate != nil {
			seen <- struct{}{}
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	endpoint := "/" + parts[0]
	var id int64
	if len(parts) > 1 {
		id, _ = strconv.ParseInt(parts[1], 10, 64)
	}
	table := u.tables[endpoint]
	if table == nil {
		table = make(map[int64]row)
		u.tables[endpoint] = table
	}

	writeJSON := func(status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case r.Method == http.MethodGet && id == 0:
		if u.failList {
			writeJSON(http.StatusServiceUnavailable, map[string]string{"message": "down"})
			return
		}
		ids := make([]int64, 0, len(table))
		for k := range table {
			ids = append(ids, k)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out := make([]row, 0, len(ids))
		for _, k := range ids {
			out = append(out, table[k])
		}
		writeJSON(http.StatusOK, out)
	case r.Method == http.MethodGet:
		existing, ok := table[id]
		if !ok {
			writeJSON(http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		writeJSON(http.StatusOK, existing)
	case r.Method == http.MethodPost:
		var body row
		_ = json.NewDecoder(r.Body).Decode(&body)
		u.nextID++
		body["id"] = u.nextID
		table[u.nextID] = body
		writeJSON(http.StatusCreated, body)
	case r.Method == http.MethodPut || r.Method == http.MethodPatch:
		if r.Method == http.MethodPatch {
			u.patches = append(u.patches, r.URL.Path)
			if u.failPatch[r.URL.Path] {
				writeJSON(http.StatusInternalServerError, map[string]string{"message": "rejected"})
				return
			}
		}
		existing, ok := table[id]
		if !ok {
			writeJSON(http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		var body row
		_ = json.NewDecoder(r.Body).Decode(&body)
		for k, v := range body {
			existing[k] = v
		}
		writeJSON(http.StatusOK, existing)
	case r.Method == http.MethodDelete:
		delete(table, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type staticTokens struct{}

func (staticTokens) Token(context.Context) (string, error) { return "t", nil }
func (staticTokens) Invalidate(context.Context)            {}

type fakeJournal struct {
	mu     sync.Mutex
	runs   []*model.CascadeRun
	events []*model.CascadeEvent
}

func (j *fakeJournal) Record(_ context.Context, run *model.CascadeRun, event *model.CascadeEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, run)
	if event != nil {
		j.events = append(j.events, event)
	}
	return nil
}

func (j *fakeJournal) List(_ context.Context, compID int64, _ string, _, _ int) ([]model.CascadeRun, int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []model.CascadeRun
	for _, r := range j.runs {
		if r.CompID == compID {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

type fakePublisher struct {
	mu      sync.Mutex
	changes []eventbus.StatusChanged
	types   []string
}

func (p *fakePublisher) PublishStatusChanged(_ context.Context, eventType string, change eventbus.StatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	p.changes = append(p.changes, change)
	return nil
}

type harness struct {
	up        *upstream
	ws        *Workspace
	journal   *fakeJournal
	publisher *fakePublisher
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		up:        newUpstream(),
		journal:   &fakeJournal{},
		publisher: &fakePublisher{},
		now:       time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	srv := httptest.NewServer(h.up)
	t.Cleanup(srv.Close)

	client := apiclient.NewClient(config.APIConfig{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 0,
		PageSize:   100,
	}, staticTokens{}, zap.NewNop())

	h.ws = NewWorkspace(comp, client, Options{
		Journal:         h.journal,
		Publisher:       h.publisher,
		ConfirmationTTL: time.Minute,
		Logger:          zap.NewNop(),
		Now:             func() time.Time { return h.now },
	})
	return h
}

// seedGeography loads India -> Maharashtra -> Mumbai -> Bandra -> Financial District.
func (h *harness) seedGeography() {
	h.up.seed("/countries", row{"id": 1, "country_name": "India"})
	h.up.seed("/states", row{"id": 10, "state_name": "Maharashtra", "country_id": 1})
	h.up.seed("/districts", row{"id": 100, "district_name": "Mumbai", "state_id": 10})
	h.up.seed("/cities", row{"id": 1000, "city_name": "Bandra", "district_id": 100})
	h.up.seed("/areas", row{"id": 10000, "area_name": "Financial District", "city_id": 1000})
}

func (h *harness) seedAgency() {
	h.up.seed("/agencies",
		row{"id": 1, "agency_name": "Max Life Insurance"},
		row{"id": 2, "agency_name": "Star Health"},
	)
	h.up.seed("/schemes",
		row{"id": 1, "scheme_name": "Term Plus", "agency_id": 1, "seq_no": 0},
		row{"id": 2, "scheme_name": "Savings Max", "agency_id": 1, "seq_no": 1},
		row{"id": 3, "scheme_name": "Family Floater", "agency_id": 2, "seq_no": 0},
	)
}
