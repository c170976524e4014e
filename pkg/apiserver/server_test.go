package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/apiclient"
	"github.com/agencydesk/mdconsole/pkg/auth"
	"github.com/agencydesk/mdconsole/pkg/config"
	"github.com/agencydesk/mdconsole/pkg/console"
)

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

// fakeMasterData serves one company's agencies and schemes.
type fakeMasterData struct {
	mu       sync.Mutex
	token    string
	rows     map[string][]map[string]interface{}
	patched  []string
	badToken bool
}

func newFakeMasterData(token string) *fakeMasterData {
	return &fakeMasterData{
		token: token,
		rows: map[string][]map[string]interface{}{
			"/agencies": {
				{"id": 1, "status": 1, "comp_id": 7, "agency_name": "Max Life Insurance"},
				{"id": 2, "status": 1, "comp_id": 7, "agency_name": "Star Health"},
			},
			"/schemes": {
				{"id": 1, "status": 1, "comp_id": 7, "agency_id": 1, "scheme_name": "Term Plus", "seq_no": 0},
				{"id": 2, "status": 1, "comp_id": 7, "agency_id": 1, "scheme_name": "Savings Max", "seq_no": 1},
				{"id": 3, "status": 1, "comp_id": 7, "agency_id": 2, "scheme_name": "Family Floater", "seq_no": 0},
			},
		},
	}
}

func (f *fakeMasterData) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+f.token {
		f.badToken = true
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	endpoint := "/" + parts[0]
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(f.rows[endpoint])
	case http.MethodPatch:
		f.patched = append(f.patched, r.URL.Path)
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, row := range f.rows[endpoint] {
			if endpoint+"/"+jsonNumber(row["id"]) == r.URL.Path {
				for k, v := range body {
					row[k] = v
				}
				_ = json.NewEncoder(w).Encode(row)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func jsonNumber(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func newTestServer(t *testing.T) (*Server, *fakeMasterData, string) {
	t.Helper()
	tokens := auth.NewTokenManager([]byte("test-secret"), time.Hour)
	token, err := tokens.Issue(7, 11, "asha")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	upstream := newFakeMasterData(token)
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := &config.Config{API: config.APIConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}}
	client := apiclient.NewClient(cfg.API, auth.RequestTokens{}, zap.NewNop())
	manager := console.NewManager(client, console.Options{Logger: zap.NewNop()})
	return NewServer(manager, tokens, cfg, zap.NewNop()), upstream, token
}

func do(t *testing.T, server *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(nil, auth.NewTokenManager([]byte("k"), time.Hour), &config.Config{}, zap.NewNop())

	recorder := do(t, server, http.MethodGet, "/health", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var response healthResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" {
		t.Fatalf("expected status ok, got %q", response.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := NewServer(nil, auth.NewTokenManager([]byte("k"), time.Hour), &config.Config{}, zap.NewNop())

	recorder := do(t, server, http.MethodGet, "/metrics", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
}

func TestAPIAuthRequired(t *testing.T) {
	server, _, _ := newTestServer(t)

	recorder := do(t, server, http.MethodGet, "/api/v1/domains", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}

	var response errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Error != "missing authorization" {
		t.Fatalf("expected missing authorization error, got %q", response.Error)
	}
}

func TestListDomains(t *testing.T) {
	server, _, token := newTestServer(t)

	recorder := do(t, server, http.MethodGet, "/api/v1/domains", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var response struct {
		Domains []struct {
			Name string `json:"name"`
		} `json:"domains"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Domains) != 5 {
		t.Fatalf("expected 5 domains, got %d", len(response.Domains))
	}

	if recorder := do(t, server, http.MethodGet, "/api/v1/domains/payroll", token, ""); recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown domain, got %d", recorder.Code)
	}
}

func TestToggleConfirmFlow(t *testing.T) {
	server, upstream, token := newTestServer(t)

	recorder := do(t, server, http.MethodGet, "/api/v1/domains/agency/agency/1/dependents", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("dependents: expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = do(t, server, http.MethodPost, "/api/v1/domains/agency/agency/1/toggle", token, "")
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("toggle: expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var pending console.Outcome
	if err := json.Unmarshal(recorder.Body.Bytes(), &pending); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	if pending.Ticket == "" || len(pending.Dependents) != 2 {
		t.Fatalf("expected a ticket and 2 dependents, got %+v", pending)
	}

	recorder = do(t, server, http.MethodPost, "/api/v1/domains/agency/agency/1/toggle", token, "")
	if recorder.Code != http.StatusConflict {
		t.Fatalf("second toggle: expected 409, got %d", recorder.Code)
	}

	recorder = do(t, server, http.MethodPost, "/api/v1/confirmations/"+pending.Ticket, token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var applied console.Outcome
	if err := json.Unmarshal(recorder.Body.Bytes(), &applied); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	if applied.Notice != "Max Life Insurance and its 2 related records have been deactivated" {
		t.Fatalf("unexpected notice %q", applied.Notice)
	}

	upstream.mu.Lock()
	patched := len(upstream.patched)
	badToken := upstream.badToken
	upstream.mu.Unlock()
	if patched != 3 {
		t.Fatalf("expected 3 PATCH requests, got %d", patched)
	}
	if badToken {
		t.Fatalf("upstream saw a request without the caller's token")
	}

	recorder = do(t, server, http.MethodDelete, "/api/v1/confirmations/"+pending.Ticket, token, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("cancel after confirm: expected 404, got %d", recorder.Code)
	}
}

func TestCreateValidationError(t *testing.T) {
	server, _, token := newTestServer(t)

	recorder := do(t, server, http.MethodPost, "/api/v1/domains/agency/agency_scheme", token, `{"agency_id": 1}`)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var response errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Field != "scheme_name" {
		t.Fatalf("expected scheme_name field error, got %+v", response)
	}
}

func TestRemoveNotAllowed(t *testing.T) {
	server, _, token := newTestServer(t)

	recorder := do(t, server, http.MethodDelete, "/api/v1/domains/agency/agency/1", token, "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestCascadesWithoutJournal(t *testing.T) {
	server, _, token := newTestServer(t)

	recorder := do(t, server, http.MethodGet, "/api/v1/cascades", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}
