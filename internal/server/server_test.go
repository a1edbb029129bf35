package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/meganet/portal/internal/authz"
	"github.com/meganet/portal/internal/db"
	"github.com/meganet/portal/internal/flows"
	"github.com/meganet/portal/internal/metrics"
)

func openDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// newFlowServer registers the flow routes the way the server command does.
func newFlowServer(t *testing.T, cfg Config, tokens *authz.Tokens, m *metrics.Metrics) *Server {
	t.Helper()
	database := openDB(t)
	srv := New(cfg, database, nil, tokens, m)

	store := flows.NewStore(database)
	svc := flows.NewService(store, authz.NewPolicy("1"), nil)
	flows.RegisterRoutes(srv.API(), svc, flows.NewEngine(store), nil)
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	srv := New(Config{Port: 0}, openDB(t), nil, nil, nil)

	w := serve(srv, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	srv := New(Config{}, database, nil, nil, nil)
	database.Close()

	w := serve(srv, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := New(Config{Port: 0, AllowAll: true}, openDB(t), nil, nil, nil)

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := serve(srv, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestBasePath(t *testing.T) {
	srv := newFlowServer(t, Config{BasePath: "/api/chatbox/"}, nil, nil)

	w := serve(srv, httptest.NewRequest("GET", "/api/chatbox/flow/42", nil))
	if w.Code != http.StatusOK {
		t.Errorf("mounted route: status = %d, want 200", w.Code)
	}
	w = serve(srv, httptest.NewRequest("GET", "/flow/42", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unmounted route: status = %d, want 404", w.Code)
	}
	w = serve(srv, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz stays at the root: status = %d", w.Code)
	}
}

func TestTokenRoleTakesPrecedence(t *testing.T) {
	tokens := authz.NewTokens("0123456789abcdef0123456789abcdef", time.Hour)
	srv := newFlowServer(t, Config{}, tokens, nil)

	adminToken, err := tokens.Issue("7", "alice", "alice@example.com", "1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	userToken, err := tokens.Issue("8", "bob", "bob@example.com", "2")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{"token admin, body silent", adminToken, `{"question_id":42,"step_text":"A"}`, http.StatusCreated},
		{"token user overrides body admin", userToken, `{"question_id":42,"step_text":"A","role_id":1}`, http.StatusForbidden},
		{"no token, body admin", "", `{"question_id":42,"step_text":"A","role_id":1}`, http.StatusCreated},
		{"invalid token", "not-a-jwt", `{"question_id":42,"step_text":"A","role_id":1}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/flow", strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := serve(srv, req)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body)
			}
		})
	}
}

func TestRequireToken(t *testing.T) {
	tokens := authz.NewTokens("0123456789abcdef0123456789abcdef", time.Hour)
	srv := newFlowServer(t, Config{RequireToken: true}, tokens, nil)

	w := serve(srv, httptest.NewRequest("GET", "/flow/42", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	w = serve(srv, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz needs no token: status = %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	srv := newFlowServer(t, Config{MetricsPath: "/metrics"}, nil, m)

	serve(srv, httptest.NewRequest("GET", "/flow/next/1/maybe", nil))

	w := serve(srv, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `route="/flow/next/{id}/{choice}"`) {
		t.Errorf("metrics missing request series:\n%s", w.Body)
	}
}
