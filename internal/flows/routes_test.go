package flows

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func setupRouter(t *testing.T) (chi.Router, *Store) {
	t.Helper()
	svc, engine, store := setupService(t)
	r := chi.NewRouter()
	RegisterRoutes(r, svc, engine, nil)
	return r, store
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeStep(t *testing.T, rec *httptest.ResponseRecorder) Step {
	t.Helper()
	var st Step
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode step: %v", err)
	}
	return st
}

func decodeNext(t *testing.T, rec *httptest.ResponseRecorder) NextResult {
	t.Helper()
	var res NextResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode next: %v", err)
	}
	return res
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return body["error"]
}

// Question 42: A asks "Is the device powered on?", yes leads to B, which is
// final. Answering yes at B or no at A ends the flow.
func TestHTTPGuidedFlowScenario(t *testing.T) {
	r, _ := setupRouter(t)

	rec := do(t, r, http.MethodPost, "/flow", `{"question_id":42,"step_text":"Is the device powered on?","role_id":1,"user_id":7}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create A: status = %d, body = %s", rec.Code, rec.Body)
	}
	a := decodeStep(t, rec)

	rec = do(t, r, http.MethodPost, "/flow", `{"question_id":"42","step_text":"Contact support.","is_final":true,"role_id":"1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create B: status = %d, body = %s", rec.Code, rec.Body)
	}
	b := decodeStep(t, rec)
	if a.StepID != 1 || b.StepID != 2 || !b.IsFinal {
		t.Fatalf("ids = %d, %d; b = %+v", a.StepID, b.StepID, b)
	}

	rec = do(t, r, http.MethodPut, "/flow/1", `{"step_text":"Is the device powered on?","yes_next_step":2,"no_next_step":null,"role_id":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update A: status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = do(t, r, http.MethodGet, "/flow/start/42", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status = %d", rec.Code)
	}
	if st := decodeStep(t, rec); st.StepID != 1 {
		t.Errorf("start = %d, want 1", st.StepID)
	}

	steps := []struct {
		path     string
		wantStep int64
		wantEnd  bool
	}{
		{"/flow/next/1/yes", 2, false},
		{"/flow/next/2/yes", 2, true},
		{"/flow/next/1/no", 1, true},
		{"/flow/next/1/Yes", 2, false},
	}
	for _, s := range steps {
		rec = do(t, r, http.MethodGet, s.path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", s.path, rec.Code)
		}
		res := decodeNext(t, rec)
		if res.Step.StepID != s.wantStep || res.End != s.wantEnd {
			t.Errorf("%s = {step %d, end %v}, want {step %d, end %v}", s.path, res.Step.StepID, res.End, s.wantStep, s.wantEnd)
		}
	}

	rec = do(t, r, http.MethodGet, "/flow/42", "")
	var listed []Step
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 2 || listed[0].YesNextStep == nil || *listed[0].YesNextStep != 2 {
		t.Errorf("list = %+v", listed)
	}
}

func TestHTTPCreateErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"not admin", `{"question_id":42,"step_text":"x","role_id":2}`, http.StatusForbidden, "admin only"},
		{"no role", `{"question_id":42,"step_text":"x"}`, http.StatusForbidden, "admin only"},
		{"not admin with bad input", `{"question_id":"abc","role_id":2}`, http.StatusForbidden, "admin only"},
		{"missing step_text", `{"question_id":42,"role_id":1}`, http.StatusBadRequest, "step_text is required"},
		{"bad question_id", `{"question_id":"abc","step_text":"x","role_id":1}`, http.StatusBadRequest, "question_id must be an integer"},
		{"unknown question", `{"question_id":5,"step_text":"x","role_id":1}`, http.StatusNotFound, "question 5 not found"},
		{"malformed json", `{"question_id":`, http.StatusBadRequest, "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store := setupRouter(t)
			rec := do(t, r, http.MethodPost, "/flow", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if msg := errorBody(t, rec); msg != tt.message {
				t.Errorf("error = %q, want %q", msg, tt.message)
			}
			if n := countSteps(t, store, 42); n != 0 {
				t.Errorf("%d steps persisted, want 0", n)
			}
		})
	}
}

func TestHTTPTraversalErrors(t *testing.T) {
	r, _ := setupRouter(t)
	do(t, r, http.MethodPost, "/flow", `{"question_id":42,"step_text":"A","role_id":1}`)

	tests := []struct {
		path   string
		status int
	}{
		{"/flow/start/43", http.StatusNotFound},
		{"/flow/start/abc", http.StatusBadRequest},
		{"/flow/next/1/maybe", http.StatusBadRequest},
		{"/flow/next/99/yes", http.StatusNotFound},
		{"/flow/next/x/yes", http.StatusBadRequest},
		{"/flow/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(t, r, http.MethodGet, tt.path, "")
		if rec.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.status)
		}
	}
}

func TestHTTPStartMessage(t *testing.T) {
	r, _ := setupRouter(t)

	rec := do(t, r, http.MethodGet, "/flow/start/42", "")
	if msg := errorBody(t, rec); msg != "no guided flow defined for this question" {
		t.Errorf("error = %q", msg)
	}
}

func TestHTTPCycleWarningHeader(t *testing.T) {
	r, _ := setupRouter(t)
	do(t, r, http.MethodPost, "/flow", `{"question_id":42,"step_text":"A","role_id":1}`)

	rec := do(t, r, http.MethodPost, "/flow", `{"question_id":42,"step_text":"B","yes_next_step":"1","role_id":1}`)
	if got := rec.Header().Get(WarningHeader); got != "" {
		t.Errorf("unexpected warning %q", got)
	}

	rec = do(t, r, http.MethodPut, "/flow/1", `{"step_text":"A","no_next_step":2,"role_id":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(WarningHeader); !strings.Contains(got, "cycle") {
		t.Errorf("warning header = %q, want cycle warning", got)
	}

	rec = do(t, r, http.MethodGet, "/flow/42/report", "")
	var rep Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(rep.Cycles) != 1 || rep.StepCount != 2 {
		t.Errorf("report = %+v", rep)
	}
}

func TestHTTPUpdateAndDelete(t *testing.T) {
	r, _ := setupRouter(t)
	do(t, r, http.MethodPost, "/flow", `{"question_id":42,"step_text":"A","role_id":1}`)
	do(t, r, http.MethodPost, "/flow", `{"question_id":42,"step_text":"B","yes_next_step":1,"role_id":1}`)

	if rec := do(t, r, http.MethodPut, "/flow/9", `{"step_text":"x","role_id":1}`); rec.Code != http.StatusNotFound {
		t.Errorf("update missing: status = %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPut, "/flow/1", `{"step_text":"x","role_id":3}`); rec.Code != http.StatusForbidden {
		t.Errorf("update as non-admin: status = %d", rec.Code)
	}
	if rec := do(t, r, http.MethodDelete, "/flow/1", `{"role_id":3}`); rec.Code != http.StatusForbidden {
		t.Errorf("delete as non-admin: status = %d", rec.Code)
	}

	rec := do(t, r, http.MethodDelete, "/flow/1", `{"role_id":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	var res DeleteResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.StepID != 1 || len(res.ClearedReferences) != 1 || res.ClearedReferences[0] != 2 {
		t.Errorf("delete result = %+v", res)
	}

	if rec := do(t, r, http.MethodDelete, "/flow/1", `{"role_id":1}`); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d", rec.Code)
	}

	// The start step moves to the next lowest id.
	rec = do(t, r, http.MethodGet, "/flow/start/42", "")
	if st := decodeStep(t, rec); st.StepID != 2 || st.YesNextStep != nil {
		t.Errorf("start after delete = %+v", st)
	}
}
