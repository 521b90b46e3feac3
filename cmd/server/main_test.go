package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/guido-cesarano/taskindex/pkg/config"
	"github.com/guido-cesarano/taskindex/pkg/dispatch"
	"github.com/guido-cesarano/taskindex/pkg/gate"
	"github.com/guido-cesarano/taskindex/pkg/index"
	"github.com/guido-cesarano/taskindex/pkg/tasks"
)

func setupTestServer(t *testing.T, apiKey string) (*http.ServeMux, *index.Tree) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	limiter := gate.New(s.Addr())
	t.Cleanup(func() { limiter.Close() })

	cfg := config.Default()
	cfg.APIKey = apiKey
	cfg.RateLimit = config.RateLimit{Rate: 100, Burst: 1000}

	idx := index.New()
	sched := dispatch.NewScheduler(idx)
	return setupRouter(idx, limiter, sched, cfg), idx
}

func TestAuthMiddleware(t *testing.T) {
	mux, _ := setupTestServer(t, "secret-key")

	tests := []struct {
		name           string
		headerKey      string
		headerValue    string
		expectedStatus int
	}{
		{
			name:           "No API Key",
			headerKey:      "",
			headerValue:    "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong API Key",
			headerKey:      "X-API-Key",
			headerValue:    "wrong-key",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Correct API Key",
			headerKey:      "X-API-Key",
			headerValue:    "secret-key",
			expectedStatus: http.StatusBadRequest, // 400 because body is empty, but auth passed
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/tasks", nil)
			if tt.headerKey != "" {
				req.Header.Set(tt.headerKey, tt.headerValue)
			}

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	mux, _ := setupTestServer(t, "")

	req := httptest.NewRequest("POST", "/tasks", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	// Auth passes, then the empty body fails decoding with 400.
	if w.Code == http.StatusUnauthorized {
		t.Errorf("Expected auth to be disabled, got 401")
	}
}

func TestSubmitAndLookup(t *testing.T) {
	mux, idx := setupTestServer(t, "")

	body := `{"priority": 5, "description": "write release notes", "assigned_to": "dana"}`
	req := httptest.NewRequest("POST", "/tasks", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created tasks.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.ID == "" || created.Status != tasks.StatusPending {
		t.Errorf("Unexpected created task: %+v", created)
	}
	if idx.Len() != 1 {
		t.Errorf("Expected 1 task in index, got %d", idx.Len())
	}

	req = httptest.NewRequest("GET", "/tasks?priority=5", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var got tasks.Task
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Description != "write release notes" || got.AssignedTo != "dana" {
		t.Errorf("Unexpected task: %+v", got)
	}
}

func TestLookupAbsent(t *testing.T) {
	mux, _ := setupTestServer(t, "")

	req := httptest.NewRequest("GET", "/tasks?priority=99", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for absent task, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/tasks", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing priority, got %d", w.Code)
	}
}

func TestRangeEndpoint(t *testing.T) {
	mux, idx := setupTestServer(t, "")
	for _, p := range []int{50, 20, 40, 10, 30} {
		if err := idx.Insert(tasks.New(p, fmt.Sprintf("task-%d", p))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	req := httptest.NewRequest("GET", "/tasks/range?min=20&max=40", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got []tasks.Task
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 tasks, got %d", len(got))
	}
	for i, want := range []int{20, 30, 40} {
		if got[i].Priority != want {
			t.Errorf("Result %d: expected priority %d, got %d", i, want, got[i].Priority)
		}
	}

	// Inverted bounds are rejected.
	req = httptest.NewRequest("GET", "/tasks/range?min=40&max=20", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for inverted range, got %d", w.Code)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	mux, idx := setupTestServer(t, "")
	if err := idx.Insert(tasks.New(7, "doomed")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/tasks?priority=7", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if idx.Len() != 0 {
		t.Errorf("Expected empty index after delete, got %d", idx.Len())
	}

	// Deleting again: not found.
	req = httptest.NewRequest("DELETE", "/tasks?priority=7", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for absent task, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	mux, idx := setupTestServer(t, "")
	for p := 1; p <= 31; p++ {
		if err := idx.Insert(tasks.New(p, "t")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var stats index.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.Count != 31 || !stats.Balanced {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	// 31 sequential keys pack into a height-5 AVL tree.
	if stats.Height != 5 {
		t.Errorf("Expected height 5, got %d", stats.Height)
	}
	if stats.MinPriority != 1 || stats.MaxPriority != 31 {
		t.Errorf("Expected min/max 1/31, got %d/%d", stats.MinPriority, stats.MaxPriority)
	}
}

func TestResetEndpoint(t *testing.T) {
	mux, idx := setupTestServer(t, "")
	for p := 0; p < 10; p++ {
		if err := idx.Insert(tasks.New(p, "t")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	req := httptest.NewRequest("POST", "/reset", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if idx.Len() != 0 {
		t.Errorf("Expected empty index after reset, got %d", idx.Len())
	}
}

func TestSubmitRateLimited(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	limiter := gate.New(s.Addr())
	t.Cleanup(func() { limiter.Close() })

	cfg := config.Default()
	cfg.RateLimit = config.RateLimit{Rate: 1, Burst: 2}

	idx := index.New()
	mux := setupRouter(idx, limiter, dispatch.NewScheduler(idx), cfg)

	submit := func(p int) int {
		body := fmt.Sprintf(`{"priority": %d, "description": "t"}`, p)
		req := httptest.NewRequest("POST", "/tasks", strings.NewReader(body))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w.Code
	}

	if code := submit(1); code != http.StatusCreated {
		t.Fatalf("Expected 201 within burst, got %d", code)
	}
	if code := submit(2); code != http.StatusCreated {
		t.Fatalf("Expected 201 within burst, got %d", code)
	}
	if code := submit(3); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 past burst, got %d", code)
	}
	if idx.Len() != 2 {
		t.Errorf("Expected 2 admitted tasks, got %d", idx.Len())
	}
}
