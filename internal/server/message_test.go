package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/merchantnet/matchd-go/internal/orchestrator"
)

// ---------------------------------------------------------------------------
// Fake pipeline for handler tests
// ---------------------------------------------------------------------------

// fakePipeline implements the pipeline interface for tests.
type fakePipeline struct {
	// out is returned from Run when err is nil.
	out orchestrator.Output
	// status is returned from Status.
	status orchestrator.Status
	// err is returned from both Run and Status.
	err error
	// gotInput records the last Input passed to Run.
	gotInput orchestrator.Input
}

func (f *fakePipeline) Run(_ context.Context, in orchestrator.Input) (orchestrator.Output, error) {
	f.gotInput = in
	if f.err != nil {
		return orchestrator.Output{}, f.err
	}
	return f.out, nil
}

func (f *fakePipeline) Status(context.Context) (orchestrator.Status, error) {
	if f.err != nil {
		return orchestrator.Status{}, f.err
	}
	return f.status, nil
}

// newMessageTestServer builds a *Server wired with the given pipeline fake
// and a fresh metrics registry.
func newMessageTestServer(p pipeline) *Server {
	return &Server{
		pipe:    p,
		cfg:     &Config{Port: 8080},
		log:     slog.Default(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

// ---------------------------------------------------------------------------
// POST /api/message — validation error paths (no pipeline needed)
// ---------------------------------------------------------------------------

func TestHandleMessage_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newMessageTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`not-json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleMessage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleMessage_MissingMessage(t *testing.T) {
	t.Parallel()

	s := newMessageTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"user_id":"123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleMessage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleMessage_MissingUserID(t *testing.T) {
	t.Parallel()

	s := newMessageTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"message":"procuro parceiros"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleMessage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/message — happy path and pipeline errors
// ---------------------------------------------------------------------------

func TestHandleMessage_Success(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{out: orchestrator.Output{
		Response:            "Mensagem aprovada.",
		SourceAgentResponse: "allow",
	}}
	s := newMessageTestServer(p)

	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"message":"olá","user_id":"123","feedback":"positive"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleMessage(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var out orchestrator.Output
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Response != "Mensagem aprovada." {
		t.Errorf("unexpected response: %q", out.Response)
	}

	if p.gotInput.UserID != "123" || p.gotInput.Feedback != "positive" {
		t.Errorf("pipeline received wrong input: %+v", p.gotInput)
	}
}

func TestHandleMessage_PipelineError(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{err: fmt.Errorf("model unavailable")}
	s := newMessageTestServer(p)

	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"message":"olá","user_id":"123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleMessage(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/status
// ---------------------------------------------------------------------------

func TestHandleStatus_Success(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{status: orchestrator.Status{
		Agents:         []string{"RouterAgent", "ModeratorAgent"},
		FeedbackCounts: map[string]int{"123": 2},
	}}
	s := newMessageTestServer(p)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()

	s.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var st orchestrator.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(st.Agents) != 2 || st.FeedbackCounts["123"] != 2 {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestHandleStatus_Error(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{err: fmt.Errorf("ledger unavailable")}
	s := newMessageTestServer(p)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()

	s.handleStatus(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Full stack through New: routing, auth, and metrics endpoint
// ---------------------------------------------------------------------------

func TestServer_FullStack(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{out: orchestrator.Output{Response: "ok"}}
	s, err := New(p, &Config{APIKey: "sekret", Logger: slog.Default()})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer s.stopRL()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// Unauthenticated request to a protected route is rejected.
	resp, err := http.Post(ts.URL+"/api/message", "application/json",
		strings.NewReader(`{"message":"olá","user_id":"123"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	// Authenticated request succeeds.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/message",
		strings.NewReader(`{"message":"olá","user_id":"123"}`))
	req.Header.Set("Authorization", "Bearer sekret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", resp.StatusCode)
	}

	// Health and metrics are open.
	for _, path := range []string{"/api/health", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestNew_NilPipeline(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for nil pipeline")
	}
}
