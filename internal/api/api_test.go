package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/saptiva-ai/alethia-deepresearch/internal/guard"
	"github.com/saptiva-ai/alethia-deepresearch/internal/llm"
	"github.com/saptiva-ai/alethia-deepresearch/internal/orchestrator"
	"github.com/saptiva-ai/alethia-deepresearch/internal/progress"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/evaluator"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/planner"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/researcher"
	"github.com/saptiva-ai/alethia-deepresearch/internal/roles/writer"
	"github.com/saptiva-ai/alethia-deepresearch/internal/search"
	"github.com/saptiva-ai/alethia-deepresearch/internal/store"
	"github.com/saptiva-ai/alethia-deepresearch/internal/task"
	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
	"github.com/saptiva-ai/alethia-deepresearch/internal/vector"
)

func newTestServer() (*Server, http.Handler) {
	client := llm.NewMock()
	evidence := vector.NewMemory()
	bus := progress.NewBus()
	durable := store.NewMemory()

	p := planner.New(client, "planner")
	r := researcher.New(search.NewMockSearcher(), evidence, guard.NewBasic(), nil, 5, 5)
	e := evaluator.New(client, "analyst")
	w := writer.New(client, evidence, "analyst")
	orch := orchestrator.New(p, r, e, w, evidence, bus, nil, 12)
	tasks := task.NewManager(orch, durable, bus, time.Minute)

	s := NewServer(tasks, bus, client, durable, false, "memory")
	return s, s.Router()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// waitCompleted polls the status endpoint until the task finishes.
func waitCompleted(t *testing.T, h http.Handler, taskID string) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("task %s never completed", taskID)
		case <-time.After(10 * time.Millisecond):
			rr := get(h, "/tasks/"+taskID+"/status")
			if rr.Code != http.StatusOK {
				continue
			}
			var rec types.TaskRecord
			if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
				t.Fatalf("decode status: %v", err)
			}
			if rec.Status == types.StatusFailed {
				t.Fatalf("task failed: %s", rec.Error)
			}
			if rec.Status == types.StatusCompleted {
				return
			}
		}
	}
}

func TestDeepResearchEndToEnd(t *testing.T) {
	_, h := newTestServer()

	rr := postJSON(t, h, "/deep-research", map[string]any{"query": "solar energy outlook"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rr.Code, rr.Body)
	}
	var accepted struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if accepted.TaskID == "" || accepted.Status != "accepted" {
		t.Fatalf("accepted response = %+v", accepted)
	}

	waitCompleted(t, h, accepted.TaskID)

	// The deep report envelope is served once completed.
	rr = get(h, "/deep-research/"+accepted.TaskID)
	if rr.Code != http.StatusOK {
		t.Fatalf("result status = %d", rr.Code)
	}
	var deep struct {
		Status          string         `json:"status"`
		ReportMD        string         `json:"report_md"`
		SourcesBib      string         `json:"sources_bib"`
		ResearchSummary map[string]any `json:"research_summary"`
		QualityMetrics  map[string]any `json:"quality_metrics"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &deep); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if deep.Status != "completed" || deep.ReportMD == "" {
		t.Errorf("envelope = status %q, report %d bytes", deep.Status, len(deep.ReportMD))
	}
	if !strings.Contains(deep.SourcesBib, "evidence sources") {
		t.Errorf("sources_bib = %q", deep.SourcesBib)
	}
	if deep.ResearchSummary["iteration_details"] == nil || deep.ResearchSummary["score_statistics"] == nil {
		t.Errorf("research_summary missing detail rows or statistics: %v", deep.ResearchSummary)
	}
	if deep.QualityMetrics["quality_score"] == nil || deep.QualityMetrics["evidence_count"] == nil {
		t.Errorf("quality_metrics incomplete: %v", deep.QualityMetrics)
	}

	// So is the report envelope.
	rr = get(h, "/reports/"+accepted.TaskID)
	if rr.Code != http.StatusOK {
		t.Fatalf("report status = %d", rr.Code)
	}
	var rep struct {
		Status      string `json:"status"`
		ReportMD    string `json:"report_md"`
		MetricsJSON string `json:"metrics_json"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Status != "completed" || !strings.Contains(rep.ReportMD, "Executive Summary") {
		t.Errorf("report envelope = status %q", rep.Status)
	}
	if !strings.Contains(rep.MetricsJSON, "quality_score") {
		t.Errorf("metrics_json = %q", rep.MetricsJSON)
	}
}

func TestSimpleResearchAccepted(t *testing.T) {
	_, h := newTestServer()
	rr := postJSON(t, h, "/research", map[string]any{"query": "solar energy outlook"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rr.Code, rr.Body)
	}
}

func TestValidation(t *testing.T) {
	_, h := newTestServer()

	cases := []struct {
		name string
		path string
		body map[string]any
	}{
		{"missing query", "/deep-research", map[string]any{}},
		{"iterations too high", "/deep-research", map[string]any{"query": "q", "max_iterations": 11}},
		{"min score too low", "/deep-research", map[string]any{"query": "q", "min_completion_score": 0.01}},
		{"min score zero", "/deep-research", map[string]any{"query": "q", "min_completion_score": 0}},
		{"min score too high", "/deep-research", map[string]any{"query": "q", "min_completion_score": 1.5}},
		{"simple missing query", "/research", map[string]any{}},
	}
	for _, c := range cases {
		if rr := postJSON(t, h, c.path, c.body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", c.name, rr.Code)
		}
	}

	// Malformed JSON is a 400, not a panic.
	req := httptest.NewRequest(http.MethodPost, "/deep-research", strings.NewReader("{nope"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: status = %d, want 400", rr.Code)
	}
}

func TestUnknownTaskLookups(t *testing.T) {
	_, h := newTestServer()
	for _, path := range []string{
		"/tasks/nope/status",
		"/reports/nope",
		"/deep-research/nope",
	} {
		if rr := get(h, path); rr.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rr.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer()
	rr := get(h, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
	var body struct {
		Status    string         `json:"status"`
		Providers map[string]any `json:"providers"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	// The mock model is always healthy.
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
	if healthy, ok := body.Providers["llm"].(bool); !ok || !healthy {
		t.Errorf("llm provider = %v", body.Providers["llm"])
	}
}

func TestMetricsExposed(t *testing.T) {
	_, h := newTestServer()
	rr := get(h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("metrics body missing default collectors")
	}
}
