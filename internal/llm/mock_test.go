package llm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func mockComplete(t *testing.T, prompt string) string {
	t.Helper()
	resp, err := NewMock().Complete(context.Background(), "any", []Message{
		{Role: "system", Content: prompt},
	}, Options{})
	if err != nil {
		t.Fatalf("mock Complete: %v", err)
	}
	return resp.Content
}

func TestMockDispatch(t *testing.T) {
	// The plan marker yields a YAML list.
	plan := mockComplete(t, "Output ONLY the Research Plan (YAML) as a list")
	if !strings.Contains(plan, "- id: T01") {
		t.Errorf("plan marker did not yield a YAML plan: %q", plan)
	}

	// The score marker yields a JSON object with an in-range score.
	var score struct {
		Overall float64 `json:"overall_score"`
	}
	if err := json.Unmarshal([]byte(mockComplete(t, `respond with "overall_score"`)), &score); err != nil {
		t.Fatalf("score payload is not valid JSON: %v", err)
	}
	if score.Overall < 0 || score.Overall > 1 {
		t.Errorf("overall_score out of range: %v", score.Overall)
	}

	// The gap marker yields a JSON array.
	var gaps []map[string]any
	if err := json.Unmarshal([]byte(mockComplete(t, `respond with "gap_type" entries`)), &gaps); err != nil {
		t.Fatalf("gaps payload is not valid JSON: %v", err)
	}
	if len(gaps) == 0 {
		t.Error("gaps payload is empty")
	}

	// The refinement marker yields a JSON array.
	var refs []map[string]any
	if err := json.Unmarshal([]byte(mockComplete(t, `respond with "gap_addressed" entries`)), &refs); err != nil {
		t.Fatalf("refinements payload is not valid JSON: %v", err)
	}
	if len(refs) == 0 {
		t.Error("refinements payload is empty")
	}

	// The report marker yields markdown with the section skeleton.
	report := mockComplete(t, "Output ONLY the Markdown Report")
	if !strings.Contains(report, "## Executive Summary") {
		t.Errorf("report payload missing sections: %q", report)
	}
}

func TestMockHealth(t *testing.T) {
	if !NewMock().Health(context.Background()) {
		t.Error("mock must always report healthy")
	}
}
