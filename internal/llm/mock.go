package llm

import (
	"context"
	"strings"
)

// Mock is the offline model client used when no credentials are configured
// and throughout the test suite. Responses are canned, schema-valid for every
// role parser, and fully deterministic.
type Mock struct{}

// NewMock returns the offline client.
func NewMock() *Mock { return &Mock{} }

const mockPlanYAML = `- id: T01
  query: "Overview and background of the research topic"
  sources: ["web"]
- id: T02
  query: "Key players, competitors and surrounding context"
  sources: ["web", "news"]
- id: T03
  query: "Recent developments and current state"
  sources: ["web", "news"]
`

const mockScoreJSON = `{
  "overall_score": 0.8,
  "completion_level": "adequate",
  "coverage_areas": {"overview": 0.9, "context": 0.7, "recent_developments": 0.8},
  "confidence": 0.85,
  "reasoning": "Mock evaluation: the collected evidence covers the main aspects of the query."
}`

const mockGapsJSON = `[
  {
    "gap_type": "missing_recent_data",
    "description": "Coverage of developments from the last quarter is thin",
    "priority": 4,
    "suggested_query": "most recent developments and announcements"
  }
]`

const mockRefinementsJSON = `[
  {
    "query": "most recent developments and announcements",
    "gap_addressed": "missing_recent_data",
    "priority": 4,
    "expected_sources": ["web", "news"]
  }
]`

const mockReportMD = `# Research Report

## Executive Summary
This is a mock report generated without model credentials.

## Key Findings
- Offline mode is active; findings are placeholders.

## Detailed Analysis
No model provider was available, so no analysis was performed.

## Conclusions
Configure SAPTIVA_API_KEY to produce real reports.

## Sources
None.
`

// Complete inspects the prompt for role markers and returns the matching
// canned payload: a YAML plan, an evaluation object, a gap or refinement
// array, or a markdown report.
func (m *Mock) Complete(_ context.Context, _ string, messages []Message, _ Options) (Response, error) {
	var prompt strings.Builder
	for _, msg := range messages {
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n")
	}
	p := prompt.String()

	var content string
	switch {
	case strings.Contains(p, "Research Plan (YAML)"):
		content = mockPlanYAML
	case strings.Contains(p, "overall_score"):
		content = mockScoreJSON
	case strings.Contains(p, "gap_type"):
		content = mockGapsJSON
	case strings.Contains(p, "gap_addressed"):
		content = mockRefinementsJSON
	case strings.Contains(p, "Markdown Report"):
		content = mockReportMD
	default:
		content = "Mock response."
	}
	return Response{Content: content, Raw: []byte(content)}, nil
}

// Health always reports healthy: the mock has no dependency to probe.
func (m *Mock) Health(context.Context) bool { return true }
