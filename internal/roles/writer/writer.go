// Package writer produces the final cited markdown report from the
// accumulated evidence.
package writer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/saptiva-ai/alethia-deepresearch/internal/llm"
	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
	"github.com/saptiva-ai/alethia-deepresearch/internal/vector"
)

const recallK = 10

const systemPrompt = `You are a research report writer. Write a thorough, well-cited report that answers the research question using ONLY the evidence provided.

Rules:
- Cite evidence inline using its bracketed key, e.g. [S3].
- Never invent facts that the evidence does not support.
- Use exactly these sections, in order:
  ## Executive Summary
  ## Key Findings
  ## Detailed Analysis
  ## Conclusions
  ## Sources

Output ONLY the Markdown Report (no fences, no preamble).`

// Writer composes the report, recalling extra context from the evidence
// store before prompting the model.
type Writer struct {
	llm   llm.Client
	store vector.Store
	model string
}

// New creates a Writer backed by the given client, store, and model.
func New(client llm.Client, store vector.Store, model string) *Writer {
	return &Writer{llm: client, store: store, model: model}
}

// Report writes the final markdown for mainQuery. The run's evidence is
// merged with a store recall for the main query, originals first, recalled
// items deduplicated by ID. The writer never fails a run: on model error it
// returns a minimal report built from the evidence alone.
func (w *Writer) Report(ctx context.Context, collection, mainQuery string, evidence []types.Evidence) (string, []string) {
	merged := w.withRecall(ctx, collection, mainQuery, evidence)
	sources := sourceLines(merged)

	user := fmt.Sprintf("Research question:\n%s\n\nEvidence:\n%s", mainQuery, evidenceBlock(merged))
	resp, err := w.llm.Complete(ctx, w.model, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}, llm.Options{Temperature: 0.4, MaxTokens: 4000})
	if err != nil {
		log.Printf("[WRITER] WARNING: model failed, emitting fallback report: %v", err)
		return fallbackReport(mainQuery, merged), sources
	}

	report := strings.TrimSpace(llm.StripFences(llm.StripThinkBlocks(resp.Content)))
	if report == "" {
		return fallbackReport(mainQuery, merged), sources
	}
	return report, sources
}

// withRecall merges a store recall into the run evidence. Originals keep
// their positions; recalled items append in recall order when their ID is
// new.
func (w *Writer) withRecall(ctx context.Context, collection, mainQuery string, evidence []types.Evidence) []types.Evidence {
	seen := make(map[string]bool, len(evidence))
	for _, ev := range evidence {
		seen[ev.ID] = true
	}

	recalled, err := w.store.Similar(ctx, collection, mainQuery, recallK)
	if err != nil {
		log.Printf("[WRITER] WARNING: recall failed, writing from run evidence only: %v", err)
		return evidence
	}

	merged := evidence
	for _, ev := range recalled {
		if !seen[ev.ID] {
			seen[ev.ID] = true
			merged = append(merged, ev)
		}
	}
	return merged
}

func evidenceBlock(evidence []types.Evidence) string {
	if len(evidence) == 0 {
		return "(no evidence collected)"
	}
	var sb strings.Builder
	for _, ev := range evidence {
		key := ev.CitKey
		if key == "" {
			key = ev.ID
		}
		fmt.Fprintf(&sb, "[%s] %s (%s)\n%s\n\n", key, ev.Source.Title, ev.Source.URL, ev.Excerpt)
	}
	return sb.String()
}

func sourceLines(evidence []types.Evidence) []string {
	out := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		key := ev.CitKey
		if key == "" {
			key = ev.ID
		}
		out = append(out, fmt.Sprintf("[%s] %s - %s", key, ev.Source.Title, ev.Source.URL))
	}
	return out
}

// fallbackReport is the minimal document emitted when the model is
// unavailable. It keeps the section skeleton so downstream consumers can
// still parse it.
func fallbackReport(mainQuery string, evidence []types.Evidence) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research Report\n\n## Executive Summary\nReport generation was degraded; this summary lists the collected evidence for: %s\n\n", mainQuery)
	sb.WriteString("## Key Findings\n")
	if len(evidence) == 0 {
		sb.WriteString("- No evidence was collected.\n")
	}
	for _, ev := range evidence {
		fmt.Fprintf(&sb, "- [%s] %s\n", ev.CitKey, ev.Source.Title)
	}
	sb.WriteString("\n## Detailed Analysis\nNot available.\n\n## Conclusions\nNot available.\n\n## Sources\n")
	for _, line := range sourceLines(evidence) {
		sb.WriteString(line + "\n")
	}
	return sb.String()
}
