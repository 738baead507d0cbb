// Package evaluator judges how completely the accumulated evidence answers
// the research question, names the gaps, and turns gaps into follow-up
// queries.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/saptiva-ai/alethia-deepresearch/internal/llm"
	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

const (
	maxGaps             = 6
	summaryItems        = 10
	summaryExcerptRunes = 150
)

const scoreSystemPrompt = `You are a research completeness evaluator. Judge how well the collected evidence answers the original research question.

Output ONLY a JSON object (no markdown, no prose):
{
  "overall_score": <0.0-1.0>,
  "completion_level": "insufficient" | "partial" | "adequate" | "comprehensive",
  "coverage_areas": {"<area>": <0.0-1.0>, ...},
  "confidence": <0.0-1.0>,
  "reasoning": "<one short paragraph>"
}`

const gapsSystemPrompt = `You are a research gap analyst. Given the research question, the evidence summary, and the completeness assessment, name the most important deficiencies.

Output ONLY a JSON array of at most 6 objects (no markdown, no prose):
[
  {
    "gap_type": "<missing_recent_data | missing_perspective | insufficient_depth | unverified_claim | missing_data_source>",
    "description": "<what is missing>",
    "priority": <1-5>,
    "suggested_query": "<searchable question that would close the gap>"
  }
]`

const refineSystemPrompt = `You are a research query refiner. Turn each identified deficiency into at most one concrete follow-up search query.

Output ONLY a JSON array (no markdown, no prose):
[
  {
    "query": "<searchable question>",
    "gap_addressed": "<the deficiency label this query targets>",
    "priority": <1-5>,
    "expected_sources": ["web" | "news" | "academic"]
  }
]`

// Evaluator runs the assessment side of the research loop.
type Evaluator struct {
	llm   llm.Client
	model string
}

// New creates an Evaluator backed by the given client and model.
func New(client llm.Client, model string) *Evaluator {
	return &Evaluator{llm: client, model: model}
}

// Score assesses the evidence against the original query. Unparseable model
// output degrades to a neutral partial score so the loop can continue.
//
// Expectations:
//   - Overall is clamped to [0,1] and Level always matches Overall
//   - a parse failure yields {0.5, partial, confidence 0.5, "parse_fallback"}
func (e *Evaluator) Score(ctx context.Context, mainQuery string, evidence []types.Evidence) (types.CompletionScore, error) {
	user := fmt.Sprintf("Research question:\n%s\n\nEvidence summary:\n%s", mainQuery, summarize(evidence))
	resp, err := e.llm.Complete(ctx, e.model, []llm.Message{
		{Role: "system", Content: scoreSystemPrompt},
		{Role: "user", Content: user},
	}, llm.Options{Temperature: 0.2, MaxTokens: 1000})
	if err != nil {
		return types.CompletionScore{}, fmt.Errorf("evaluator: score: %w", err)
	}

	raw := llm.StripFences(llm.StripThinkBlocks(resp.Content))
	var score types.CompletionScore
	if err := json.Unmarshal([]byte(raw), &score); err != nil {
		log.Printf("[EVALUATOR] WARNING: unparseable score, using fallback: %v", err)
		return types.CompletionScore{
			Overall:    0.5,
			Level:      types.LevelPartial,
			Confidence: 0.5,
			Reasoning:  "parse_fallback",
		}, nil
	}

	if score.Overall < 0 {
		score.Overall = 0
	}
	if score.Overall > 1 {
		score.Overall = 1
	}
	score.Level = types.LevelForScore(score.Overall)
	return score, nil
}

// Gaps names the deficiencies behind a below-threshold score. Returns at
// most six gaps ordered by descending priority; unparseable output yields an
// empty list, never an error.
func (e *Evaluator) Gaps(ctx context.Context, mainQuery string, evidence []types.Evidence, score types.CompletionScore) []types.InformationGap {
	user := fmt.Sprintf("Research question:\n%s\n\nEvidence summary:\n%s\n\nCompleteness assessment:\n%s",
		mainQuery, summarize(evidence), describeScore(score))
	resp, err := e.llm.Complete(ctx, e.model, []llm.Message{
		{Role: "system", Content: gapsSystemPrompt},
		{Role: "user", Content: user},
	}, llm.Options{Temperature: 0.3, MaxTokens: 1500})
	if err != nil {
		log.Printf("[EVALUATOR] WARNING: gap analysis failed: %v", err)
		return nil
	}

	raw := llm.StripFences(llm.StripThinkBlocks(resp.Content))
	var gaps []types.InformationGap
	if err := json.Unmarshal([]byte(raw), &gaps); err != nil {
		log.Printf("[EVALUATOR] WARNING: unparseable gaps: %v", err)
		return nil
	}

	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].Priority > gaps[j].Priority })
	if len(gaps) > maxGaps {
		gaps = gaps[:maxGaps]
	}
	return gaps
}

// Refine turns gaps into follow-up queries, at most one per gap. Source
// kinds outside the searchable set are dropped; unparseable output yields an
// empty list, never an error.
func (e *Evaluator) Refine(ctx context.Context, mainQuery string, gaps []types.InformationGap) []types.RefinementQuery {
	if len(gaps) == 0 {
		return nil
	}
	user := fmt.Sprintf("Research question:\n%s\n\nIdentified deficiencies:\n%s", mainQuery, describeGaps(gaps))
	resp, err := e.llm.Complete(ctx, e.model, []llm.Message{
		{Role: "system", Content: refineSystemPrompt},
		{Role: "user", Content: user},
	}, llm.Options{Temperature: 0.3, MaxTokens: 1500})
	if err != nil {
		log.Printf("[EVALUATOR] WARNING: refinement failed: %v", err)
		return nil
	}

	raw := llm.StripFences(llm.StripThinkBlocks(resp.Content))
	var refinements []types.RefinementQuery
	if err := json.Unmarshal([]byte(raw), &refinements); err != nil {
		log.Printf("[EVALUATOR] WARNING: unparseable refinements: %v", err)
		return nil
	}

	out := refinements[:0]
	for _, r := range refinements {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		var sources []types.SourceKind
		for _, s := range r.ExpectedSources {
			switch s {
			case types.SourceWeb, types.SourceNews, types.SourceAcademic:
				sources = append(sources, s)
			}
		}
		if len(sources) == 0 {
			sources = []types.SourceKind{types.SourceWeb}
		}
		r.ExpectedSources = sources
		out = append(out, r)
	}
	if len(out) > len(gaps) {
		out = out[:len(gaps)]
	}
	return out
}

// summarize renders the evidence for a prompt: the first items with short
// excerpts, then a count of the rest.
func summarize(evidence []types.Evidence) string {
	if len(evidence) == 0 {
		return "(no evidence collected)"
	}
	var sb strings.Builder
	shown := len(evidence)
	if shown > summaryItems {
		shown = summaryItems
	}
	for _, ev := range evidence[:shown] {
		excerpt := []rune(ev.Excerpt)
		if len(excerpt) > summaryExcerptRunes {
			excerpt = excerpt[:summaryExcerptRunes]
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", ev.CitKey, ev.Source.Title, string(excerpt))
	}
	if rest := len(evidence) - shown; rest > 0 {
		fmt.Fprintf(&sb, "... and %d more\n", rest)
	}
	return sb.String()
}

// describeScore renders a score as prose. Plain text on purpose: the gap
// prompt must not echo the score's JSON field names.
func describeScore(score types.CompletionScore) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Completion %.2f (%s), confidence %.2f.\n", score.Overall, score.Level, score.Confidence)
	if score.Reasoning != "" {
		fmt.Fprintf(&sb, "Reasoning: %s\n", score.Reasoning)
	}
	areas := make([]string, 0, len(score.Coverage))
	for area := range score.Coverage {
		areas = append(areas, area)
	}
	sort.Strings(areas)
	for _, area := range areas {
		fmt.Fprintf(&sb, "- coverage %s: %.2f\n", area, score.Coverage[area])
	}
	return sb.String()
}

// describeGaps renders gaps as prose. Plain text on purpose: the refinement
// prompt must not echo the gaps' JSON field names.
func describeGaps(gaps []types.InformationGap) string {
	var sb strings.Builder
	for _, g := range gaps {
		fmt.Fprintf(&sb, "- %s (priority %d): %s", g.GapType, g.Priority, g.Description)
		if g.SuggestedQuery != "" {
			fmt.Fprintf(&sb, "; suggested: %s", g.SuggestedQuery)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
