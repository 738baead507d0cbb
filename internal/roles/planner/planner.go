// Package planner decomposes a research query into targeted sub-queries.
package planner

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saptiva-ai/alethia-deepresearch/internal/llm"
	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

const systemPrompt = `You are a research planner. Decompose the user's research question into the minimum set of targeted sub-queries that together cover it.

Decomposition rules:
- Each sub-query must be independently searchable and cover one distinct aspect.
- Prefer 3-5 sub-queries; never exceed the requested maximum.
- Assign each sub-query the source kinds most likely to answer it: web, news, academic, or document.

Output ONLY the Research Plan (YAML) as a list (no wrapper, no markdown fences, no prose):
- id: T01
  query: "<searchable question>"
  sources: ["web"]
- id: T02
  query: "<searchable question>"
  sources: ["web", "news"]`

// Planner turns a main query into a Plan using the planning model.
type Planner struct {
	llm   llm.Client
	model string
}

// New creates a Planner backed by the given client and model.
func New(client llm.Client, model string) *Planner {
	return &Planner{llm: client, model: model}
}

// CreatePlan asks the model for a decomposition of mainQuery, capped at
// maxSubQueries. Malformed model output degrades to a generic fallback plan;
// only transport-level failures surface as errors.
//
// Expectations:
//   - sub-query IDs in the returned plan are unique (duplicates are renamed)
//   - every sub-query has at least one valid source kind (web is the default)
//   - the plan never exceeds maxSubQueries entries and is never empty
func (p *Planner) CreatePlan(ctx context.Context, mainQuery string, maxSubQueries int) (types.Plan, error) {
	user := fmt.Sprintf("Research question:\n%s\n\nMaximum sub-queries: %d", mainQuery, maxSubQueries)
	resp, err := p.llm.Complete(ctx, p.model, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}, llm.Options{Temperature: 0.3, MaxTokens: 2000})
	if err != nil {
		return types.Plan{}, fmt.Errorf("planner: %w", err)
	}

	raw := llm.StripFences(llm.StripThinkBlocks(resp.Content))
	subQueries, err := parseSubQueries(raw)
	if err != nil || len(subQueries) == 0 {
		log.Printf("[PLANNER] WARNING: unusable plan output, using fallback plan: %v", err)
		return fallbackPlan(mainQuery), nil
	}

	subQueries = normalize(subQueries, maxSubQueries)
	log.Printf("[PLANNER] plan ready sub_queries=%d", len(subQueries))
	return types.Plan{MainQuery: mainQuery, SubQueries: subQueries}, nil
}

// planEntry is the YAML shape the model emits.
type planEntry struct {
	ID      string   `yaml:"id"`
	Query   string   `yaml:"query"`
	Sources []string `yaml:"sources"`
}

func parseSubQueries(raw string) ([]types.SubQuery, error) {
	var entries []planEntry
	if err := yaml.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("parse plan YAML: %w", err)
	}
	out := make([]types.SubQuery, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Query) == "" {
			continue
		}
		sq := types.SubQuery{ID: strings.TrimSpace(e.ID), Text: strings.TrimSpace(e.Query)}
		for _, s := range e.Sources {
			switch kind := types.SourceKind(strings.ToLower(strings.TrimSpace(s))); kind {
			case types.SourceWeb, types.SourceNews, types.SourceAcademic, types.SourceDocument:
				sq.Sources = append(sq.Sources, kind)
			}
		}
		out = append(out, sq)
	}
	return out, nil
}

// normalize enforces the plan invariants: unique IDs, non-empty sources,
// size cap.
func normalize(subQueries []types.SubQuery, maxSubQueries int) []types.SubQuery {
	if maxSubQueries > 0 && len(subQueries) > maxSubQueries {
		subQueries = subQueries[:maxSubQueries]
	}
	seen := make(map[string]int)
	for i := range subQueries {
		if subQueries[i].ID == "" {
			subQueries[i].ID = fmt.Sprintf("T%02d", i+1)
		}
		if n := seen[subQueries[i].ID]; n > 0 {
			subQueries[i].ID = fmt.Sprintf("%s#%d", subQueries[i].ID, n+1)
		}
		seen[strings.SplitN(subQueries[i].ID, "#", 2)[0]]++
		if len(subQueries[i].Sources) == 0 {
			subQueries[i].Sources = []types.SourceKind{types.SourceWeb}
		}
	}
	return subQueries
}

// fallbackPlan is the generic three-angle decomposition used when the model
// output cannot be parsed.
func fallbackPlan(mainQuery string) types.Plan {
	return types.Plan{
		MainQuery: mainQuery,
		SubQueries: []types.SubQuery{
			{ID: "T01", Text: "Overview and background: " + mainQuery, Sources: []types.SourceKind{types.SourceWeb}},
			{ID: "T02", Text: "Key players and surrounding context: " + mainQuery, Sources: []types.SourceKind{types.SourceWeb, types.SourceNews}},
			{ID: "T03", Text: "Recent developments: " + mainQuery, Sources: []types.SourceKind{types.SourceWeb, types.SourceNews}},
		},
	}
}
