package search

import (
	"context"
	"fmt"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

// Mock is a deterministic in-memory searcher for offline runs and tests.
// Each query yields ResultsPerQuery synthetic results with URLs derived from
// the query text, so identical inputs always produce identical evidence.
type Mock struct {
	// ResultsPerQuery is the number of results per search; defaults to 3.
	ResultsPerQuery int
	// FailQueries marks query strings whose searches return ErrSearchFailure.
	FailQueries map[string]bool
}

// NewMockSearcher returns a Mock with defaults.
func NewMockSearcher() *Mock { return &Mock{ResultsPerQuery: 3} }

func (m *Mock) results(query, topic string) ([]Result, error) {
	if m.FailQueries[query] {
		return nil, fmt.Errorf("%w: mock failure for %q", ErrSearchFailure, query)
	}
	n := m.ResultsPerQuery
	if n == 0 {
		n = 3
	}
	score := 0.8
	out := make([]Result, 0, n)
	for i := 0; i < n; i++ {
		s := score
		out = append(out, Result{
			URL:     types.CanonicalURL(fmt.Sprintf("https://example.com/%s/%s-%d", topic, types.Fingerprint(query), i+1)),
			Title:   fmt.Sprintf("Mock %s result %d for %q", topic, i+1, query),
			Content: fmt.Sprintf("Synthetic %s content %d relevant to: %s", topic, i+1, query),
			Score:   &s,
		})
	}
	return out, nil
}

func (m *Mock) Search(_ context.Context, query string, _ int) ([]Result, error) {
	return m.results(query, "web")
}

func (m *Mock) SearchNews(_ context.Context, query string, _ int) ([]Result, error) {
	return m.results(query, "news")
}

func (m *Mock) SearchAcademic(_ context.Context, query string, _ int) ([]Result, error) {
	return m.results(query, "academic")
}

func (m *Mock) Extract(_ context.Context, url string) (string, error) {
	return "Synthetic extracted content for " + url, nil
}
