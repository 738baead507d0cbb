// Package search provides the web-search port and its adapters.
package search

import (
	"context"
	"errors"
)

// ErrSearchFailure wraps provider-level search errors. The researcher
// isolates these per sub-query; they never cancel peer searches.
var ErrSearchFailure = errors.New("search: provider failure")

// Result is one candidate evidence item from a provider, before the
// researcher assigns identity and tags. URL is already canonicalised.
type Result struct {
	URL       string
	Title     string
	Content   string
	Score     *float64 // upstream relevance in [0,1]; nil when the provider omits it
	Published string   // provider-supplied date, may be empty
}

// Searcher is the narrow search-provider port.
type Searcher interface {
	// Search runs a general web search.
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)

	// SearchNews restricts results to news coverage.
	SearchNews(ctx context.Context, query string, maxResults int) ([]Result, error)

	// SearchAcademic biases results towards academic sources.
	SearchAcademic(ctx context.Context, query string, maxResults int) ([]Result, error)

	// Extract fetches the full text behind url, or "" when unavailable.
	Extract(ctx context.Context, url string) (string, error)
}

// ForSource dispatches to the Searcher method matching a source kind.
// Unknown kinds fall back to a general web search.
func ForSource(ctx context.Context, s Searcher, kind string, query string, maxResults int) ([]Result, error) {
	switch kind {
	case "news":
		return s.SearchNews(ctx, query, maxResults)
	case "academic":
		return s.SearchAcademic(ctx, query, maxResults)
	default:
		return s.Search(ctx, query, maxResults)
	}
}
