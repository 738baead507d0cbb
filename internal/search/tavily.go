package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

const (
	tavilyBaseURL     = "https://api.tavily.com"
	tavilySearchDepth = "advanced"
)

// Tavily queries the Tavily search API. Every method returns ErrSearchFailure
// on provider errors so callers can isolate failures per sub-query.
type Tavily struct {
	apiKey     string
	httpClient *http.Client
}

// NewTavily creates a Tavily adapter with the given API key.
func NewTavily(apiKey string) *Tavily {
	return &Tavily{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
	Topic       string `json:"topic,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string   `json:"title"`
		URL           string   `json:"url"`
		Content       string   `json:"content"`
		Score         *float64 `json:"score"`
		PublishedDate string   `json:"published_date"`
	} `json:"results"`
}

type tavilyExtractRequest struct {
	APIKey string   `json:"api_key"`
	URLs   []string `json:"urls"`
}

type tavilyExtractResponse struct {
	Results []struct {
		URL        string `json:"url"`
		RawContent string `json:"raw_content"`
	} `json:"results"`
}

// Search runs a general web search.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	return t.search(ctx, query, maxResults, "")
}

// SearchNews runs a news-topic search.
func (t *Tavily) SearchNews(ctx context.Context, query string, maxResults int) ([]Result, error) {
	return t.search(ctx, query, maxResults, "news")
}

// SearchAcademic biases the query towards academic hosts. Tavily has no
// academic topic, so the bias is expressed as site filters.
func (t *Tavily) SearchAcademic(ctx context.Context, query string, maxResults int) ([]Result, error) {
	academic := query + " site:arxiv.org OR site:scholar.google.com OR site:pubmed.ncbi.nlm.nih.gov"
	return t.search(ctx, academic, maxResults, "")
}

func (t *Tavily) search(ctx context.Context, query string, maxResults int, topic string) ([]Result, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:      t.apiKey,
		Query:       query,
		SearchDepth: tavilySearchDepth,
		MaxResults:  maxResults,
		Topic:       topic,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrSearchFailure, err)
	}

	respBody, err := t.post(ctx, tavilyBaseURL+"/search", body)
	if err != nil {
		return nil, err
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrSearchFailure, err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{
			URL:       types.CanonicalURL(r.URL),
			Title:     r.Title,
			Content:   r.Content,
			Score:     r.Score,
			Published: r.PublishedDate,
		})
	}
	return results, nil
}

// Extract fetches the full text behind url via the Tavily extract endpoint.
func (t *Tavily) Extract(ctx context.Context, url string) (string, error) {
	body, err := json.Marshal(tavilyExtractRequest{APIKey: t.apiKey, URLs: []string{url}})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrSearchFailure, err)
	}

	respBody, err := t.post(ctx, tavilyBaseURL+"/extract", body)
	if err != nil {
		return "", err
	}

	var parsed tavilyExtractResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", ErrSearchFailure, err)
	}
	if len(parsed.Results) == 0 {
		return "", nil
	}
	return parsed.Results[0].RawContent, nil
}

func (t *Tavily) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrSearchFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %v", ErrSearchFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSearchFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrSearchFailure, resp.StatusCode, respBody)
	}
	return respBody, nil
}
