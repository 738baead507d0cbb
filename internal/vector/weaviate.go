package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

// evidenceNamespace seeds deterministic object UUIDs so the same evidence ID
// always maps to the same Weaviate object.
var evidenceNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Weaviate talks to a Weaviate instance over its REST and GraphQL APIs.
// Objects carry the evidence fields as plain properties; vectorisation is
// left to the server's configured module.
type Weaviate struct {
	baseURL    string
	httpClient *http.Client
}

// NewWeaviate creates an adapter for the instance at host, e.g.
// "http://localhost:8080".
func NewWeaviate(host string) *Weaviate {
	return &Weaviate{
		baseURL:    strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// className maps a collection name onto a valid Weaviate class name, which
// must start with an uppercase letter.
func className(collection string) string {
	if collection == "" {
		return "Research"
	}
	return strings.ToUpper(collection[:1]) + collection[1:]
}

func (w *Weaviate) Ensure(ctx context.Context, collection string) error {
	class := className(collection)

	status, _, err := w.do(ctx, http.MethodGet, "/v1/schema/"+class, nil)
	if err != nil {
		return fmt.Errorf("%w: schema lookup: %v", ErrStore, err)
	}
	if status == http.StatusOK {
		return nil
	}

	def := map[string]any{
		"class": class,
		"properties": []map[string]any{
			{"name": "evidenceId", "dataType": []string{"text"}},
			{"name": "excerpt", "dataType": []string{"text"}},
			{"name": "sourceUrl", "dataType": []string{"text"}},
			{"name": "sourceTitle", "dataType": []string{"text"}},
			{"name": "fetchedAt", "dataType": []string{"text"}},
			{"name": "contentHash", "dataType": []string{"text"}},
			{"name": "relevance", "dataType": []string{"number"}},
			{"name": "tags", "dataType": []string{"text[]"}},
			{"name": "citKey", "dataType": []string{"text"}},
			{"name": "producedBy", "dataType": []string{"text"}},
		},
	}
	body, _ := json.Marshal(def)
	status, respBody, err := w.do(ctx, http.MethodPost, "/v1/schema", body)
	if err != nil {
		return fmt.Errorf("%w: create class: %v", ErrStore, err)
	}
	// 422 means a concurrent caller created it first.
	if status != http.StatusOK && status != http.StatusUnprocessableEntity {
		return fmt.Errorf("%w: create class: HTTP %d: %s", ErrStore, status, respBody)
	}
	return nil
}

func (w *Weaviate) Insert(ctx context.Context, collection string, ev types.Evidence) (bool, error) {
	class := className(collection)

	dup, err := w.hashExists(ctx, class, ev.ContentHash)
	if err != nil {
		return false, err
	}
	if dup {
		return false, nil
	}

	obj := map[string]any{
		"class": class,
		"id":    uuid.NewSHA1(evidenceNamespace, []byte(ev.ID)).String(),
		"properties": map[string]any{
			"evidenceId":  ev.ID,
			"excerpt":     ev.Excerpt,
			"sourceUrl":   ev.Source.URL,
			"sourceTitle": ev.Source.Title,
			"fetchedAt":   ev.Source.FetchedAt.Format(time.RFC3339),
			"contentHash": ev.ContentHash,
			"relevance":   ev.Relevance(),
			"tags":        ev.Tags,
			"citKey":      ev.CitKey,
			"producedBy":  ev.ProducedBy,
		},
	}
	body, _ := json.Marshal(obj)
	status, respBody, err := w.do(ctx, http.MethodPost, "/v1/objects", body)
	if err != nil {
		return false, fmt.Errorf("%w: insert object: %v", ErrStore, err)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusUnprocessableEntity:
		// Same deterministic UUID: the evidence ID was stored already.
		return false, nil
	default:
		return false, fmt.Errorf("%w: insert object: HTTP %d: %s", ErrStore, status, respBody)
	}
}

func (w *Weaviate) hashExists(ctx context.Context, class, contentHash string) (bool, error) {
	if contentHash == "" {
		return false, nil
	}
	query := fmt.Sprintf(`{
  Get {
    %s(where: {path: ["contentHash"], operator: Equal, valueText: %q}, limit: 1) {
      evidenceId
    }
  }
}`, class, contentHash)

	items, err := w.graphql(ctx, class, query)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

func (w *Weaviate) Similar(ctx context.Context, collection, text string, k int) ([]types.Evidence, error) {
	if k <= 0 {
		return nil, nil
	}
	class := className(collection)
	concepts, _ := json.Marshal([]string{text})
	query := fmt.Sprintf(`{
  Get {
    %s(nearText: {concepts: %s}, limit: %d) {
      evidenceId excerpt sourceUrl sourceTitle fetchedAt contentHash relevance tags citKey producedBy
    }
  }
}`, class, concepts, k)

	items, err := w.graphql(ctx, class, query)
	if err != nil {
		return nil, err
	}

	out := make([]types.Evidence, 0, len(items))
	for _, raw := range items {
		ev := types.Evidence{
			ID:          str(raw["evidenceId"]),
			Excerpt:     str(raw["excerpt"]),
			ContentHash: str(raw["contentHash"]),
			CitKey:      str(raw["citKey"]),
			ProducedBy:  str(raw["producedBy"]),
			Source: types.EvidenceSource{
				URL:   str(raw["sourceUrl"]),
				Title: str(raw["sourceTitle"]),
			},
		}
		if ts, err := time.Parse(time.RFC3339, str(raw["fetchedAt"])); err == nil {
			ev.Source.FetchedAt = ts
		}
		if v, ok := raw["relevance"].(float64); ok {
			ev.Score = &v
		}
		if tags, ok := raw["tags"].([]any); ok {
			for _, t := range tags {
				ev.Tags = append(ev.Tags, str(t))
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

func (w *Weaviate) Drop(ctx context.Context, collection string) error {
	class := className(collection)
	status, respBody, err := w.do(ctx, http.MethodDelete, "/v1/schema/"+class, nil)
	if err != nil {
		return fmt.Errorf("%w: drop class: %v", ErrStore, err)
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("%w: drop class: HTTP %d: %s", ErrStore, status, respBody)
	}
	return nil
}

// Live probes the instance readiness endpoint.
func (w *Weaviate) Live(ctx context.Context) bool {
	status, _, err := w.do(ctx, http.MethodGet, "/v1/.well-known/ready", nil)
	return err == nil && status == http.StatusOK
}

func (w *Weaviate) graphql(ctx context.Context, class, query string) ([]map[string]any, error) {
	body, _ := json.Marshal(map[string]string{"query": query})
	status, respBody, err := w.do(ctx, http.MethodPost, "/v1/graphql", body)
	if err != nil {
		return nil, fmt.Errorf("%w: graphql: %v", ErrStore, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: graphql: HTTP %d: %s", ErrStore, status, respBody)
	}

	var parsed struct {
		Data   map[string]map[string][]map[string]any `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: graphql: parse response: %v", ErrStore, err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql: %s", ErrStore, parsed.Errors[0].Message)
	}
	return parsed.Data["Get"][class], nil
}

func (w *Weaviate) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, w.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
