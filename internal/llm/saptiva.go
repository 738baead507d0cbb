package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/saptiva-ai/alethia-deepresearch/internal/config"
)

const maxAttempts = 3

// Saptiva is an OpenAI-compatible client for the Saptiva model API.
type Saptiva struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSaptiva creates a Saptiva client from cfg. The HTTP client enforces the
// configured connect timeout at dial time and the read timeout end to end.
func NewSaptiva(cfg config.Config) *Saptiva {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	return &Saptiva{
		baseURL: cfg.SaptivaBaseURL,
		apiKey:  cfg.SaptivaAPIKey,
		httpClient: &http.Client{
			Timeout: cfg.ReadTimeout,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: cfg.ConnectTimeout,
			},
		},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a chat completion request. Transport failures and 5xx
// responses are retried with exponential backoff (base 1s, factor 2); other
// HTTP errors fail immediately. Exhausted retries wrap ErrProviderUnavailable.
func (s *Saptiva) Complete(ctx context.Context, model string, messages []Message, opts Options) (Response, error) {
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	})
	if err != nil {
		return Response{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	var respBody []byte
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(1*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("llm: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("llm: http request: %w", err))
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("llm: read response: %w", err))
		}
		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("llm: HTTP %d: %s", resp.StatusCode, respBody))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("llm: HTTP %d: %s", resp.StatusCode, respBody)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("llm: unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, fmt.Errorf("llm: API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("llm: no choices in response")
	}

	log.Printf("[LLM] model=%s tokens prompt=%d completion=%d", model,
		parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	return Response{Content: parsed.Choices[0].Message.Content, Raw: respBody}, nil
}

// Health probes the models listing endpoint. Any response short of a server
// error counts as healthy; there are no side effects.
func (s *Saptiva) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
