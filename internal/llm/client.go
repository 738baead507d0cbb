// Package llm provides the model-provider port and its adapters.
//
// The orchestrator and roles only see the Client interface; the concrete
// adapter (Saptiva or the offline mock) is selected once at process init.
package llm

import (
	"context"
	"errors"
)

// Message is one chat turn sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion call. Zero values mean provider defaults.
type Options struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// Response is the provider's answer. Raw carries the unparsed provider body
// for diagnostics; Content is the assistant text.
type Response struct {
	Content string
	Raw     []byte
}

// ErrProviderUnavailable is returned once transient retries are exhausted or
// the provider persistently fails.
var ErrProviderUnavailable = errors.New("llm: provider unavailable")

// Client is the narrow model-provider port.
type Client interface {
	// Complete sends messages to the named model and returns the assistant
	// text. Transient transport and 5xx failures are retried internally with
	// exponential backoff; exhausted retries return ErrProviderUnavailable.
	Complete(ctx context.Context, model string, messages []Message, opts Options) (Response, error)

	// Health reports provider reachability with a lightweight probe.
	Health(ctx context.Context) bool
}
