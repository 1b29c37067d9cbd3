// Package provider adapts one canonical request shape to the wire formats of
// the supported inference API families. Each family implements the same small
// contract; adding a provider means adding one registry entry, nothing in the
// orchestrator changes.
package provider

import (
	"fmt"

	"github.com/mtzanidakis/swarmgate/internal/config"
)

const (
	FrameworkOpenAI    = "openai"
	FrameworkAnthropic = "anthropic"
	FrameworkGoogle    = "google"
)

// ChatMessage is one turn of the canonical two-role conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// RequestParams is the canonical shape every adapter consumes. Adapters are
// solely responsible for transforming it into their wire format.
type RequestParams struct {
	Model        string
	SystemPrompt string
	Messages     []ChatMessage
	MaxTokens    int
	Temperature  float64
}

// Adapter is the per-family contract.
type Adapter interface {
	Name() string
	// DefaultModel is used when the agent config carries no explicit model.
	DefaultModel() string
	// Endpoint returns the full streaming URL for the given model.
	Endpoint(model string) string
	// BuildRequest produces the provider's JSON payload. Pure.
	BuildRequest(p RequestParams) ([]byte, error)
	// Headers returns the authentication and static headers for one call.
	Headers(apiKey string) map[string]string
	// ParseStreamLine extracts zero or one content fragment and a done flag
	// from a single line of the provider's SSE body. Total: malformed lines
	// yield ("", false), never an error.
	ParseStreamLine(line string) (content string, done bool)
}

// authSpec keeps the per-family credential header shape table-driven.
type authSpec struct {
	header string
	prefix string
	extra  map[string]string
}

func (a authSpec) headers(apiKey string) map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
		a.header:       a.prefix + apiKey,
	}
	for k, v := range a.extra {
		h[k] = v
	}
	return h
}

// Registry maps a framework tag to its adapter.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(cfg config.ProvidersConfig) *Registry {
	adapters := map[string]Adapter{
		FrameworkOpenAI:    newOpenAI(cfg.OpenAI.BaseURL),
		FrameworkAnthropic: newAnthropic(cfg.Anthropic.BaseURL),
		FrameworkGoogle:    newGoogle(cfg.Google.BaseURL),
	}
	return &Registry{adapters: adapters}
}

func (r *Registry) Get(framework string) (Adapter, error) {
	a, ok := r.adapters[framework]
	if !ok {
		return nil, fmt.Errorf("unsupported provider framework %q", framework)
	}
	return a, nil
}

// Frameworks lists the registered framework tags.
func (r *Registry) Frameworks() []string {
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	return out
}
