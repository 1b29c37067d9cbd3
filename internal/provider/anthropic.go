package provider

import (
	"encoding/json"
	"strings"
)

type anthropic struct {
	baseURL string
	auth    authSpec
}

func newAnthropic(baseURL string) *anthropic {
	return &anthropic{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth: authSpec{
			header: "x-api-key",
			extra: map[string]string{
				"anthropic-version": "2023-06-01",
			},
		},
	}
}

func (a *anthropic) Name() string { return FrameworkAnthropic }

func (a *anthropic) DefaultModel() string { return "claude-3-5-sonnet-latest" }

func (a *anthropic) Endpoint(model string) string {
	return a.baseURL + "/v1/messages"
}

func (a *anthropic) Headers(apiKey string) map[string]string {
	return a.auth.headers(apiKey)
}

// BuildRequest keeps system separate from messages and re-tags every
// non-system role as user/assistant. The caller already interleaves roles
// correctly; no consecutive-turn collapsing happens here.
func (a *anthropic) BuildRequest(p RequestParams) ([]byte, error) {
	messages := make([]map[string]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, map[string]string{
			"role":    role,
			"content": m.Content,
		})
	}

	payload := map[string]any{
		"model":       p.Model,
		"messages":    messages,
		"max_tokens":  p.MaxTokens,
		"temperature": p.Temperature,
		"stream":      true,
	}
	if p.SystemPrompt != "" {
		payload["system"] = p.SystemPrompt
	}
	return json.Marshal(payload)
}

func (a *anthropic) ParseStreamLine(line string) (string, bool) {
	// event: lines only name the frame; the data: line repeats the type.
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return "", false
	}

	var event struct {
		Type  string `json:"type"`
		Delta struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"delta"`
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return "", false
	}

	switch event.Type {
	case "content_block_delta":
		if event.Delta.Type == "text_delta" {
			return event.Delta.Text, false
		}
		return "", false
	case "message_stop":
		return "", true
	default:
		return "", false
	}
}
