package provider

import (
	"encoding/json"
	"strings"
)

type openAI struct {
	baseURL string
	auth    authSpec
}

func newOpenAI(baseURL string) *openAI {
	return &openAI{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth: authSpec{
			header: "Authorization",
			prefix: "Bearer ",
		},
	}
}

func (o *openAI) Name() string { return FrameworkOpenAI }

func (o *openAI) DefaultModel() string { return "gpt-4o-mini" }

func (o *openAI) Endpoint(model string) string {
	return o.baseURL + "/v1/chat/completions"
}

func (o *openAI) Headers(apiKey string) map[string]string {
	return o.auth.headers(apiKey)
}

// BuildRequest emits a flat messages array with a leading system role entry.
func (o *openAI) BuildRequest(p RequestParams) ([]byte, error) {
	messages := make([]map[string]string, 0, len(p.Messages)+1)
	if p.SystemPrompt != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": p.SystemPrompt,
		})
	}
	for _, m := range p.Messages {
		messages = append(messages, map[string]string{
			"role":    m.Role,
			"content": m.Content,
		})
	}

	return json.Marshal(map[string]any{
		"model":       p.Model,
		"messages":    messages,
		"max_tokens":  p.MaxTokens,
		"temperature": p.Temperature,
		"stream":      true,
	})
}

func (o *openAI) ParseStreamLine(line string) (string, bool) {
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return "", false
	}
	if data == "[DONE]" {
		return "", true
	}

	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, false
}
