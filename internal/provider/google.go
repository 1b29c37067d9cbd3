package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type google struct {
	baseURL string
	auth    authSpec
}

func newGoogle(baseURL string) *google {
	return &google{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth: authSpec{
			header: "x-goog-api-key",
		},
	}
}

func (g *google) Name() string { return FrameworkGoogle }

func (g *google) DefaultModel() string { return "gemini-2.0-flash" }

// Endpoint carries the model in the URL path; the body never names it.
func (g *google) Endpoint(model string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse",
		g.baseURL, url.PathEscape(model))
}

func (g *google) Headers(apiKey string) map[string]string {
	return g.auth.headers(apiKey)
}

// BuildRequest nests turns under contents, renames assistant to model, and
// carries the system prompt as systemInstruction.
func (g *google) BuildRequest(p RequestParams) ([]byte, error) {
	contents := make([]map[string]any, 0, len(p.Messages))
	for _, m := range p.Messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []map[string]string{{"text": m.Content}},
		})
	}

	payload := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"maxOutputTokens": p.MaxTokens,
			"temperature":     p.Temperature,
		},
	}
	if p.SystemPrompt != "" {
		payload["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": p.SystemPrompt}},
		}
	}
	return json.Marshal(payload)
}

func (g *google) ParseStreamLine(line string) (string, bool) {
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return "", false
	}

	var chunk struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Candidates) == 0 {
		return "", false
	}

	c := chunk.Candidates[0]
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), c.FinishReason != ""
}
