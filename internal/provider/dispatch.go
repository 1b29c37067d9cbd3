package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mtzanidakis/swarmgate/internal/apierr"
)

// maxErrorBody bounds how much of an upstream error response is kept for
// diagnostics.
const maxErrorBody = 2048

// Open builds the provider request, executes it, and returns the raw SSE body
// on success. Non-2xx responses are classified into the error taxonomy and the
// body is consumed and closed.
func Open(ctx context.Context, client *http.Client, a Adapter, apiKey string, p RequestParams) (io.ReadCloser, error) {
	body, err := a.BuildRequest(p)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", a.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint(p.Model), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new %s request: %w", a.Name(), err)
	}
	for k, v := range a.Headers(apiKey) {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, ClassifyStatus(a.Name(), resp.StatusCode, errBody)
	}
	return resp.Body, nil
}

// ClassifyStatus maps an upstream HTTP status to the error taxonomy.
func ClassifyStatus(provider string, status int, body []byte) *apierr.Error {
	msg := strings.TrimSpace(string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return apierr.New(apierr.CodeRateLimit, "%s rate limited the request", provider)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apierr.New(apierr.CodeAuth, "%s rejected the API key", provider)
	case status == http.StatusBadRequest:
		return apierr.New(apierr.CodeBadRequest, "%s rejected the request: %s", provider, msg)
	default:
		return apierr.New(apierr.CodeInternal, "%s upstream status %d: %s", provider, status, msg)
	}
}
