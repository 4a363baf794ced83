package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xiaot623/agentkit/internal/domain"
)

const maxRemoteResponse = 1 << 20

// RemoteInvoker calls a tool hosted behind an HTTP endpoint.
type RemoteInvoker struct {
	name       string
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

// NewRemoteInvoker creates an invoker posting to url. A zero timeout falls
// back to 30 seconds.
func NewRemoteInvoker(name, url string, timeout time.Duration) *RemoteInvoker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteInvoker{
		name:       name,
		url:        url,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Invoke posts {tool_name, arguments, context} and returns the response body.
func (r *RemoteInvoker) Invoke(ctx context.Context, call domain.ToolCall) (json.RawMessage, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool call: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.ToolUnavailable(r.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.ToolUnavailable(r.name, fmt.Errorf("%w after %s", domain.ErrTimeout, r.timeout))
		}
		return nil, domain.ToolUnavailable(r.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponse))
	if err != nil {
		return nil, domain.ToolUnavailable(r.name, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("tool returned status %d: %s", resp.StatusCode, string(data))
	}
	if !json.Valid(data) {
		return json.Marshal(map[string]string{"status": "success", "result": string(data)})
	}
	return data, nil
}
