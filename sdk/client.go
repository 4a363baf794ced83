// Package sdk is the Go client for the agentkit service. It registers agents,
// sends messages and reports agent state.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// APIError is returned for non-2xx responses and for error bodies.
type APIError struct {
	StatusCode int
	Message    string
	ErrorCode  string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("agentkit API error (HTTP %d, %s): %s", e.StatusCode, e.ErrorCode, msg)
	}
	return fmt.Sprintf("agentkit API error (HTTP %d): %s", e.StatusCode, msg)
}

// Response is the envelope every agentkit endpoint answers with.
type Response struct {
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// Registration describes an agent to register.
type Registration struct {
	AgentName       string          `json:"agentName"`
	Capabilities    []string        `json:"capabilities"`
	Version         string          `json:"version"`
	ContactEndpoint string          `json:"contactEndpoint"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// Agent is a registered agent as returned by the service.
type Agent struct {
	AgentID          string          `json:"agentId"`
	AgentName        string          `json:"agentName"`
	Capabilities     []string        `json:"capabilities"`
	Version          string          `json:"version"`
	ContactEndpoint  string          `json:"contactEndpoint"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	RegistrationTime time.Time       `json:"registration_time"`
}

// Message is an outbound message.
type Message struct {
	SenderID       string          `json:"senderId"`
	MessageType    string          `json:"messageType"`
	Payload        any             `json:"payload"`
	SessionContext *SessionContext `json:"sessionContext,omitempty"`
	TaskName       string          `json:"taskName,omitempty"`
	Correlation    *Correlation    `json:"correlation,omitempty"`
}

// SessionContext carries conversational context.
type SessionContext struct {
	SessionID     string   `json:"sessionId,omitempty"`
	PriorMessages []string `json:"priorMessages,omitempty"`
}

// Correlation ties a message to an external session or task.
type Correlation struct {
	SessionID string `json:"sessionId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
}

// SendResult is the outcome of SendMessage. Accepted is true when the message
// was queued for background delivery rather than answered synchronously.
type SendResult struct {
	Accepted bool
	Response Response
}

// Client talks to an agentkit service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// RegisterAgent registers an agent and returns its generated id.
func (c *Client) RegisterAgent(ctx context.Context, reg Registration) (string, error) {
	if reg.Capabilities == nil {
		reg.Capabilities = []string{}
	}
	resp, _, err := c.do(ctx, http.MethodPost, "/v1/agents/register", reg)
	if err != nil {
		return "", err
	}
	var data struct {
		AgentID string `json:"agentId"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.AgentID == "" {
		return "", fmt.Errorf("unexpected registration response: %s", resp.Message)
	}
	return data.AgentID, nil
}

// GetAgent fetches a registered agent.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	body, err := c.raw(ctx, http.MethodGet, "/v1/agents/"+url.PathEscape(agentID), nil)
	if err != nil {
		return nil, err
	}
	var agent Agent
	if err := json.Unmarshal(body, &agent); err != nil {
		return nil, fmt.Errorf("failed to decode agent: %w", err)
	}
	return &agent, nil
}

// ListTools returns the names of the tools the service exposes.
func (c *Client) ListTools(ctx context.Context) ([]string, error) {
	body, err := c.raw(ctx, http.MethodGet, "/v1/tools", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode tools: %w", err)
	}
	names := make([]string, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// SendMessage sends msg to targetID. A tool-level failure reported inside a
// 200 response is returned as an *APIError.
func (c *Client) SendMessage(ctx context.Context, targetID string, msg Message) (*SendResult, error) {
	if msg.Payload == nil {
		msg.Payload = map[string]any{}
	}
	resp, status, err := c.do(ctx, http.MethodPost, "/v1/agents/"+url.PathEscape(targetID)+"/run", msg)
	if err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, &APIError{StatusCode: status, Message: resp.Message, ErrorCode: resp.ErrorCode}
	}
	return &SendResult{Accepted: status == http.StatusAccepted, Response: *resp}, nil
}

// InvokeTool sends a tool invocation and returns the tool result.
func (c *Client) InvokeTool(ctx context.Context, targetID, senderID, toolName string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	res, err := c.SendMessage(ctx, targetID, Message{
		SenderID:    senderID,
		MessageType: "tool_invocation",
		Payload:     map[string]any{"tool_name": toolName, "parameters": params},
	})
	if err != nil {
		return nil, err
	}
	return res.Response.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any) (*Response, int, error) {
	body, status, err := c.send(ctx, method, path, in)
	if err != nil {
		return nil, status, err
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, status, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, status, nil
}

func (c *Client) raw(ctx context.Context, method, path string, in any) ([]byte, error) {
	body, _, err := c.send(ctx, method, path, in)
	return body, err
}

func (c *Client) send(ctx context.Context, method, path string, in any) ([]byte, int, error) {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to reach agentkit: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, newAPIError(resp.StatusCode, body)
	}
	return body, resp.StatusCode, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var resp Response
	if json.Unmarshal(body, &resp) == nil {
		apiErr.Message = resp.Message
		apiErr.ErrorCode = resp.ErrorCode
	}
	return apiErr
}
