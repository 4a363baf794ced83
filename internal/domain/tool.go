package domain

import (
	"encoding/json"
	"time"
)

// ToolCall is a single tool execution request.
type ToolCall struct {
	ToolName       string          `json:"tool_name"`
	Arguments      json.RawMessage `json:"arguments"`
	SenderID       string          `json:"sender_id,omitempty"`
	SessionContext *SessionContext `json:"context,omitempty"`
}

// DispatchResult is the response contract of the dispatcher.
type DispatchResult struct {
	Status DispatchStatus
	Body   *APIResponse
}

// APIResponse is the standard response body.
type APIResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Response status values.
const (
	ResponseStatusSuccess = "success"
	ResponseStatusError   = "error"
)

// ErrCodeToolExecutionFailed marks a tool-level failure inside a COMPLETED result.
const ErrCodeToolExecutionFailed = "TOOL_EXECUTION_FAILED"

// WebhookEvent is a directory lifecycle event sent to the webhook collector.
type WebhookEvent struct {
	Type      EventType
	Subject   map[string]any
	Timestamp int64
}

// StateReport is a state transition pushed by a remote agent.
type StateReport struct {
	AgentID    string         `json:"agentId"`
	State      AgentState     `json:"state"`
	Timestamp  string         `json:"timestamp"`
	Details    map[string]any `json:"details,omitempty"`
	ReceivedAt time.Time      `json:"received_at,omitempty"`
}

// Delivery is the diagnostic record of a background delivery attempt.
type Delivery struct {
	DeliveryID string         `json:"delivery_id"`
	Kind       DeliveryKind   `json:"kind"`
	Target     string         `json:"target"`
	EventType  string         `json:"event_type,omitempty"`
	URL        string         `json:"url"`
	Status     DeliveryStatus `json:"status"`
	HTTPStatus int            `json:"http_status,omitempty"`
	Error      string         `json:"error,omitempty"`
	Attempts   int            `json:"attempts"`
	CreatedAt  time.Time      `json:"created_at"`
}
