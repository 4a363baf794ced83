package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SessionContext is optional conversational context attached to a message.
type SessionContext struct {
	SessionID     string   `json:"sessionId,omitempty"`
	PriorMessages []string `json:"priorMessages,omitempty"`
}

// Correlation carries caller-side identifiers used to tie a message to an
// external session or task.
type Correlation struct {
	SessionID string `json:"sessionId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
}

// Envelope holds the fields common to every message variant.
type Envelope struct {
	SenderID       string
	TargetID       string
	TaskName       string
	SessionContext *SessionContext
	Correlation    *Correlation
	// Raw is the exact inbound body. Forwards send it unmodified.
	Raw json.RawMessage
}

// Message is one of ToolInvocation or Generic.
type Message interface {
	envelope() *Envelope
}

// ToolInvocation asks the service to run a registered tool.
type ToolInvocation struct {
	Envelope
	ToolName  string
	Arguments json.RawMessage
}

// Generic is any other message; it is forwarded to the target agent.
type Generic struct {
	Envelope
	MessageType string
	Payload     json.RawMessage
}

func (m *ToolInvocation) envelope() *Envelope { return &m.Envelope }
func (m *Generic) envelope() *Envelope        { return &m.Envelope }

// MessagePayload is the wire shape of an inbound message.
type MessagePayload struct {
	SenderID       string          `json:"senderId"`
	MessageType    string          `json:"messageType"`
	Payload        json.RawMessage `json:"payload"`
	SessionContext *SessionContext `json:"sessionContext,omitempty"`
	TaskName       string          `json:"taskName,omitempty"`
	Correlation    *Correlation    `json:"correlation,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`

	// Flat correlation fields sent by Ops-Core callers.
	LegacyTaskName string `json:"task_name,omitempty"`
	OpsCoreSession string `json:"opscore_session_id,omitempty"`
	OpsCoreTaskID  string `json:"opscore_task_id,omitempty"`
}

// correlation merges the nested and flat correlation fields. Nested values win.
func (w *MessagePayload) correlation() *Correlation {
	c := Correlation{SessionID: w.OpsCoreSession, TaskID: w.OpsCoreTaskID}
	if w.Correlation != nil {
		if w.Correlation.SessionID != "" {
			c.SessionID = w.Correlation.SessionID
		}
		if w.Correlation.TaskID != "" {
			c.TaskID = w.Correlation.TaskID
		}
	}
	if c.SessionID == "" && c.TaskID == "" {
		return nil
	}
	return &c
}

type toolInvocationPayload struct {
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters"`
}

// DecodeMessage parses raw into the message variant selected by messageType.
// Malformed input yields a validation error.
func DecodeMessage(targetID string, raw []byte) (Message, error) {
	var wire MessagePayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, ValidationError("invalid message body: %v", err)
	}
	if strings.TrimSpace(wire.SenderID) == "" {
		return nil, ValidationError("senderId is required")
	}
	if strings.TrimSpace(wire.MessageType) == "" {
		return nil, ValidationError("messageType is required")
	}
	if !isJSONObject(wire.Payload) {
		return nil, ValidationError("payload must be a JSON object")
	}

	taskName := wire.TaskName
	if taskName == "" {
		taskName = wire.LegacyTaskName
	}

	env := Envelope{
		SenderID:       wire.SenderID,
		TargetID:       targetID,
		TaskName:       taskName,
		SessionContext: wire.SessionContext,
		Correlation:    wire.correlation(),
		Raw:            append(json.RawMessage(nil), raw...),
	}

	if wire.MessageType != MessageTypeToolInvocation {
		return &Generic{
			Envelope:    env,
			MessageType: wire.MessageType,
			Payload:     wire.Payload,
		}, nil
	}

	var tp toolInvocationPayload
	if err := json.Unmarshal(wire.Payload, &tp); err != nil {
		return nil, ValidationError("invalid tool invocation payload: %v", err)
	}
	if strings.TrimSpace(tp.ToolName) == "" {
		return nil, ValidationError("missing 'tool_name' in payload for tool_invocation message type")
	}
	args := tp.Parameters
	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		args = json.RawMessage(`{}`)
	} else if !isJSONObject(args) {
		return nil, ValidationError("'parameters' must be a JSON object")
	}
	return &ToolInvocation{
		Envelope:  env,
		ToolName:  tp.ToolName,
		Arguments: args,
	}, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
