package domain

import "encoding/json"

// AgentRegistrationPayload is the request to register an agent.
type AgentRegistrationPayload struct {
	AgentName       string          `json:"agentName"`
	Capabilities    []string        `json:"capabilities"`
	Version         string          `json:"version"`
	ContactEndpoint string          `json:"contactEndpoint"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// ToolListItem represents a tool in the list response.
type ToolListItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Type        string          `json:"type"` // "local" or "external"
	Endpoint    string          `json:"endpoint,omitempty"`
}

// ListToolsResponse represents the response for listing tools.
type ListToolsResponse struct {
	Tools []ToolListItem `json:"tools"`
}
