package domain

import (
	"encoding/json"
	"time"
)

// AgentRecord is a registered agent. Records are immutable once stored.
type AgentRecord struct {
	ID              string          `json:"agentId"`
	Name            string          `json:"agentName"`
	CallbackAddress string          `json:"contactEndpoint"`
	Capabilities    []string        `json:"capabilities"`
	Version         string          `json:"version"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	RegisteredAt    time.Time       `json:"registration_time"`
}

// Clone returns a deep copy so stored records cannot be mutated through a
// returned value.
func (a *AgentRecord) Clone() *AgentRecord {
	if a == nil {
		return nil
	}
	out := *a
	if a.Capabilities != nil {
		out.Capabilities = append([]string(nil), a.Capabilities...)
	}
	if a.Metadata != nil {
		out.Metadata = append(json.RawMessage(nil), a.Metadata...)
	}
	return &out
}

// HasCapability reports whether the agent advertises the capability tag.
func (a *AgentRecord) HasCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
