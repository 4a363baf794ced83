// Package domain defines the core domain models for agentkit.
package domain

// DispatchStatus tells the caller which branch a dispatch took.
type DispatchStatus string

const (
	// DispatchCompleted means the result is final and part of the response.
	DispatchCompleted DispatchStatus = "COMPLETED"
	// DispatchAccepted means the message was accepted for background delivery.
	DispatchAccepted DispatchStatus = "ACCEPTED"
)

// MessageTypeToolInvocation is the wire messageType that selects a tool invocation.
const MessageTypeToolInvocation = "tool_invocation"

// EventType represents the type of a webhook event.
type EventType string

const (
	EventTypeRegister   EventType = "REGISTER"
	EventTypeDeregister EventType = "DEREGISTER"
)

// AgentState is the state an agent reports. The set is open; these are the
// well-known values.
type AgentState string

const (
	AgentStateInitializing AgentState = "initializing"
	AgentStateIdle         AgentState = "idle"
	AgentStateActive       AgentState = "active"
	AgentStateError        AgentState = "error"
)

// DeliveryKind identifies what a background delivery carried.
type DeliveryKind string

const (
	DeliveryKindForward DeliveryKind = "forward"
	DeliveryKindWebhook DeliveryKind = "webhook"
)

// DeliveryStatus represents the outcome of a background delivery.
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)
