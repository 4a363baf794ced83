package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports can map them consistently.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindUnknownTool     ErrorKind = "unknown_tool"
	KindUnknownAgent    ErrorKind = "unknown_agent"
	KindToolUnavailable ErrorKind = "tool_unavailable"
	KindDeliveryFailure ErrorKind = "delivery_failure"
	KindAuthFailure     ErrorKind = "auth_failure"
	KindConflict        ErrorKind = "conflict"
	KindPolicyDenied    ErrorKind = "policy_denied"
	KindInternal        ErrorKind = "internal"
)

// Error is an application error with a kind and optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel causes for resolution failures.
var (
	ErrAgentNotFound  = errors.New("agent not found")
	ErrToolNotFound   = errors.New("tool not found")
	ErrDuplicateAgent = errors.New("agent already registered")
	ErrTimeout        = errors.New("timed out")
)

// ValidationError reports a malformed inbound payload.
func ValidationError(format string, args ...any) *Error {
	return NewError(KindValidation, fmt.Sprintf(format, args...), nil)
}

// UnknownTool reports a tool name that is not registered.
func UnknownTool(name string) *Error {
	return NewError(KindUnknownTool, fmt.Sprintf("tool '%s' not found in registry", name), ErrToolNotFound)
}

// UnknownAgent reports an agent id that is not in the directory.
func UnknownAgent(id string) *Error {
	return NewError(KindUnknownAgent, fmt.Sprintf("agent with ID '%s' not found", id), ErrAgentNotFound)
}

// ToolUnavailable reports a remote tool that could not be reached.
func ToolUnavailable(name string, cause error) *Error {
	return NewError(KindToolUnavailable, fmt.Sprintf("tool '%s' is unavailable", name), cause)
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// PolicyDenied reports a tool invocation blocked by policy.
func PolicyDenied(name, reason string) *Error {
	msg := fmt.Sprintf("tool '%s' blocked by policy", name)
	if reason != "" {
		msg += ": " + reason
	}
	return NewError(KindPolicyDenied, msg, nil)
}
