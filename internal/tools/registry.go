package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/xiaot623/agentkit/internal/domain"
)

// Invoker executes a tool call.
//
// Errors of kind domain.KindToolUnavailable mean the tool could not be
// reached. Any other error is a failure reported by the tool itself.
type Invoker interface {
	Invoke(ctx context.Context, call domain.ToolCall) (json.RawMessage, error)
}

// ExecutorFunc defines an in-process tool executor.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Invoke implements Invoker.
func (f ExecutorFunc) Invoke(ctx context.Context, call domain.ToolCall) (json.RawMessage, error) {
	return f(ctx, call.Arguments)
}

// Definition describes a registered tool.
type Definition struct {
	Name          string
	Description   string
	Parameters    json.RawMessage
	Invoker       Invoker
	RemoteAddress string
	Timeout       time.Duration
}

// IsRemote reports whether the tool runs behind an HTTP endpoint.
func (d Definition) IsRemote() bool {
	return d.RemoteAddress != ""
}

// Registry stores tool definitions keyed by tool name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Definition),
	}
}

// Register adds def. Registering a name again replaces the earlier
// definition; the last registration wins.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Invoker == nil {
		return fmt.Errorf("invoker is required for %s", def.Name)
	}
	r.mu.Lock()
	_, replaced := r.tools[def.Name]
	r.tools[def.Name] = def
	r.mu.Unlock()

	if replaced {
		log.Printf("WARN: tool %s re-registered, previous definition replaced", def.Name)
	}
	return nil
}

// RegisterFunc registers a local tool.
func (r *Registry) RegisterFunc(name, description string, params json.RawMessage, exec ExecutorFunc) error {
	if exec == nil {
		return fmt.Errorf("executor is required for %s", name)
	}
	return r.Register(Definition{
		Name:        name,
		Description: description,
		Parameters:  params,
		Invoker:     exec,
	})
}

// Resolve returns the definition for name.
func (r *Registry) Resolve(name string) (Definition, error) {
	r.mu.RLock()
	def, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Definition{}, domain.UnknownTool(name)
	}
	return def, nil
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	out := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		out = append(out, def)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
