package tools

import (
	"context"
	"encoding/json"
	"time"
)

// RegisterBuiltins adds the tools every deployment ships with.
func RegisterBuiltins(r *Registry) error {
	if err := r.RegisterFunc("system.echo", "Returns the arguments it was called with.",
		json.RawMessage(`{"type":"object"}`),
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return json.Marshal(map[string]any{"status": "success", "result": args})
		}); err != nil {
		return err
	}
	return r.RegisterFunc("system.time", "Returns the current UTC time.",
		json.RawMessage(`{"type":"object","properties":{}}`),
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return json.Marshal(map[string]any{
				"status": "success",
				"result": time.Now().UTC().Format(time.RFC3339),
			})
		})
}
