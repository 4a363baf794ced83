package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xiaot623/agentkit/internal/domain"
	"github.com/xiaot623/agentkit/internal/logging"
	"github.com/xiaot623/agentkit/policy"
)

// Dispatch routes msg. Tool invocations run within the call and yield
// COMPLETED; generic messages are accepted and forwarded in the background.
// Errors returned here are always discovered before the response is fixed.
func (s *Service) Dispatch(ctx context.Context, msg domain.Message) (*domain.DispatchResult, error) {
	switch m := msg.(type) {
	case *domain.ToolInvocation:
		return s.invokeTool(ctx, m)
	case *domain.Generic:
		return s.acceptForward(ctx, m)
	default:
		return nil, domain.NewError(domain.KindInternal, fmt.Sprintf("unsupported message %T", msg), nil)
	}
}

func (s *Service) invokeTool(ctx context.Context, m *domain.ToolInvocation) (*domain.DispatchResult, error) {
	def, err := s.tools.Resolve(m.ToolName)
	if err != nil {
		return nil, err
	}

	if err := s.checkPolicy(ctx, m); err != nil {
		return nil, err
	}

	call := domain.ToolCall{
		ToolName:       m.ToolName,
		Arguments:      m.Arguments,
		SenderID:       m.SenderID,
		SessionContext: m.SessionContext,
	}

	logging.Debugf("invoking tool %s for sender %s (remote=%t)", m.ToolName, m.SenderID, def.IsRemote())
	start := time.Now()
	result, err := def.Invoker.Invoke(ctx, call)
	if err != nil {
		if domain.IsKind(err, domain.KindToolUnavailable) {
			log.Printf("WARN: tool %s unavailable after %s: %v", m.ToolName, time.Since(start), err)
			return nil, err
		}
		log.Printf("INFO: tool %s failed: %v", m.ToolName, err)
		return toolFailure(m.ToolName, err.Error(), map[string]any{
			"status":        domain.ResponseStatusError,
			"error_message": err.Error(),
		}), nil
	}

	data := decodeResult(result)
	if obj, ok := data.(map[string]any); ok && obj["status"] == domain.ResponseStatusError {
		errMsg, _ := obj["error_message"].(string)
		if errMsg == "" {
			errMsg = "Unknown tool error"
		}
		return toolFailure(m.ToolName, errMsg, obj), nil
	}

	return &domain.DispatchResult{
		Status: domain.DispatchCompleted,
		Body: &domain.APIResponse{
			Status:  domain.ResponseStatusSuccess,
			Message: fmt.Sprintf("Tool '%s' executed successfully.", m.ToolName),
			Data:    data,
		},
	}, nil
}

func (s *Service) checkPolicy(ctx context.Context, m *domain.ToolInvocation) error {
	if s.policyEngine == nil {
		return nil
	}

	input := policy.Input{
		ToolName: m.ToolName,
		SenderID: m.SenderID,
		TargetID: m.TargetID,
	}
	if _, err := s.directory.Lookup(ctx, m.SenderID); err == nil {
		input.SenderRegistered = true
	}
	var args map[string]any
	if err := json.Unmarshal(m.Arguments, &args); err == nil {
		input.Args = args
	}

	decision, reason, err := s.policyEngine.Evaluate(ctx, input)
	if err != nil {
		return domain.NewError(domain.KindInternal, "policy evaluation failed", err)
	}
	if decision == policy.DecisionBlock {
		log.Printf("INFO: tool %s blocked for sender %s: %s", m.ToolName, m.SenderID, reason)
		return domain.PolicyDenied(m.ToolName, reason)
	}
	return nil
}

func toolFailure(toolName, errMsg string, data any) *domain.DispatchResult {
	return &domain.DispatchResult{
		Status: domain.DispatchCompleted,
		Body: &domain.APIResponse{
			Status:    domain.ResponseStatusError,
			Message:   fmt.Sprintf("Tool '%s' execution failed: %s", toolName, errMsg),
			Data:      data,
			ErrorCode: domain.ErrCodeToolExecutionFailed,
		},
	}
}

// decodeResult turns the raw tool output into a JSON value for the response.
func decodeResult(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func (s *Service) acceptForward(ctx context.Context, m *domain.Generic) (*domain.DispatchResult, error) {
	agent, err := s.GetAgent(ctx, m.TargetID)
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimSpace(agent.CallbackAddress)
	if endpoint == "" {
		return nil, domain.ValidationError("agent '%s' has no contact endpoint", agent.ID)
	}

	s.scheduleForward(agent.ID, endpoint, m)

	return &domain.DispatchResult{
		Status: domain.DispatchAccepted,
		Body: &domain.APIResponse{
			Status:  domain.ResponseStatusSuccess,
			Message: fmt.Sprintf("Message type '%s' accepted for delivery to agent %s.", m.MessageType, agent.ID),
			Data: map[string]any{
				"agentId":     agent.ID,
				"messageType": m.MessageType,
			},
		},
	}, nil
}

// scheduleForward detaches delivery of m to endpoint. Its outcome is logged
// and recorded; the caller has already been answered.
func (s *Service) scheduleForward(agentID, endpoint string, m *domain.Generic) {
	env := m.Envelope
	attempts := 1
	if s.config != nil {
		attempts = s.config.ForwardMaxAttempts
	}

	logging.Debugf("scheduling forward of %s from %s to agent %s at %s", m.MessageType, env.SenderID, agentID, endpoint)
	s.executor.Detach("forward:"+agentID, func(ctx context.Context) error {
		start := time.Now()
		status, tried, err := s.agentClient.Forward(ctx, endpoint, &env, attempts)
		d := &domain.Delivery{
			Kind:       domain.DeliveryKindForward,
			Target:     agentID,
			EventType:  m.MessageType,
			URL:        endpoint,
			Status:     domain.DeliveryStatusDelivered,
			HTTPStatus: status,
			Attempts:   tried,
			CreatedAt:  start,
		}
		if err != nil {
			d.Status = domain.DeliveryStatusFailed
			d.Error = err.Error()
		}
		s.recordDelivery(ctx, d)

		if err != nil {
			log.Printf("WARN: forward of %s from %s to agent %s failed at %s after %d attempt(s): %v",
				m.MessageType, env.SenderID, agentID, start.UTC().Format(time.RFC3339), tried, err)
			return domain.NewError(domain.KindDeliveryFailure, "forward to "+agentID+" failed", err)
		}
		log.Printf("INFO: forwarded %s from %s to agent %s (status %d)", m.MessageType, env.SenderID, agentID, status)
		return nil
	})
}
