package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/xiaot623/agentkit/internal/domain"
)

// RegisterAgent stores a new agent and notifies the webhook collector.
func (s *Service) RegisterAgent(ctx context.Context, req domain.AgentRegistrationPayload) (*domain.AgentRecord, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	rec := &domain.AgentRecord{
		Name:            strings.TrimSpace(req.AgentName),
		CallbackAddress: strings.TrimSpace(req.ContactEndpoint),
		Capabilities:    req.Capabilities,
		Version:         req.Version,
		Metadata:        req.Metadata,
	}
	id, err := s.directory.Register(ctx, rec)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAgent) {
			return nil, domain.NewError(domain.KindConflict,
				fmt.Sprintf("agent with name '%s' already registered", rec.Name), err)
		}
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}
	rec.ID = id
	log.Printf("INFO: registered agent %s (%s)", rec.Name, id)

	s.notify(domain.EventTypeRegister, rec)
	return rec, nil
}

// DeregisterAgent removes an agent and notifies the webhook collector.
func (s *Service) DeregisterAgent(ctx context.Context, agentID string) (*domain.AgentRecord, error) {
	rec, err := s.directory.Deregister(ctx, agentID)
	if err != nil {
		return nil, mapLookupError(agentID, err)
	}
	log.Printf("INFO: deregistered agent %s (%s)", rec.Name, rec.ID)

	s.notify(domain.EventTypeDeregister, rec)
	return rec, nil
}

// ListAgents returns registered agents. A non-empty capability keeps only
// agents advertising it.
func (s *Service) ListAgents(ctx context.Context, capability string) ([]*domain.AgentRecord, error) {
	agents, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	if capability == "" {
		return agents, nil
	}
	filtered := make([]*domain.AgentRecord, 0, len(agents))
	for _, a := range agents {
		if a.HasCapability(capability) {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

func (s *Service) GetAgent(ctx context.Context, agentID string) (*domain.AgentRecord, error) {
	agent, err := s.directory.Lookup(ctx, agentID)
	if err != nil {
		return nil, mapLookupError(agentID, err)
	}
	return agent, nil
}

func (s *Service) notify(eventType domain.EventType, rec *domain.AgentRecord) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(domain.WebhookEvent{
		Type:      eventType,
		Subject:   agentDetails(rec),
		Timestamp: time.Now().Unix(),
	})
}

func agentDetails(rec *domain.AgentRecord) map[string]any {
	details := map[string]any{
		"agentId":           rec.ID,
		"agentName":         rec.Name,
		"capabilities":      rec.Capabilities,
		"version":           rec.Version,
		"contactEndpoint":   rec.CallbackAddress,
		"registration_time": rec.RegisteredAt.UTC().Format(time.RFC3339),
	}
	if len(rec.Metadata) > 0 {
		details["metadata"] = rec.Metadata
	}
	return details
}

func mapLookupError(agentID string, err error) error {
	if errors.Is(err, domain.ErrAgentNotFound) {
		return domain.UnknownAgent(agentID)
	}
	return fmt.Errorf("failed to get agent: %w", err)
}

func validateRegistration(req domain.AgentRegistrationPayload) error {
	if strings.TrimSpace(req.AgentName) == "" {
		return domain.ValidationError("agentName is required")
	}
	if strings.TrimSpace(req.Version) == "" {
		return domain.ValidationError("version is required")
	}
	endpoint := strings.TrimSpace(req.ContactEndpoint)
	if endpoint == "" {
		return domain.ValidationError("contactEndpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.ValidationError("contactEndpoint must be an http(s) URL")
	}
	for _, c := range req.Capabilities {
		if strings.TrimSpace(c) == "" {
			return domain.ValidationError("capabilities must not contain empty values")
		}
	}
	return nil
}
