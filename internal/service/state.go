package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xiaot623/agentkit/internal/domain"
)

const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 500
)

// IngestState validates and persists a state report pushed for agentID.
// The agent does not need to be registered; reports from agents known only
// to a peer service are accepted.
func (s *Service) IngestState(ctx context.Context, agentID string, report domain.StateReport) (*domain.StateReport, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, domain.ValidationError("agent id is required")
	}
	if report.AgentID == "" {
		report.AgentID = agentID
	}
	if report.AgentID != agentID {
		return nil, domain.ValidationError("agentId '%s' does not match path agent '%s'", report.AgentID, agentID)
	}
	if strings.TrimSpace(string(report.State)) == "" {
		return nil, domain.ValidationError("state is required")
	}
	if _, err := parseReportTime(report.Timestamp); err != nil {
		return nil, domain.ValidationError("timestamp must be ISO 8601, e.g. 2006-01-02T15:04:05Z: %v", err)
	}
	report.ReceivedAt = time.Now().UTC()

	if s.store == nil {
		return nil, domain.NewError(domain.KindInternal, "state storage is not configured", nil)
	}
	if err := s.store.SaveStateReport(ctx, &report); err != nil {
		return nil, fmt.Errorf("failed to save state report: %w", err)
	}
	log.Printf("INFO: agent %s reported state %s", report.AgentID, report.State)
	return &report, nil
}

// localISOLayout is ISO 8601 without an offset, as produced by Python's
// datetime.utcnow().isoformat().
const localISOLayout = "2006-01-02T15:04:05.999999999"

// parseReportTime accepts RFC 3339 and offset-less ISO 8601 timestamps. The
// latter are read as UTC.
func parseReportTime(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err == nil {
		return t, nil
	}
	if local, lerr := time.ParseInLocation(localISOLayout, ts, time.UTC); lerr == nil {
		return local, nil
	}
	return time.Time{}, err
}

// LatestState returns the most recent report for agentID.
func (s *Service) LatestState(ctx context.Context, agentID string) (*domain.StateReport, error) {
	if s.store == nil {
		return nil, domain.NewError(domain.KindInternal, "state storage is not configured", nil)
	}
	report, err := s.store.LatestStateReport(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get state report: %w", err)
	}
	if report == nil {
		return nil, domain.UnknownAgent(agentID)
	}
	return report, nil
}

// ListDeliveries returns recent background deliveries, newest first.
func (s *Service) ListDeliveries(ctx context.Context, kind domain.DeliveryKind, limit int) ([]domain.Delivery, error) {
	switch kind {
	case "", domain.DeliveryKindForward, domain.DeliveryKindWebhook:
	default:
		return nil, domain.ValidationError("unknown delivery kind '%s'", kind)
	}
	if limit <= 0 {
		limit = defaultDeliveryLimit
	}
	if limit > maxDeliveryLimit {
		limit = maxDeliveryLimit
	}
	if s.store == nil {
		return []domain.Delivery{}, nil
	}
	deliveries, err := s.store.ListDeliveries(ctx, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return deliveries, nil
}

// Health checks the storage backends.
func (s *Service) Health(ctx context.Context) error {
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}
	if p, ok := s.directory.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("directory: %w", err)
		}
	}
	return nil
}
