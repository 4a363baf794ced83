package store

import (
	"context"

	"github.com/xiaot623/agentkit/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// State report operations
	SaveStateReport(ctx context.Context, report *domain.StateReport) error
	LatestStateReport(ctx context.Context, agentID string) (*domain.StateReport, error)

	// Delivery log operations
	RecordDelivery(ctx context.Context, d *domain.Delivery) error
	ListDeliveries(ctx context.Context, kind domain.DeliveryKind, limit int) ([]domain.Delivery, error)

	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
