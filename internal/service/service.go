package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/agentkit/internal/adapter/agentclient"
	"github.com/xiaot623/agentkit/internal/config"
	"github.com/xiaot623/agentkit/internal/directory"
	"github.com/xiaot623/agentkit/internal/domain"
	"github.com/xiaot623/agentkit/internal/notify"
	"github.com/xiaot623/agentkit/internal/repository"
	"github.com/xiaot623/agentkit/internal/tasks"
	"github.com/xiaot623/agentkit/internal/tools"
	"github.com/xiaot623/agentkit/policy"
)

const recordTimeout = 5 * time.Second

type Service struct {
	directory    directory.Directory
	tools        *tools.Registry
	executor     *tasks.Executor
	agentClient  *agentclient.Client
	notifier     *notify.Notifier
	store        store.Store
	config       *config.Config
	policyEngine *policy.Engine
}

func New(dir directory.Directory, registry *tools.Registry, executor *tasks.Executor, agentClient *agentclient.Client, notifier *notify.Notifier, store store.Store, cfg *config.Config, policyEngine *policy.Engine) *Service {
	return &Service{
		directory:    dir,
		tools:        registry,
		executor:     executor,
		agentClient:  agentClient,
		notifier:     notifier,
		store:        store,
		config:       cfg,
		policyEngine: policyEngine,
	}
}

// Tools returns the tool registry.
func (s *Service) Tools() *tools.Registry {
	return s.tools
}

func (s *Service) recordDelivery(ctx context.Context, d *domain.Delivery) {
	if s.store == nil {
		return
	}
	if d.DeliveryID == "" {
		d.DeliveryID = uuid.New().String()
	}
	// The task context is cancelled at shutdown; the outcome must still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.store.RecordDelivery(ctx, d); err != nil {
		log.Printf("WARN: failed to record %s delivery for %s: %v", d.Kind, d.Target, err)
	}
}
