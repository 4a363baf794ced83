// Package notify sends signed directory lifecycle events to a webhook collector.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/agentkit/internal/adapter/agentclient"
	"github.com/xiaot623/agentkit/internal/domain"
	"github.com/xiaot623/agentkit/internal/logging"
	"github.com/xiaot623/agentkit/internal/tasks"
	"github.com/xiaot623/agentkit/webhook"
)

// recordTimeout bounds writing a delivery outcome. Recording outlives the
// task context so deliveries cut off at shutdown are still logged.
const recordTimeout = 5 * time.Second

// DeliveryRecorder stores delivery outcomes.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, d *domain.Delivery) error
}

// Payload is the webhook body.
type Payload struct {
	AgentDetails map[string]any   `json:"agent_details"`
	EventType    domain.EventType `json:"event_type"`
}

// Options configures a Notifier.
type Options struct {
	URL         string
	Secret      string
	Timeout     time.Duration
	MaxAttempts int
}

// Notifier signs and posts webhook events in the background.
type Notifier struct {
	url         string
	signer      *webhook.Signer
	client      *agentclient.Client
	executor    *tasks.Executor
	recorder    DeliveryRecorder
	maxAttempts int
	now         func() time.Time
}

// New creates a Notifier. recorder may be nil.
func New(opts Options, executor *tasks.Executor, recorder DeliveryRecorder) *Notifier {
	n := &Notifier{
		url:         opts.URL,
		executor:    executor,
		recorder:    recorder,
		maxAttempts: opts.MaxAttempts,
		now:         time.Now,
	}
	if opts.URL != "" && opts.Secret != "" {
		n.signer = webhook.NewSigner(opts.Secret)
		n.client = agentclient.NewClient(opts.Timeout)
	}
	return n
}

// Enabled reports whether both the collector URL and secret are configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.signer != nil
}

// Notify schedules delivery of event and returns immediately. Delivery
// failures are logged and recorded, never returned.
func (n *Notifier) Notify(event domain.WebhookEvent) {
	if !n.Enabled() {
		return
	}

	ts := event.Timestamp
	if ts == 0 {
		ts = n.now().Unix()
	}
	body, sig, err := n.signer.Sign(Payload{AgentDetails: event.Subject, EventType: event.Type}, ts)
	if err != nil {
		log.Printf("WARN: webhook %s dropped: %v", event.Type, err)
		return
	}

	target, _ := event.Subject["agentId"].(string)
	header := http.Header{}
	sig.Apply(header)

	logging.Debugf("scheduling webhook %s for agent %s (ts=%d, %d bytes)", event.Type, target, ts, len(body))
	n.executor.Detach(fmt.Sprintf("webhook:%s:%s", event.Type, target), func(ctx context.Context) error {
		status, attempts, err := n.client.PostWithRetry(ctx, n.url, body, header, n.maxAttempts)
		n.record(ctx, event.Type, target, status, attempts, err)
		if err != nil {
			log.Printf("WARN: webhook %s for agent %s failed at %d after %d attempt(s): %v",
				event.Type, target, ts, attempts, err)
			return err
		}
		log.Printf("INFO: webhook %s for agent %s delivered", event.Type, target)
		return nil
	})
}

func (n *Notifier) record(ctx context.Context, eventType domain.EventType, target string, status, attempts int, err error) {
	if n.recorder == nil {
		return
	}
	d := &domain.Delivery{
		DeliveryID: uuid.New().String(),
		Kind:       domain.DeliveryKindWebhook,
		Target:     target,
		EventType:  string(eventType),
		URL:        n.url,
		Status:     domain.DeliveryStatusDelivered,
		HTTPStatus: status,
		Attempts:   attempts,
		CreatedAt:  n.now(),
	}
	if err != nil {
		d.Status = domain.DeliveryStatusFailed
		d.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if recErr := n.recorder.RecordDelivery(ctx, d); recErr != nil {
		log.Printf("WARN: failed to record webhook delivery: %v", recErr)
	}
}
