package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/agentkit/internal/domain"
	"github.com/xiaot623/agentkit/internal/tasks"
	"github.com/xiaot623/agentkit/webhook"
)

type memRecorder struct {
	mu         sync.Mutex
	deliveries []domain.Delivery
}

func (m *memRecorder) RecordDelivery(ctx context.Context, d *domain.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, *d)
	return nil
}

func (m *memRecorder) all() []domain.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Delivery(nil), m.deliveries...)
}

type collected struct {
	body   []byte
	header http.Header
}

func newCollector(t *testing.T, status int) (*httptest.Server, chan collected) {
	t.Helper()
	ch := make(chan collected, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- collected{body: body, header: r.Header.Clone()}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, ch
}

func TestNotifySignsPayload(t *testing.T) {
	server, ch := newCollector(t, http.StatusOK)
	exec := tasks.NewExecutor(2)
	rec := &memRecorder{}

	n := New(Options{URL: server.URL, Secret: "s3cret", Timeout: time.Second, MaxAttempts: 1}, exec, rec)
	require.True(t, n.Enabled())

	n.Notify(domain.WebhookEvent{
		Type:      domain.EventTypeRegister,
		Subject:   map[string]any{"agentId": "a1", "agentName": "alpha"},
		Timestamp: time.Now().Unix(),
	})
	exec.Wait()

	var got collected
	select {
	case got = <-ch:
	default:
		t.Fatalf("collector received nothing")
	}

	verifier := webhook.NewVerifier("s3cret", time.Minute)
	err := verifier.Verify(got.body, got.header.Get(webhook.HeaderTimestamp), got.header.Get(webhook.HeaderSignature), time.Now())
	require.NoError(t, err)

	var payload Payload
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, domain.EventTypeRegister, payload.EventType)
	assert.Equal(t, "a1", payload.AgentDetails["agentId"])
	assert.Equal(t, `{"agent_details":{"agentId":"a1","agentName":"alpha"},"event_type":"REGISTER"}`, string(got.body))

	deliveries := rec.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, domain.DeliveryStatusDelivered, deliveries[0].Status)
	assert.Equal(t, "REGISTER", deliveries[0].EventType)
	assert.Equal(t, "a1", deliveries[0].Target)
}

func TestNotifyWrongSecretFailsVerification(t *testing.T) {
	server, ch := newCollector(t, http.StatusOK)
	exec := tasks.NewExecutor(1)

	n := New(Options{URL: server.URL, Secret: "one", Timeout: time.Second}, exec, nil)
	n.Notify(domain.WebhookEvent{Type: domain.EventTypeDeregister, Subject: map[string]any{"agentId": "a1"}})
	exec.Wait()

	got := <-ch
	err := webhook.NewVerifier("two", 0).Verify(got.body, got.header.Get(webhook.HeaderTimestamp), got.header.Get(webhook.HeaderSignature), time.Now())
	assert.ErrorIs(t, err, webhook.ErrSignatureInvalid)
}

func TestNotifyDisabled(t *testing.T) {
	server, ch := newCollector(t, http.StatusOK)
	exec := tasks.NewExecutor(1)

	var scheduled int
	exec.OnComplete(func(string, error) { scheduled++ })

	for _, opts := range []Options{
		{URL: server.URL},
		{Secret: "x"},
		{},
	} {
		n := New(opts, exec, nil)
		assert.False(t, n.Enabled())
		n.Notify(domain.WebhookEvent{Type: domain.EventTypeRegister, Subject: map[string]any{"agentId": "a1"}})
	}
	exec.Wait()

	assert.Equal(t, 0, scheduled)
	assert.Len(t, ch, 0)
}

func TestNotifyCollectorFailureIsRecorded(t *testing.T) {
	server, _ := newCollector(t, http.StatusInternalServerError)
	exec := tasks.NewExecutor(1)
	rec := &memRecorder{}

	var taskErr error
	var mu sync.Mutex
	exec.OnComplete(func(_ string, err error) {
		mu.Lock()
		taskErr = err
		mu.Unlock()
	})

	n := New(Options{URL: server.URL, Secret: "s", Timeout: time.Second, MaxAttempts: 1}, exec, rec)
	n.Notify(domain.WebhookEvent{Type: domain.EventTypeRegister, Subject: map[string]any{"agentId": "a9"}})
	exec.Wait()

	mu.Lock()
	assert.Error(t, taskErr)
	mu.Unlock()

	deliveries := rec.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, domain.DeliveryStatusFailed, deliveries[0].Status)
	assert.Equal(t, http.StatusInternalServerError, deliveries[0].HTTPStatus)
}

func TestNotifyReturnsBeforeDelivery(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := tasks.NewExecutor(1)
	n := New(Options{URL: server.URL, Secret: "s", Timeout: 5 * time.Second}, exec, nil)

	start := time.Now()
	n.Notify(domain.WebhookEvent{Type: domain.EventTypeRegister, Subject: map[string]any{"agentId": "a1"}})
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	close(release)
	exec.Wait()
}

func TestNotifyCutOffAtShutdownIsRecorded(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	exec := tasks.NewExecutor(1)
	rec := &memRecorder{}
	n := New(Options{URL: server.URL, Secret: "s", Timeout: 5 * time.Second, MaxAttempts: 1}, exec, rec)
	n.Notify(domain.WebhookEvent{Type: domain.EventTypeDeregister, Subject: map[string]any{"agentId": "a1"}})

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, exec.Shutdown(ctx), context.DeadlineExceeded)

	deliveries := rec.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, domain.DeliveryStatusFailed, deliveries[0].Status)
	assert.Equal(t, "DEREGISTER", deliveries[0].EventType)
}
