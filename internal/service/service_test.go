package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/agentkit/internal/adapter/agentclient"
	"github.com/xiaot623/agentkit/internal/config"
	"github.com/xiaot623/agentkit/internal/directory"
	"github.com/xiaot623/agentkit/internal/domain"
	"github.com/xiaot623/agentkit/internal/notify"
	"github.com/xiaot623/agentkit/internal/tasks"
	"github.com/xiaot623/agentkit/internal/tools"
	"github.com/xiaot623/agentkit/policy"
	"github.com/xiaot623/agentkit/tests/helpers"
	"github.com/xiaot623/agentkit/webhook"
)

type testEnv struct {
	svc      *Service
	executor *tasks.Executor
	registry *tools.Registry

	mu        sync.Mutex
	completed []string
}

func (e *testEnv) completedTasks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.completed...)
}

func newTestEnv(t *testing.T, webhookURL, webhookSecret string) *testEnv {
	t.Helper()

	cfg := &config.Config{
		WebhookURL:         webhookURL,
		WebhookSecret:      webhookSecret,
		WebhookTimeout:     time.Second,
		WebhookMaxAttempts: 1,
		ForwardTimeout:     2 * time.Second,
		ForwardMaxAttempts: 1,
		ToolTimeout:        time.Second,
		WorkerConcurrency:  4,
	}

	env := &testEnv{executor: tasks.NewExecutor(cfg.WorkerConcurrency), registry: tools.NewRegistry()}
	env.executor.OnComplete(func(name string, err error) {
		env.mu.Lock()
		env.completed = append(env.completed, name)
		env.mu.Unlock()
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.executor.Shutdown(ctx)
	})

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	st := helpers.NewTestSQLiteStore(t)
	notifier := notify.New(notify.Options{
		URL:         cfg.WebhookURL,
		Secret:      cfg.WebhookSecret,
		Timeout:     cfg.WebhookTimeout,
		MaxAttempts: cfg.WebhookMaxAttempts,
	}, env.executor, st)

	env.svc = New(directory.NewMemoryDirectory(), env.registry, env.executor,
		agentclient.NewClient(cfg.ForwardTimeout), notifier, st, cfg, engine)
	return env
}

func registerAgent(t *testing.T, svc *Service, name, endpoint string) *domain.AgentRecord {
	t.Helper()
	rec, err := svc.RegisterAgent(context.Background(), domain.AgentRegistrationPayload{
		AgentName:       name,
		Capabilities:    []string{"chat"},
		Version:         "1.0",
		ContactEndpoint: endpoint,
	})
	require.NoError(t, err)
	return rec
}

func decode(t *testing.T, targetID, raw string) domain.Message {
	t.Helper()
	msg, err := domain.DecodeMessage(targetID, []byte(raw))
	require.NoError(t, err)
	return msg
}

func TestDispatchLocalToolCompleted(t *testing.T) {
	env := newTestEnv(t, "", "")
	require.NoError(t, env.registry.RegisterFunc("mock_success", "", nil,
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return json.Marshal(map[string]any{"status": "success", "result": "Executed with " + string(args)})
		}))

	msg := decode(t, "any-agent", `{"senderId":"caller","messageType":"tool_invocation",
		"payload":{"tool_name":"mock_success","parameters":{"input":"data"}}}`)

	res, err := env.svc.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchCompleted, res.Status)
	assert.Equal(t, domain.ResponseStatusSuccess, res.Body.Status)
	assert.Contains(t, res.Body.Message, "Tool 'mock_success' executed successfully")
	data := res.Body.Data.(map[string]any)
	assert.Equal(t, `Executed with {"input":"data"}`, data["result"])
	assert.Empty(t, env.completedTasks())
}

func TestDispatchToolFailureIsCompleted(t *testing.T) {
	env := newTestEnv(t, "", "")
	require.NoError(t, env.registry.RegisterFunc("mock_handled_error", "", nil,
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"status":"error","error_message":"Tool failed as expected"}`), nil
		}))
	require.NoError(t, env.registry.RegisterFunc("mock_raise", "", nil,
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("something broke")
		}))

	for _, name := range []string{"mock_handled_error", "mock_raise"} {
		t.Run(name, func(t *testing.T) {
			msg := decode(t, "a", `{"senderId":"caller","messageType":"tool_invocation","payload":{"tool_name":"`+name+`"}}`)
			res, err := env.svc.Dispatch(context.Background(), msg)
			require.NoError(t, err)
			assert.Equal(t, domain.DispatchCompleted, res.Status)
			assert.Equal(t, domain.ResponseStatusError, res.Body.Status)
			assert.Equal(t, domain.ErrCodeToolExecutionFailed, res.Body.ErrorCode)
			assert.Contains(t, res.Body.Message, "execution failed")
		})
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	env := newTestEnv(t, "", "")
	msg := decode(t, "a", `{"senderId":"caller","messageType":"tool_invocation","payload":{"tool_name":"non_existent_tool"}}`)

	_, err := env.svc.Dispatch(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, domain.KindUnknownTool, domain.KindOf(err))
	assert.Empty(t, env.completedTasks())
}

func TestDispatchRemoteToolUnavailable(t *testing.T) {
	env := newTestEnv(t, "", "")
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	require.NoError(t, env.registry.Register(tools.Definition{
		Name:          "remote.gone",
		Invoker:       tools.NewRemoteInvoker("remote.gone", addr, time.Second),
		RemoteAddress: addr,
	}))

	msg := decode(t, "a", `{"senderId":"caller","messageType":"tool_invocation","payload":{"tool_name":"remote.gone"}}`)
	_, err := env.svc.Dispatch(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, domain.KindToolUnavailable, domain.KindOf(err))
}

func TestDispatchRemoteToolCompleted(t *testing.T) {
	env := newTestEnv(t, "", "")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call domain.ToolCall
		_ = json.NewDecoder(r.Body).Decode(&call)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "echo": call.Arguments})
	}))
	defer server.Close()

	require.NoError(t, env.registry.Register(tools.Definition{
		Name:          "remote.echo",
		Invoker:       tools.NewRemoteInvoker("remote.echo", server.URL, time.Second),
		RemoteAddress: server.URL,
	}))

	msg := decode(t, "a", `{"senderId":"caller","messageType":"tool_invocation","payload":{"tool_name":"remote.echo","parameters":{"q":"x"}}}`)
	res, err := env.svc.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchCompleted, res.Status)
	data := res.Body.Data.(map[string]any)
	assert.Equal(t, map[string]any{"q": "x"}, data["echo"])
}

func TestDispatchPolicyBlocksInternalTool(t *testing.T) {
	env := newTestEnv(t, "", "")
	require.NoError(t, env.registry.RegisterFunc("internal.reset", "", nil,
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"status":"success"}`), nil
		}))

	msg := decode(t, "a", `{"senderId":"stranger","messageType":"tool_invocation","payload":{"tool_name":"internal.reset"}}`)
	_, err := env.svc.Dispatch(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, domain.KindPolicyDenied, domain.KindOf(err))

	sender := registerAgent(t, env.svc, "insider", "http://127.0.0.1:1/cb")
	msg = decode(t, "a", `{"senderId":"`+sender.ID+`","messageType":"tool_invocation","payload":{"tool_name":"internal.reset"}}`)
	res, err := env.svc.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchCompleted, res.Status)
}

func TestDispatchGenericAcceptedWithoutWaiting(t *testing.T) {
	env := newTestEnv(t, "", "")

	release := make(chan struct{})
	received := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	agent := registerAgent(t, env.svc, "slow", server.URL+"/cb")
	raw := `{"senderId":"orchestrator","messageType":"intent_query","payload":{"q":"weather?"}}`
	msg := decode(t, agent.ID, raw)

	start := time.Now()
	res, err := env.svc.Dispatch(context.Background(), msg)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, domain.DispatchAccepted, res.Status)
	assert.Less(t, elapsed, 50*time.Millisecond)

	select {
	case body := <-received:
		assert.Equal(t, raw, string(body))
	case <-time.After(2 * time.Second):
		t.Fatalf("forward never reached the agent")
	}
}

func TestDispatchGenericUnreachableTargetIsRecorded(t *testing.T) {
	env := newTestEnv(t, "", "")
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	agent := registerAgent(t, env.svc, "gone", addr+"/cb")
	msg := decode(t, agent.ID, `{"senderId":"s","messageType":"ping","payload":{}}`)

	start := time.Now()
	res, err := env.svc.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchAccepted, res.Status)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	env.executor.Wait()
	assert.Equal(t, []string{"forward:" + agent.ID}, env.completedTasks())

	deliveries, err := env.svc.ListDeliveries(context.Background(), domain.DeliveryKindForward, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, domain.DeliveryStatusFailed, deliveries[0].Status)
	assert.Equal(t, agent.ID, deliveries[0].Target)
	assert.Equal(t, "ping", deliveries[0].EventType)
}

func TestForwardCutOffAtShutdownIsRecorded(t *testing.T) {
	env := newTestEnv(t, "", "")

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	agent := registerAgent(t, env.svc, "hung", server.URL+"/cb")
	_, err := env.svc.Dispatch(context.Background(), decode(t, agent.ID, `{"senderId":"s","messageType":"ping","payload":{}}`))
	require.NoError(t, err)

	// Let the forward reach the callback before shutting down.
	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, env.executor.Shutdown(ctx), context.DeadlineExceeded)

	deliveries, err := env.svc.ListDeliveries(context.Background(), domain.DeliveryKindForward, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, domain.DeliveryStatusFailed, deliveries[0].Status)
}

func TestDispatchGenericUnknownAgentSchedulesNothing(t *testing.T) {
	env := newTestEnv(t, "", "")
	msg := decode(t, "missing-agent", `{"senderId":"s","messageType":"ping","payload":{}}`)

	_, err := env.svc.Dispatch(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, domain.KindUnknownAgent, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	env.executor.Wait()
	assert.Empty(t, env.completedTasks())
}

func TestRegisterNotifyAndForwardScenario(t *testing.T) {
	const secret = "shared-secret"

	type hit struct {
		body   []byte
		header http.Header
	}
	collected := make(chan hit, 4)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		collected <- hit{body: body, header: r.Header.Clone()}
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	release := make(chan struct{})
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer callback.Close()
	defer close(release)

	env := newTestEnv(t, collector.URL, secret)

	agent := registerAgent(t, env.svc, "A", callback.URL+"/cb")
	require.NotEmpty(t, agent.ID)

	var got hit
	select {
	case got = <-collected:
	case <-time.After(2 * time.Second):
		t.Fatalf("collector never received the webhook")
	}

	verifier := webhook.NewVerifier(secret, time.Minute)
	require.NoError(t, verifier.Verify(got.body, got.header.Get(webhook.HeaderTimestamp),
		got.header.Get(webhook.HeaderSignature), time.Now()))

	var payload notify.Payload
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, domain.EventTypeRegister, payload.EventType)
	assert.Equal(t, agent.ID, payload.AgentDetails["agentId"])

	msg := decode(t, agent.ID, `{"senderId":"orchestrator","messageType":"task","payload":{"n":1}}`)
	start := time.Now()
	res, err := env.svc.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchAccepted, res.Status)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	assert.Len(t, collected, 0)
}

func TestRegisterAgentValidationAndConflict(t *testing.T) {
	env := newTestEnv(t, "", "")
	ctx := context.Background()

	registerAgent(t, env.svc, "dup", "http://host/cb")

	_, err := env.svc.RegisterAgent(ctx, domain.AgentRegistrationPayload{
		AgentName: "dup", Version: "2.0", ContactEndpoint: "http://host/other",
	})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	invalid := []domain.AgentRegistrationPayload{
		{Version: "1", ContactEndpoint: "http://host/cb"},
		{AgentName: "x", ContactEndpoint: "http://host/cb"},
		{AgentName: "x", Version: "1"},
		{AgentName: "x", Version: "1", ContactEndpoint: "ftp://host/cb"},
		{AgentName: "x", Version: "1", ContactEndpoint: "http://host/cb", Capabilities: []string{""}},
	}
	for _, req := range invalid {
		_, err := env.svc.RegisterAgent(ctx, req)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err), "%+v", req)
	}
}

func TestDeregisterAgent(t *testing.T) {
	env := newTestEnv(t, "", "")
	ctx := context.Background()
	agent := registerAgent(t, env.svc, "temp", "http://host/cb")

	removed, err := env.svc.DeregisterAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, removed.ID)

	_, err = env.svc.GetAgent(ctx, agent.ID)
	assert.Equal(t, domain.KindUnknownAgent, domain.KindOf(err))

	_, err = env.svc.DeregisterAgent(ctx, agent.ID)
	assert.Equal(t, domain.KindUnknownAgent, domain.KindOf(err))
}

func TestIngestState(t *testing.T) {
	env := newTestEnv(t, "", "")
	ctx := context.Background()

	_, err := env.svc.IngestState(ctx, "a1", domain.StateReport{
		State:     domain.AgentStateActive,
		Timestamp: "2026-03-01T10:00:00Z",
		Details:   map[string]any{"task": "t1"},
	})
	require.NoError(t, err)

	latest, err := env.svc.LatestState(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", latest.AgentID)
	assert.Equal(t, domain.AgentStateActive, latest.State)

	_, err = env.svc.LatestState(ctx, "nobody")
	assert.Equal(t, domain.KindUnknownAgent, domain.KindOf(err))

	bad := []domain.StateReport{
		{AgentID: "other", State: "idle", Timestamp: "2026-03-01T10:00:00Z"},
		{State: "", Timestamp: "2026-03-01T10:00:00Z"},
		{State: "idle", Timestamp: "yesterday"},
	}
	for _, r := range bad {
		_, err := env.svc.IngestState(ctx, "a1", r)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err), "%+v", r)
	}
}

func TestIngestStateAcceptsOffsetlessTimestamp(t *testing.T) {
	env := newTestEnv(t, "", "")
	ctx := context.Background()

	for _, ts := range []string{"2026-03-01T10:00:00.123456", "2026-03-01T10:00:00", "2026-03-01T10:00:00.5+02:00"} {
		_, err := env.svc.IngestState(ctx, "a1", domain.StateReport{State: "idle", Timestamp: ts})
		assert.NoError(t, err, ts)
	}

	parsed, err := parseReportTime("2026-03-01T10:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, parsed.Location())
	assert.Equal(t, 10, parsed.Hour())
}

func TestListDeliveriesRejectsUnknownKind(t *testing.T) {
	env := newTestEnv(t, "", "")
	_, err := env.svc.ListDeliveries(context.Background(), "carrier-pigeon", 0)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
