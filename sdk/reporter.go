package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Environment variables read by NewStateReporterFromEnv.
const (
	EnvStateAPIURL = "STATE_API_URL"
	EnvStateAPIKey = "STATE_API_KEY"
)

// ErrReporterNotConfigured is returned when the state API URL or key is missing.
var ErrReporterNotConfigured = errors.New("state reporter not configured")

// StateReport is the body posted for one state transition.
type StateReport struct {
	AgentID   string         `json:"agentId"`
	Timestamp string         `json:"timestamp"`
	State     string         `json:"state"`
	Details   map[string]any `json:"details"`
}

// StateReporter pushes agent state transitions to the state API. It never
// retries; a failed report is returned to the caller.
type StateReporter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// NewStateReporter creates a reporter. timeout bounds each report; zero
// means 10 seconds.
func NewStateReporter(baseURL, apiKey string, timeout time.Duration) (*StateReporter, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrReporterNotConfigured, EnvStateAPIURL)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrReporterNotConfigured, EnvStateAPIKey)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StateReporter{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

// NewStateReporterFromEnv creates a reporter from STATE_API_URL and STATE_API_KEY.
func NewStateReporterFromEnv() (*StateReporter, error) {
	return NewStateReporter(os.Getenv(EnvStateAPIURL), os.Getenv(EnvStateAPIKey), 0)
}

// Report posts a state transition for agentID. Any non-2xx response is an
// *APIError.
func (r *StateReporter) Report(ctx context.Context, agentID, state string, details map[string]any) error {
	if agentID == "" {
		return errors.New("agent id is required")
	}
	if state == "" {
		return errors.New("state is required")
	}
	if details == nil {
		details = map[string]any{}
	}

	body, err := json.Marshal(StateReport{
		AgentID:   agentID,
		Timestamp: r.now().UTC().Format(time.RFC3339Nano),
		State:     state,
		Details:   details,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal state report: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/agents/%s/state", r.baseURL, url.PathEscape(agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to report state: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, respBody)
	}
	return nil
}
