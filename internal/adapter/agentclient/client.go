// Package agentclient provides the HTTP client used for outbound deliveries
// to agent callback addresses and other collectors.
package agentclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xiaot623/agentkit/internal/domain"
	"github.com/xiaot623/agentkit/internal/logging"
)

// Forward headers.
const (
	HeaderSender    = "X-AgentKit-Sender"
	HeaderSessionID = "X-AgentKit-Session-ID"
	HeaderTaskID    = "X-AgentKit-Task-ID"
)

const maxErrorBody = 4096

// StatusError is returned when the receiver answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("receiver returned status %d: %s", e.StatusCode, e.Body)
}

// Client posts JSON payloads with a bounded timeout per call.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client. timeout bounds each Post.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Post sends body to url and returns the response status code. Non-2xx
// responses yield a *StatusError; an expired timeout wraps domain.ErrTimeout.
func (c *Client) Post(ctx context.Context, url string, body []byte, header http.Header) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w after %s: %v", domain.ErrTimeout, c.timeout, err)
		}
		return 0, fmt.Errorf("failed to post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Forward delivers the original message bytes to an agent's callback address,
// making up to attempts tries. See PostWithRetry for the return values.
func (c *Client) Forward(ctx context.Context, endpoint string, env *domain.Envelope, attempts int) (int, int, error) {
	header := http.Header{}
	header.Set(HeaderSender, env.SenderID)
	if env.Correlation != nil {
		if env.Correlation.SessionID != "" {
			header.Set(HeaderSessionID, env.Correlation.SessionID)
		}
		if env.Correlation.TaskID != "" {
			header.Set(HeaderTaskID, env.Correlation.TaskID)
		}
	} else if env.SessionContext != nil && env.SessionContext.SessionID != "" {
		header.Set(HeaderSessionID, env.SessionContext.SessionID)
	}
	return c.PostWithRetry(ctx, endpoint, env.Raw, header, attempts)
}

// PostWithRetry calls Post up to attempts times. Only transport errors and 5xx
// responses are retried. It returns the last status, the number of attempts
// made and the last error.
func (c *Client) PostWithRetry(ctx context.Context, url string, body []byte, header http.Header, attempts int) (int, int, error) {
	if attempts < 1 {
		attempts = 1
	}
	var status int
	var err error
	for i := 1; i <= attempts; i++ {
		status, err = c.Post(ctx, url, body, header)
		logging.Debugf("POST %s attempt %d/%d: status=%d err=%v", url, i, attempts, status, err)
		if err == nil || !retryable(status, err) || i == attempts {
			return status, i, err
		}
		select {
		case <-ctx.Done():
			return status, i, err
		case <-time.After(time.Duration(i) * retryBackoff):
		}
	}
	return status, attempts, err
}

const retryBackoff = 200 * time.Millisecond

func retryable(status int, err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return status == 0
}
