package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Placeholder is the sample webhook URL; configuring it is the same as configuring nothing.
const Placeholder = "https://your-n8n-instance.com/webhook/your-webhook-id"

// ErrNotConfigured means no real webhook URL is set and the call was skipped.
var ErrNotConfigured = errors.New("analysis webhook not configured")

// StatusError reports a non-2xx reply from the webhook.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded with status %d", e.StatusCode)
}

// Request is the payload handed to the analysis workflow.
type Request struct {
	UserID    string `json:"userId"`
	CSVData   string `json:"csvData"`
	Timestamp string `json:"timestamp"`
}

// NewRequest stamps the payload with an ISO-8601 UTC timestamp in millisecond precision.
func NewRequest(userID, csvData string, now time.Time) Request {
	return Request{
		UserID:    userID,
		CSVData:   csvData,
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

// Dispatcher hands an upload to the analysis workflow.
type Dispatcher interface {
	Enabled() bool
	Dispatch(ctx context.Context, req Request) (json.RawMessage, error)
}

// Webhook posts analysis requests to the external workflow engine.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook builds a Webhook. A zero timeout leaves the call bounded only by ctx.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a real URL is configured.
func (w *Webhook) Enabled() bool {
	return w != nil && w.url != "" && w.url != Placeholder
}

// Dispatch posts req as JSON and returns the decoded JSON reply.
func (w *Webhook) Dispatch(ctx context.Context, req Request) (json.RawMessage, error) {
	if !w.Enabled() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var reply json.RawMessage
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("webhook response parse: %w", err)
	}
	return reply, nil
}

var _ Dispatcher = (*Webhook)(nil)
