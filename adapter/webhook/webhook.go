// Package webhook POSTs run completion events to an HTTP endpoint.
//
// Network errors and 5xx responses are retried with backoff; any other
// non-2xx status fails the publish at once.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pithecene-io/conduit/adapter"
	"github.com/pithecene-io/conduit/iox"
)

// DefaultTimeout bounds each POST.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the retry count the CLI uses when none is configured.
const DefaultRetries = 3

// Headers set on every request. Receivers can dedupe retried deliveries
// on HeaderRunID.
const (
	HeaderRunID   = "X-Conduit-Run-Id"
	HeaderAttempt = "X-Conduit-Attempt"
)

// Config configures the webhook adapter.
type Config struct {
	URL      string            // required
	Headers  map[string]string // added to every request
	Timeout  time.Duration     // per request; DefaultTimeout when zero
	Retries  int
	Encoding adapter.Encoding // JSON when empty
}

// Adapter publishes run completion events via HTTP POST.
type Adapter struct {
	config  Config
	client  *http.Client
	backoff func(attempt int) time.Duration
}

// New validates cfg and returns an adapter.
func New(cfg Config) (*Adapter, error) {
	switch {
	case cfg.URL == "":
		return nil, errors.New("webhook adapter requires a URL")
	case cfg.Retries < 0:
		return nil, fmt.Errorf("webhook adapter: retries must be >= 0, got %d", cfg.Retries)
	}
	if _, err := adapter.Encode(&adapter.RunCompletedEvent{}, cfg.Encoding); err != nil {
		return nil, fmt.Errorf("webhook adapter: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		backoff: adapter.Backoff,
	}, nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Publish POSTs the encoded event.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	body, err := adapter.Encode(event, a.config.Encoding)
	if err != nil {
		return fmt.Errorf("webhook: encode event: %w", err)
	}

	attempt := 0
	err = adapter.Retry(ctx, a.config.Retries, a.backoff, func(ctx context.Context) error {
		attempt++
		err := a.post(ctx, body, event.RunID, attempt)
		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			return adapter.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

func (a *Adapter) post(ctx context.Context, body []byte, runID string, attempt int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return adapter.Permanent(fmt.Errorf("create request: %w", err))
	}

	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", a.config.Encoding.ContentType())
	req.Header.Set(HeaderRunID, runID)
	req.Header.Set(HeaderAttempt, strconv.Itoa(attempt))

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(resp.Body)
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close drops idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
