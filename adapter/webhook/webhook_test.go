package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/conduit/adapter"
	"github.com/pithecene-io/conduit/iox"
)

func testEvent() *adapter.RunCompletedEvent {
	return &adapter.RunCompletedEvent{
		ContractVersion: adapter.ContractVersion,
		EventType:       adapter.EventTypeRunCompleted,
		RunID:           "run-001",
		Day:             "2026-10-18",
		Outcome:         "success",
		Source:          "in.txt",
		Sink:            "lode://out/run-001.bin",
		Stages:          "upper|encrypt",
		StoragePath:     "out/run-001.bin",
		Timestamp:       "2026-10-18T12:00:00Z",
		DurationMs:      1500,
		BytesIn:         1024,
		BytesOut:        1100,
	}
}

// newTestAdapter builds an adapter that retries without sleeping.
func newTestAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a.backoff = func(int) time.Duration { return 0 }
	t.Cleanup(func() { iox.DiscardClose(a) })
	return a
}

func TestPublish_Success(t *testing.T) {
	var received adapter.RunCompletedEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newTestAdapter(t, Config{URL: ts.URL})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if received.RunID != "run-001" {
		t.Errorf("RunID = %q, want %q", received.RunID, "run-001")
	}
	if received.StoragePath != "out/run-001.bin" {
		t.Errorf("StoragePath = %q, want %q", received.StoragePath, "out/run-001.bin")
	}
	if received.BytesOut != 1100 {
		t.Errorf("BytesOut = %d, want 1100", received.BytesOut)
	}
}

func TestPublish_Msgpack(t *testing.T) {
	var received adapter.RunCompletedEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/msgpack" {
			t.Errorf("Content-Type = %s, want application/msgpack", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := msgpack.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a := newTestAdapter(t, Config{URL: ts.URL, Encoding: adapter.EncodingMsgpack})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if received.Stages != "upper|encrypt" {
		t.Errorf("Stages = %q, want %q", received.Stages, "upper|encrypt")
	}
}

func TestPublish_CustomHeaders(t *testing.T) {
	var authHeader atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newTestAdapter(t, Config{
		URL:     ts.URL,
		Headers: map[string]string{"Authorization": "Bearer test-token"},
	})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if got, _ := authHeader.Load().(string); got != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer test-token")
	}
}

func TestPublish_RetriesOnFailure(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newTestAdapter(t, Config{URL: ts.URL, Retries: 3})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish should succeed after retries: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		code         int
		wantErr      bool
		wantAttempts int32
	}{
		{200, false, 1},
		{202, false, 1},
		{204, false, 1},
		{400, true, 1},
		{401, true, 1},
		{404, true, 1},
		{500, true, 3},
		{502, true, 3},
		{503, true, 3},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.code)
			}))
			defer ts.Close()

			a := newTestAdapter(t, Config{URL: ts.URL, Retries: 2})
			err := a.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
			if tt.wantErr {
				var se *StatusError
				if !errors.As(err, &se) || se.Code != tt.code {
					t.Errorf("error = %v, want StatusError{%d}", err, tt.code)
				}
			}
		})
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	defer close(release)

	a := newTestAdapter(t, Config{URL: ts.URL, Timeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("Publish succeeded on canceled context, want error")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New(empty URL) succeeded, want error")
	}
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Error("New(negative retries) succeeded, want error")
	}
	if _, err := New(Config{URL: "http://example.com", Encoding: "xml"}); err == nil {
		t.Error("New(unknown encoding) succeeded, want error")
	}
}

func TestNew_Defaults(t *testing.T) {
	a, err := New(Config{URL: "http://example.com"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
	if a.config.Retries != 0 {
		t.Errorf("Retries = %d, want 0", a.config.Retries)
	}
}

func TestPublish_DeliveryHeaders(t *testing.T) {
	var mu sync.Mutex
	var attempts []string
	var runIDs []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, r.Header.Get(HeaderAttempt))
		runIDs = append(runIDs, r.Header.Get(HeaderRunID))
		if len(attempts) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newTestAdapter(t, Config{URL: ts.URL, Retries: 1})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 2 || attempts[0] != "1" || attempts[1] != "2" {
		t.Errorf("attempt headers = %v, want [1 2]", attempts)
	}
	for _, id := range runIDs {
		if id != "run-001" {
			t.Errorf("run id header = %q, want run-001", id)
		}
	}
}
