// Package redis delivers run completion events to Redis.
//
// Two modes are supported: PUBLISH on a pub/sub channel (fire and forget)
// and XADD onto a stream, which keeps events for consumers that were
// offline when the run finished.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/conduit/adapter"
)

// Defaults.
const (
	DefaultChannel = "conduit:run_completed"
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
)

// Mode selects how events reach Redis.
type Mode string

// Modes.
const (
	ModePublish Mode = "publish"
	ModeStream  Mode = "stream"
)

// StreamField is the stream entry field holding the encoded event.
const StreamField = "event"

// Config configures the Redis adapter.
type Config struct {
	// URL is redis://[:password@]host:port[/db]. Required.
	URL string
	// Channel is the pub/sub channel, or the stream key in stream mode.
	Channel  string
	Mode     Mode // publish when empty
	Timeout  time.Duration
	Retries  int
	Encoding adapter.Encoding
	// MaxLen caps the stream length (approximate trim). Zero means no cap.
	MaxLen int64
}

// Adapter sends run completion events to Redis.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New validates cfg and connects lazily; no command is sent until Publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	switch cfg.Mode {
	case "":
		cfg.Mode = ModePublish
	case ModePublish, ModeStream:
	default:
		return nil, fmt.Errorf("redis adapter: unknown mode %q", cfg.Mode)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("redis adapter: retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.MaxLen < 0 {
		return nil, fmt.Errorf("redis adapter: max length must be >= 0, got %d", cfg.MaxLen)
	}
	if _, err := adapter.Encode(&adapter.RunCompletedEvent{}, cfg.Encoding); err != nil {
		return nil, fmt.Errorf("redis adapter: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish delivers the encoded event, retrying with backoff.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	body, err := adapter.Encode(event, a.config.Encoding)
	if err != nil {
		return fmt.Errorf("redis: encode event: %w", err)
	}

	err = adapter.Retry(ctx, a.config.Retries, nil, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		err := a.send(ctx, event.RunID, body)
		if errors.Is(err, goredis.ErrClosed) {
			return adapter.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("redis %s: %w", a.config.Mode, err)
	}
	return nil
}

func (a *Adapter) send(ctx context.Context, runID string, body []byte) error {
	if a.config.Mode == ModePublish {
		return a.client.Publish(ctx, a.config.Channel, body).Err()
	}
	args := &goredis.XAddArgs{
		Stream: a.config.Channel,
		Values: map[string]any{StreamField: body, "run_id": runID},
	}
	if a.config.MaxLen > 0 {
		args.MaxLen = a.config.MaxLen
		args.Approx = true
	}
	return a.client.XAdd(ctx, args).Err()
}

// Close closes the connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
