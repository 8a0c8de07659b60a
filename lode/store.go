package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// DefaultDataset is the dataset ID used for run reports.
const DefaultDataset = "conduit"

// ErrUnknownBackend is returned for a backend name outside fs, s3 and memory.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Config selects and configures the object store.
type Config struct {
	// Backend is one of BackendFS, BackendS3, BackendMemory.
	Backend string
	// Path is the filesystem root (fs) or "bucket/prefix" (s3).
	Path string
	// Region is the AWS region (s3 only, optional).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers.
	Endpoint string
	// UsePathStyle forces path-style S3 addressing.
	UsePathStyle bool
	// Dataset is the report dataset ID. Empty means DefaultDataset.
	Dataset string
}

// DatasetID returns the configured dataset or the default.
func (c Config) DatasetID() string {
	if c.Dataset == "" {
		return DefaultDataset
	}
	return c.Dataset
}

// Validate checks that the backend is known and its location is set.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFS:
		if c.Path == "" {
			return errors.New("fs storage requires a path")
		}
	case BackendS3:
		bucket, prefix := ParseS3Path(c.Path)
		s3cfg := S3Config{Bucket: bucket, Prefix: prefix}
		return s3cfg.Validate()
	case BackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	return nil
}

// S3Config holds configuration for S3 storage backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

var (
	memoryOnce  sync.Once
	memoryStore lode.Store
)

// sharedMemory returns the process-wide in-memory store so that every
// factory built for BackendMemory sees the same objects.
func sharedMemory() lode.Store {
	memoryOnce.Do(func() {
		memoryStore = lode.NewMemory()
	})
	return memoryStore
}

// NewFactory builds a lode.StoreFactory for the configured backend.
// The S3 client is constructed eagerly so credential problems surface here.
func NewFactory(ctx context.Context, cfg Config) (lode.StoreFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendFS:
		return lode.NewFSFactory(cfg.Path), nil
	case BackendMemory:
		store := sharedMemory()
		return func() (lode.Store, error) { return store, nil }, nil
	default:
		bucket, prefix := ParseS3Path(cfg.Path)
		return newS3Factory(ctx, S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.UsePathStyle,
		})
	}
}

// newS3Factory creates a store factory with the S3 backend.
// Uses AWS SDK default credential chain (env vars, shared config, IAM role).
func newS3Factory(ctx context.Context, s3cfg S3Config) (lode.StoreFactory, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		opts = append(opts, config.WithRegion(s3cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, WrapInitError(fmt.Errorf("failed to load AWS config: %w", err), s3cfg.Bucket)
	}

	var s3Opts []func(*s3.Options)
	if s3cfg.Endpoint != "" {
		endpoint := s3cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if s3cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: s3cfg.Bucket,
			Prefix: s3cfg.Prefix,
		})
	}, nil
}
