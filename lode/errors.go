// Package lode connects conduit to Lode object storage.
//
// Storage failures are wrapped in StorageError with a sentinel Kind so
// that callers branch on errors.Is instead of matching messages. The
// runtime reports any StorageError as a storage_error outcome.
package lode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

// Storage failure kinds.
var (
	// ErrPermissionDenied indicates a local permission failure (EACCES).
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound indicates a missing object, file or bucket (ENOENT, 404).
	ErrNotFound = errors.New("not found")
	// ErrDiskFull indicates storage is out of space (ENOSPC, quota).
	ErrDiskFull = errors.New("no space left on device")
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")
	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")
	// ErrAuth indicates missing or invalid credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied indicates valid credentials without permission (403).
	ErrAccessDenied = errors.New("access denied")
	// ErrNetwork indicates a connection-level failure.
	ErrNetwork = errors.New("network error")
	// ErrUnclassified is the Kind of failures matching no other kind.
	ErrUnclassified = errors.New("storage error")
)

// Storage operations recorded in StorageError.Op.
const (
	OpRead  = "read"
	OpWrite = "write"
	OpList  = "list"
	OpInit  = "init"
)

// StorageError is a classified storage failure. The original error stays
// in the chain for errors.As.
type StorageError struct {
	// Kind is one of the sentinel kinds above.
	Kind error
	// Op is one of OpRead, OpWrite, OpList, OpInit.
	Op string
	// Path is the object path, prefix or dataset involved, if any.
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches the error's Kind, so errors.Is(err, ErrNotFound) works
// without unwrapping.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewStorageError creates a classified storage error.
func NewStorageError(kind error, op, path string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Path: path, Err: err}
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	// Already classified further down; keep the inner classification.
	var se *StorageError
	if errors.As(err, &se) {
		return NewStorageError(se.Kind, op, path, err)
	}
	return NewStorageError(classifyError(err), op, path, err)
}

// WrapWriteError classifies a write failure. Returns nil if err is nil.
func WrapWriteError(err error, path string) error { return wrap(OpWrite, path, err) }

// WrapReadError classifies a read failure. Returns nil if err is nil.
func WrapReadError(err error, path string) error { return wrap(OpRead, path, err) }

// WrapListError classifies a list failure. Returns nil if err is nil.
func WrapListError(err error, prefix string) error { return wrap(OpList, prefix, err) }

// WrapInitError classifies a store or dataset construction failure.
// Returns nil if err is nil.
func WrapInitError(err error, dataset string) error { return wrap(OpInit, dataset, err) }

// typedKinds maps standard library errors to kinds. Checked before
// message patterns.
var typedKinds = []struct {
	target error
	kind   error
}{
	{fs.ErrNotExist, ErrNotFound},
	{fs.ErrPermission, ErrPermissionDenied},
	{syscall.ENOSPC, ErrDiskFull},
	{context.DeadlineExceeded, ErrTimeout},
	{syscall.ECONNREFUSED, ErrNetwork},
}

// patternKinds classifies provider errors by message, in order. The S3
// SDK surfaces API error codes (NoSuchKey, SlowDown) only as text here.
var patternKinds = []struct {
	kind     error
	patterns []string
}{
	{ErrAccessDenied, []string{"AccessDenied", "Forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "EACCES"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "ENOENT", "404", "NoSuchKey", "NoSuchBucket"}},
	{ErrDiskFull, []string{"no space left", "disk full", "ENOSPC", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests"}},
	{ErrAuth, []string{"NoCredentialProviders", "credentials", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable", "DNS", "dial tcp"}},
}

// classifyError picks the Kind for err.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	for _, tk := range typedKinds {
		if errors.Is(err, tk.target) {
			return tk.kind
		}
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, pk := range patternKinds {
		for _, p := range pk.patterns {
			if strings.Contains(msg, strings.ToLower(p)) {
				return pk.kind
			}
		}
	}
	return ErrUnclassified
}

// IsStorageError reports whether err carries a storage classification.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
