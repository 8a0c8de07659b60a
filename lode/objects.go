package lode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/conduit/metrics"
)

// objectPrefix is the key prefix for stream objects, kept apart from the
// report dataset's datasets/ tree.
const objectPrefix = "objects/"

// ErrInvalidKey is returned for object keys that are empty or escape the
// objects/ prefix.
var ErrInvalidKey = errors.New("invalid object key")

// Objects reads and writes whole stream objects on a Lode store.
// The store is initialized lazily from the factory on first use.
type Objects struct {
	factory   lode.StoreFactory
	collector *metrics.Collector

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewObjects creates an object accessor over the given store factory.
// The collector may be nil.
func NewObjects(factory lode.StoreFactory, collector *metrics.Collector) *Objects {
	return &Objects{factory: factory, collector: collector}
}

// ObjectPath maps a user-facing key to its store path.
func ObjectPath(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return objectPrefix + clean, nil
}

// getOrCreateStore lazily initializes the Store from the factory.
func (o *Objects) getOrCreateStore() (lode.Store, error) {
	o.storeOnce.Do(func() {
		o.store, o.storeErr = o.factory()
		if o.storeErr != nil {
			o.storeErr = WrapInitError(o.storeErr, objectPrefix)
		}
	})
	return o.store, o.storeErr
}

// Open returns a reader over the object stored under key.
func (o *Objects) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := ObjectPath(key)
	if err != nil {
		return nil, err
	}
	store, err := o.getOrCreateStore()
	if err != nil {
		return nil, err
	}
	rc, err := store.Get(ctx, p)
	if err != nil {
		return nil, WrapReadError(err, p)
	}
	return rc, nil
}

// Put writes data read from r to the object stored under key.
func (o *Objects) Put(ctx context.Context, key string, r io.Reader) error {
	p, err := ObjectPath(key)
	if err != nil {
		return err
	}
	store, err := o.getOrCreateStore()
	if err != nil {
		return err
	}
	if err := store.Put(ctx, p, r); err != nil {
		o.collector.IncLodeWriteFailure()
		return WrapWriteError(err, p)
	}
	o.collector.IncLodeWriteSuccess()
	return nil
}

// Create returns a writer that streams into the object stored under key.
// Bytes flow through an io.Pipe to a goroutine running store.Put; Close
// waits for the upload and returns its error.
func (o *Objects) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	if _, err := ObjectPath(key); err != nil {
		return nil, err
	}
	if _, err := o.getOrCreateStore(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &objectWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		err := o.Put(ctx, key, pr)
		// Unblock a writer still waiting on a failed upload.
		pr.CloseWithError(uploadAborted(err))
		w.done <- err
	}()
	return w, nil
}

// uploadAborted converts a nil upload result into io.ErrClosedPipe so that
// writes after a completed upload still fail.
func uploadAborted(err error) error {
	if err == nil {
		return io.ErrClosedPipe
	}
	return err
}

// Exists reports whether an object is stored under key.
func (o *Objects) Exists(ctx context.Context, key string) (bool, error) {
	p, err := ObjectPath(key)
	if err != nil {
		return false, err
	}
	store, err := o.getOrCreateStore()
	if err != nil {
		return false, err
	}
	ok, err := store.Exists(ctx, p)
	if err != nil {
		return false, WrapReadError(err, p)
	}
	return ok, nil
}

// List returns the keys stored under prefix, without the objects/ prefix.
func (o *Objects) List(ctx context.Context, prefix string) ([]string, error) {
	store, err := o.getOrCreateStore()
	if err != nil {
		return nil, err
	}
	paths, err := store.List(ctx, objectPrefix+prefix)
	if err != nil {
		return nil, WrapListError(err, objectPrefix+prefix)
	}
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, strings.TrimPrefix(p, objectPrefix))
	}
	return keys, nil
}

// objectWriter is the write end of a streaming upload.
type objectWriter struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
	err    error
}

func (w *objectWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close finishes the upload. It is idempotent.
func (w *objectWriter) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	_ = w.pw.Close()
	w.err = <-w.done
	return w.err
}

// Abort cancels the upload with err; the store sees a failed read.
func (w *objectWriter) Abort(err error) error {
	if w.closed {
		return w.err
	}
	w.closed = true
	_ = w.pw.CloseWithError(err)
	w.err = <-w.done
	return w.err
}

// Aborter is implemented by writers that can discard a partial upload.
type Aborter interface {
	Abort(err error) error
}

var _ Aborter = (*objectWriter)(nil)
