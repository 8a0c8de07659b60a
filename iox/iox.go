// Package iox provides I/O helpers for resource cleanup and stream accounting.
package iox

import (
	"encoding/hex"
	"hash"
	"io"

	sha256 "github.com/minio/sha256-simd"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Flush) where errors are unactionable:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }

// NopWriteCloser wraps w with a no-op Close. Used for stdout sinks, which
// must not be closed by the pipeline.
func NopWriteCloser(w io.Writer) io.WriteCloser {
	return nopWriteCloser{w}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// DigestWriter passes writes through to an underlying writer while hashing
// and counting the bytes that were accepted.
type DigestWriter struct {
	w       io.Writer
	h       hash.Hash
	written int64
}

// NewDigestWriter wraps w with a SHA-256 digest.
func NewDigestWriter(w io.Writer) *DigestWriter {
	return &DigestWriter{w: w, h: sha256.New()}
}

// Write writes p to the underlying writer and hashes the accepted prefix.
func (d *DigestWriter) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	if n > 0 {
		d.h.Write(p[:n])
		d.written += int64(n)
	}
	return n, err
}

// Written returns the number of bytes accepted so far.
func (d *DigestWriter) Written() int64 { return d.written }

// Sum returns the hex SHA-256 of the bytes accepted so far.
func (d *DigestWriter) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}
