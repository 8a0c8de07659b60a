package stage

import (
	"errors"
	"fmt"
)

// ErrInvalidChunkSize is returned for a non-positive chunk size.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// FixedSizeChunker re-chunks input into blocks of exactly Size bytes and
// calls its handler once per block. At end of input the handler is called
// exactly once more with the remainder, which may be shorter than Size or
// empty.
//
// Process always returns Produced, possibly empty: input that does not yet
// fill a block is absorbed into the buffer, which counts as consumed.
type FixedSizeChunker struct {
	Lifecycle
	size    int
	handler Handler
	buf     []byte
}

// NewFixedSizeChunker creates a chunker for blocks of size bytes.
func NewFixedSizeChunker(size int, h Handler) (*FixedSizeChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, size)
	}
	if h == nil {
		h = Identity()
	}
	return &FixedSizeChunker{size: size, handler: h}, nil
}

// Size returns the configured block size.
func (c *FixedSizeChunker) Size() int { return c.size }

// Buffered returns the number of bytes waiting for a full block.
func (c *FixedSizeChunker) Buffered() int { return len(c.buf) }

// Process appends chunk and handles every complete block.
func (c *FixedSizeChunker) Process(chunk []byte) (Result, error) {
	if err := c.Enter(); err != nil {
		return Result{}, err
	}
	c.buf = append(c.buf, chunk...)

	var out []byte
	off := 0
	for len(c.buf)-off >= c.size {
		res, err := c.handler.Handle(c.buf[off : off+c.size])
		if err != nil {
			return Result{}, err
		}
		out = append(out, res...)
		off += c.size
	}

	// Retain the remainder; len(c.buf) < size from here on.
	if off > 0 {
		c.buf = append(c.buf[:0], c.buf[off:]...)
	}
	return Output(out), nil
}

// Flush hands the remainder to the handler exactly once.
func (c *FixedSizeChunker) Flush() (Result, error) {
	if err := c.Finish(); err != nil {
		return Result{}, err
	}
	rest := c.buf
	if rest == nil {
		rest = []byte{}
	}
	res, err := c.handler.Handle(rest)
	if err != nil {
		return Result{}, err
	}
	// res may alias the buffer we are about to drop.
	out := append([]byte(nil), res...)
	c.buf = nil
	return Output(out), nil
}
