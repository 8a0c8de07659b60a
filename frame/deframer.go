package frame

import (
	"fmt"

	"github.com/pithecene-io/conduit/stage"
)

// noHeader marks a Deframer that is waiting for the next length prefix.
const noHeader = -1

// Deframer is a stage that reassembles frames from arbitrarily chunked
// input and calls its handler once per complete payload.
//
// While a header has been read, buf holds a strict prefix of that payload.
// Otherwise buf holds fewer than HeaderSize bytes between calls.
type Deframer struct {
	stage.Lifecycle
	handler  stage.Handler
	opts     options
	buf      []byte
	expected int
}

// NewDeframer creates a Deframer. A nil h emits payloads unchanged.
func NewDeframer(h stage.Handler, opts ...Option) *Deframer {
	if h == nil {
		h = stage.Identity()
	}
	return &Deframer{
		handler:  h,
		opts:     buildOptions(opts),
		expected: noHeader,
	}
}

// MaxPayload returns the payload limit in effect.
func (d *Deframer) MaxPayload() uint64 { return d.opts.maxPayload }

// Pending reports whether a header has been read without its full payload.
func (d *Deframer) Pending() bool { return d.expected != noHeader }

// Buffered returns the number of bytes held for an incomplete header or payload.
func (d *Deframer) Buffered() int { return len(d.buf) }

// Process appends chunk and handles every complete frame it finishes.
// The result is always Produced, possibly empty.
func (d *Deframer) Process(chunk []byte) (stage.Result, error) {
	if err := d.Enter(); err != nil {
		return stage.Result{}, err
	}
	d.buf = append(d.buf, chunk...)

	var out []byte
	off := 0
	for {
		avail := len(d.buf) - off
		if d.expected == noHeader {
			if avail < HeaderSize {
				break
			}
			n := ParseHeader(d.buf[off:])
			if err := d.opts.checkSize(uint64(n)); err != nil {
				return stage.Result{}, err
			}
			d.expected = int(n)
			off += HeaderSize
			continue
		}
		if avail < d.expected {
			break
		}
		res, err := d.handler.Handle(d.buf[off : off+d.expected])
		if err != nil {
			return stage.Result{}, err
		}
		d.opts.collector.IncFrameDecoded()
		out = append(out, res...)
		off += d.expected
		d.expected = noHeader
	}

	if off > 0 {
		d.buf = append(d.buf[:0], d.buf[off:]...)
	}
	return stage.Output(out), nil
}

// Flush fails with a truncated frame error when input ended mid-frame.
// Otherwise it returns the handler's end-of-input output, if any.
func (d *Deframer) Flush() (stage.Result, error) {
	if err := d.Finish(); err != nil {
		return stage.Result{}, err
	}
	if d.expected != noHeader {
		d.opts.collector.IncFrameTruncated()
		err := truncatedError(
			fmt.Sprintf("stream ended with %d of %d payload bytes", len(d.buf), d.expected), nil)
		d.buf = nil
		return stage.Result{}, err
	}
	if len(d.buf) > 0 {
		d.opts.collector.IncFrameTruncated()
		err := truncatedError(
			fmt.Sprintf("stream ended with %d of %d header bytes", len(d.buf), HeaderSize), nil)
		d.buf = nil
		return stage.Result{}, err
	}

	if f, ok := d.handler.(stage.Flusher); ok {
		out, err := f.FlushHandler()
		if err != nil {
			return stage.Result{}, err
		}
		return stage.Output(out), nil
	}
	return stage.Output(nil), nil
}
