package frame

import (
	"github.com/pithecene-io/conduit/stage"
)

// PrefixHandler wraps a handler so that every output becomes one frame.
type PrefixHandler struct {
	inner stage.Handler
	opts  options
}

// Prefix returns a handler producing header(len(h(x))) ++ h(x).
// A nil h frames chunks unchanged.
func Prefix(h stage.Handler, opts ...Option) *PrefixHandler {
	if h == nil {
		h = stage.Identity()
	}
	return &PrefixHandler{inner: h, opts: buildOptions(opts)}
}

// Handle frames the inner handler's output for chunk.
func (p *PrefixHandler) Handle(chunk []byte) ([]byte, error) {
	payload, err := p.inner.Handle(chunk)
	if err != nil {
		return nil, err
	}
	return p.frame(payload)
}

// FlushHandler frames the inner handler's end-of-input output. A handler
// without a Flusher contributes nothing, not even an empty frame.
func (p *PrefixHandler) FlushHandler() ([]byte, error) {
	f, ok := p.inner.(stage.Flusher)
	if !ok {
		return nil, nil
	}
	payload, err := f.FlushHandler()
	if err != nil {
		return nil, err
	}
	return p.frame(payload)
}

func (p *PrefixHandler) frame(payload []byte) ([]byte, error) {
	if err := p.opts.checkSize(uint64(len(payload))); err != nil {
		return nil, err
	}
	out, err := Encode(payload)
	if err != nil {
		return nil, err
	}
	p.opts.collector.IncFrameEncoded()
	return out, nil
}

// NewFramer returns a stage that emits one frame per input chunk.
// Frame boundaries follow the chunks the stage receives; put a
// FixedSizeChunker in front (or use NewChunkedFramer) for fixed-size frames.
func NewFramer(h stage.Handler, opts ...Option) stage.Stage {
	return stage.Func(Prefix(h, opts...))
}

// NewChunkedFramer re-chunks input into blocks of size bytes and frames
// h applied to each block. The final, possibly short or empty, block is
// framed at Flush.
func NewChunkedFramer(size int, h stage.Handler, opts ...Option) (*stage.FixedSizeChunker, error) {
	return stage.NewFixedSizeChunker(size, Prefix(h, opts...))
}
