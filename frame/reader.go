package frame

import (
	"errors"
	"io"
)

// Info describes one frame in a stream.
type Info struct {
	// Index is the zero-based frame number.
	Index int `json:"index" yaml:"index" msgpack:"index"`
	// Offset is the stream offset of the frame header.
	Offset int64 `json:"offset" yaml:"offset" msgpack:"offset"`
	// Length is the payload length from the header.
	Length int `json:"length" yaml:"length" msgpack:"length"`
}

// Reader decodes frames from a stream.
type Reader struct {
	r      io.Reader
	opts   options
	index  int
	offset int64
}

// NewReader creates a frame reader over r.
func NewReader(r io.Reader, opts ...Option) *Reader {
	return &Reader{r: r, opts: buildOptions(opts)}
}

// ReadFrame reads a single frame and returns its payload.
//
// Errors:
//   - io.EOF: stream ended cleanly on a frame boundary
//   - *FrameError with Kind=FrameErrorTruncated: stream ended mid-frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: header exceeds the limit (fatal)
func (r *Reader) ReadFrame() ([]byte, error) {
	_, payload, err := r.Next()
	return payload, err
}

// Next reads a single frame and returns its position along with the payload.
func (r *Reader) Next() (Info, []byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err == io.EOF {
			return Info{}, nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			r.opts.collector.IncFrameTruncated()
			return Info{}, nil, truncatedError("failed to read length prefix", err)
		}
		return Info{}, nil, err
	}

	size := ParseHeader(header[:])
	if err := r.opts.checkSize(uint64(size)); err != nil {
		return Info{}, nil, err
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			r.opts.collector.IncFrameTruncated()
			return Info{}, nil, truncatedError("failed to read payload", io.ErrUnexpectedEOF)
		}
		return Info{}, nil, err
	}

	info := Info{Index: r.index, Offset: r.offset, Length: int(size)}
	r.index++
	r.offset += HeaderSize + int64(size)
	r.opts.collector.IncFrameDecoded()
	return info, payload, nil
}

// Writer encodes frames onto a stream.
type Writer struct {
	w    io.Writer
	opts options
}

// NewWriter creates a frame writer over w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	return &Writer{w: w, opts: buildOptions(opts)}
}

// WriteFrame writes payload as one frame.
func (w *Writer) WriteFrame(payload []byte) error {
	if err := w.opts.checkSize(uint64(len(payload))); err != nil {
		return err
	}
	var header [HeaderSize]byte
	PutHeader(header[:], uint32(len(payload)))
	if _, err := w.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	w.opts.collector.IncFrameEncoded()
	return nil
}

// Scan reads every frame in r and calls fn with its position and payload.
// It stops at the first error from the stream or from fn. A clean end of
// stream returns nil.
func Scan(r io.Reader, fn func(Info, []byte) error, opts ...Option) error {
	fr := NewReader(r, opts...)
	for {
		info, payload, err := fr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(info, payload); err != nil {
			return err
		}
	}
}
