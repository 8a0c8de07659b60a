package codec

import (
	"encoding/base64"
	"fmt"

	"github.com/pithecene-io/conduit/stage"
)

var b64 = base64.StdEncoding

// Base64Encoder encodes a stream as one padded base64 text. Input is encoded
// in 3-byte groups; up to two trailing bytes are carried to the next chunk
// and padding is only emitted at Flush.
type Base64Encoder struct {
	stage.Lifecycle
	carry []byte
}

// NewBase64Encoder creates a Base64Encoder.
func NewBase64Encoder() *Base64Encoder {
	return &Base64Encoder{}
}

// Process encodes every complete 3-byte group.
func (e *Base64Encoder) Process(chunk []byte) (stage.Result, error) {
	if err := e.Enter(); err != nil {
		return stage.Result{}, err
	}
	data := append(e.carry, chunk...)
	n := len(data) / 3 * 3

	out := b64.AppendEncode(nil, data[:n])
	e.carry = append(e.carry[:0:0], data[n:]...)

	if n == 0 && len(chunk) > 0 {
		return stage.NeedMore(), nil
	}
	return stage.Output(out), nil
}

// Flush encodes the final partial group with padding.
func (e *Base64Encoder) Flush() (stage.Result, error) {
	if err := e.Finish(); err != nil {
		return stage.Result{}, err
	}
	out := b64.AppendEncode(nil, e.carry)
	e.carry = nil
	return stage.Output(out), nil
}

// Base64Decoder decodes padded base64 text split at arbitrary points.
// Characters are decoded in 4-character groups; CR and LF are skipped.
type Base64Decoder struct {
	stage.Lifecycle
	carry []byte
}

// NewBase64Decoder creates a Base64Decoder.
func NewBase64Decoder() *Base64Decoder {
	return &Base64Decoder{}
}

// Process decodes every complete 4-character group.
func (d *Base64Decoder) Process(chunk []byte) (stage.Result, error) {
	if err := d.Enter(); err != nil {
		return stage.Result{}, err
	}
	data := append(d.carry, stripLineBreaks(chunk)...)
	n := len(data) / 4 * 4

	out, err := b64.AppendDecode(nil, data[:n])
	if err != nil {
		return stage.Result{}, fmt.Errorf("base64-decode: %w: %w", ErrMalformedInput, err)
	}
	d.carry = append(d.carry[:0:0], data[n:]...)

	if n == 0 && len(chunk) > 0 {
		return stage.NeedMore(), nil
	}
	return stage.Output(out), nil
}

// Flush fails if an incomplete group is left over.
func (d *Base64Decoder) Flush() (stage.Result, error) {
	if err := d.Finish(); err != nil {
		return stage.Result{}, err
	}
	if len(d.carry) > 0 {
		return stage.Result{}, fmt.Errorf("base64-decode: %w: %d trailing characters", ErrMalformedInput, len(d.carry))
	}
	return stage.Output(nil), nil
}
