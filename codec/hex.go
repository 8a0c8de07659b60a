package codec

import (
	"encoding/hex"
	"fmt"

	"github.com/pithecene-io/conduit/stage"
)

// HexEncode returns the lower-case hex form of b.
func HexEncode(b []byte) []byte {
	return hex.AppendEncode(nil, b)
}

// HexDecoder decodes hex text split at arbitrary points. An odd digit at the
// end of a chunk is carried into the next one. CR and LF are skipped.
type HexDecoder struct {
	stage.Lifecycle
	carry []byte
}

// NewHexDecoder creates a HexDecoder.
func NewHexDecoder() *HexDecoder {
	return &HexDecoder{}
}

// Process decodes every complete digit pair.
func (d *HexDecoder) Process(chunk []byte) (stage.Result, error) {
	if err := d.Enter(); err != nil {
		return stage.Result{}, err
	}
	data := append(d.carry, stripLineBreaks(chunk)...)
	n := len(data) &^ 1

	out := make([]byte, n/2)
	if _, err := hex.Decode(out, data[:n]); err != nil {
		return stage.Result{}, fmt.Errorf("unhex: %w: %w", ErrMalformedInput, err)
	}
	d.carry = append(d.carry[:0:0], data[n:]...)

	if n == 0 && len(chunk) > 0 {
		return stage.NeedMore(), nil
	}
	return stage.Output(out), nil
}

// Flush fails if an odd digit is left over.
func (d *HexDecoder) Flush() (stage.Result, error) {
	if err := d.Finish(); err != nil {
		return stage.Result{}, err
	}
	if len(d.carry) > 0 {
		return stage.Result{}, fmt.Errorf("unhex: %w: odd number of hex digits", ErrMalformedInput)
	}
	return stage.Output(nil), nil
}

// stripLineBreaks returns b without CR and LF bytes. b is returned as-is
// when it has none.
func stripLineBreaks(b []byte) []byte {
	clean := true
	for _, c := range b {
		if c == '\r' || c == '\n' {
			clean = false
			break
		}
	}
	if clean {
		return b
	}
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != '\r' && c != '\n' {
			out = append(out, c)
		}
	}
	return out
}
