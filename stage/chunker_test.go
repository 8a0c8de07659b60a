package stage

import (
	"bytes"
	"errors"
	"strconv"
	"testing"
	"testing/quick"
)

// lenHandler replaces each block with its decimal length.
func lenHandler() Handler {
	return Pure(func(chunk []byte) []byte {
		return []byte(strconv.Itoa(len(chunk)))
	})
}

// recordingHandler remembers every block it saw.
type recordingHandler struct {
	calls [][]byte
}

func (h *recordingHandler) Handle(chunk []byte) ([]byte, error) {
	h.calls = append(h.calls, append([]byte(nil), chunk...))
	return chunk, nil
}

func feedAll(t *testing.T, s Stage, chunks ...[]byte) []byte {
	t.Helper()
	var out []byte
	for _, c := range chunks {
		res, err := s.Process(c)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if res.NeedsMoreInput() {
			t.Fatalf("Process returned NeedMoreInput, want Produced")
		}
		out = append(out, res.Bytes()...)
	}
	res, err := s.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return append(out, res.Bytes()...)
}

func TestNewFixedSizeChunker_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := NewFixedSizeChunker(size, Identity()); !errors.Is(err, ErrInvalidChunkSize) {
			t.Errorf("NewFixedSizeChunker(%d) error = %v, want ErrInvalidChunkSize", size, err)
		}
	}
}

func TestFixedSizeChunker_LengthScenario(t *testing.T) {
	c, err := NewFixedSizeChunker(2, lenHandler())
	if err != nil {
		t.Fatal(err)
	}
	got := feedAll(t, c, []byte("abc"))
	if string(got) != "21" {
		t.Errorf("output = %q, want %q", got, "21")
	}
}

func TestFixedSizeChunker_PartialBlockIsProducedEmpty(t *testing.T) {
	c, err := NewFixedSizeChunker(4, Identity())
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Process([]byte("ab"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.NeedsMoreInput() {
		t.Fatal("partial block must be Produced(empty), not NeedMoreInput")
	}
	if len(res.Bytes()) != 0 {
		t.Errorf("Process = %q, want empty", res.Bytes())
	}
	if c.Buffered() != 2 {
		t.Errorf("Buffered() = %d, want 2", c.Buffered())
	}
}

func TestFixedSizeChunker_BufferBelowSizeAfterPass(t *testing.T) {
	h := &recordingHandler{}
	c, err := NewFixedSizeChunker(3, h)
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range []string{"a", "bcdefg", "hi", "jklmnopq"} {
		if _, err := c.Process([]byte(in)); err != nil {
			t.Fatalf("Process(%q): %v", in, err)
		}
		if c.Buffered() >= c.Size() {
			t.Fatalf("Buffered() = %d after pass, want < %d", c.Buffered(), c.Size())
		}
	}
	for i, call := range h.calls {
		if len(call) != 3 {
			t.Errorf("call %d had %d bytes, want 3", i, len(call))
		}
	}
}

func TestFixedSizeChunker_EmptyRemainderStillFlushes(t *testing.T) {
	h := &recordingHandler{}
	c, err := NewFixedSizeChunker(2, h)
	if err != nil {
		t.Fatal(err)
	}
	got := feedAll(t, c, []byte("abcd"))
	if string(got) != "abcd" {
		t.Errorf("output = %q, want %q", got, "abcd")
	}
	if len(h.calls) != 3 {
		t.Fatalf("handler called %d times, want 3", len(h.calls))
	}
	if len(h.calls[2]) != 0 {
		t.Errorf("final call had %d bytes, want 0", len(h.calls[2]))
	}
}

func TestFixedSizeChunker_EmptyStream(t *testing.T) {
	c, err := NewFixedSizeChunker(8, lenHandler())
	if err != nil {
		t.Fatal(err)
	}
	got := feedAll(t, c)
	if string(got) != "0" {
		t.Errorf("output = %q, want %q", got, "0")
	}
}

func TestFixedSizeChunker_UseAfterFlush(t *testing.T) {
	c, err := NewFixedSizeChunker(2, Identity())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := c.Process([]byte("x")); !errors.Is(err, ErrStageFinished) {
		t.Errorf("Process after Flush = %v, want ErrStageFinished", err)
	}
	if _, err := c.Flush(); !errors.Is(err, ErrStageFinished) {
		t.Errorf("second Flush = %v, want ErrStageFinished", err)
	}
}

func TestFixedSizeChunker_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	c, err := NewFixedSizeChunker(1, HandlerFunc(func([]byte) ([]byte, error) { return nil, boom }))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Process([]byte("x")); !errors.Is(err, boom) {
		t.Errorf("Process error = %v, want %v", err, boom)
	}
}

// The concatenated output equals h applied to each size-byte block in order,
// then h applied once to the remainder, regardless of how input is split.
func TestFixedSizeChunker_FlushLaw(t *testing.T) {
	tag := func(b []byte) []byte {
		return append([]byte{'<'}, append(append([]byte(nil), b...), '>')...)
	}

	f := func(data []byte, sizeSeed uint8, splits []uint8) bool {
		size := int(sizeSeed%16) + 1

		var want []byte
		rest := data
		for len(rest) >= size {
			want = append(want, tag(rest[:size])...)
			rest = rest[size:]
		}
		want = append(want, tag(rest)...)

		c, err := NewFixedSizeChunker(size, Pure(tag))
		if err != nil {
			return false
		}
		var got []byte
		in := data
		for _, s := range splits {
			if len(in) == 0 {
				break
			}
			n := int(s)%len(in) + 1
			res, err := c.Process(in[:n])
			if err != nil {
				return false
			}
			got = append(got, res.Bytes()...)
			in = in[n:]
		}
		res, err := c.Process(in)
		if err != nil {
			return false
		}
		got = append(got, res.Bytes()...)
		res, err = c.Flush()
		if err != nil {
			return false
		}
		got = append(got, res.Bytes()...)
		return bytes.Equal(got, want)
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}
