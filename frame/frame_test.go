package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
	"testing/iotest"
	"testing/quick"

	"github.com/pithecene-io/conduit/metrics"
	"github.com/pithecene-io/conduit/stage"
)

// encodeFrame builds a frame by hand, independent of the package encoder.
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// run feeds input to s in pieces of step bytes, then flushes.
func run(s stage.Stage, input []byte, step int) ([]byte, error) {
	var out []byte
	for len(input) > 0 {
		n := min(step, len(input))
		res, err := s.Process(input[:n])
		if err != nil {
			return out, err
		}
		out = append(out, res.Bytes()...)
		input = input[n:]
	}
	res, err := s.Flush()
	if err != nil {
		return out, err
	}
	return append(out, res.Bytes()...), nil
}

func TestHeader_LittleEndian(t *testing.T) {
	got := AppendHeader(nil, 0x01020304)
	want := []byte{0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendHeader = %v, want %v", got, want)
	}
	if n := ParseHeader(want); n != 0x01020304 {
		t.Errorf("ParseHeader = %#x, want %#x", n, 0x01020304)
	}
}

func TestEncode(t *testing.T) {
	got, err := Encode([]byte("hello"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := append([]byte{5, 0, 0, 0}, "hello"...)
	if !bytes.Equal(got, want) {
		t.Errorf("Encode = %v, want %v", got, want)
	}
}

func TestChunkedFramer_Scenario(t *testing.T) {
	s, err := NewChunkedFramer(2, stage.Identity())
	if err != nil {
		t.Fatalf("NewChunkedFramer failed: %v", err)
	}
	got, err := run(s, []byte{0, 1, 2}, 3)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var want []byte
	want = append(want, encodeFrame([]byte{0, 1})...)
	want = append(want, encodeFrame([]byte{2})...)
	if !bytes.Equal(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
}

func TestChunkedFramer_EmptyRemainderYieldsEmptyFrame(t *testing.T) {
	s, err := NewChunkedFramer(2, nil)
	if err != nil {
		t.Fatalf("NewChunkedFramer failed: %v", err)
	}
	got, err := run(s, []byte("ab"), 2)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := append(encodeFrame([]byte("ab")), 0, 0, 0, 0)
	if !bytes.Equal(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
}

func TestFramer_OneFramePerChunk(t *testing.T) {
	upper := stage.Pure(bytes.ToUpper)
	got, err := run(NewFramer(upper), []byte("abcde"), 2)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var want []byte
	for _, p := range []string{"AB", "CD", "E"} {
		want = append(want, encodeFrame([]byte(p))...)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
}

type trailer struct{}

func (trailer) Handle(b []byte) ([]byte, error) { return b, nil }
func (trailer) FlushHandler() ([]byte, error)   { return []byte("end"), nil }

func TestFramer_FramesFlusherOutput(t *testing.T) {
	got, err := run(NewFramer(trailer{}), []byte("x"), 1)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := append(encodeFrame([]byte("x")), encodeFrame([]byte("end"))...)
	if !bytes.Equal(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
}

func TestFramer_TooLarge(t *testing.T) {
	c := metrics.NewCollector("", "", "", "", "")
	s := NewFramer(nil, WithMaxPayload(3), WithCollector(c))
	_, err := s.Process([]byte("abcd"))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Process error = %v, want ErrTooLarge", err)
	}
	if !IsFatalFrameError(err) {
		t.Error("oversized frame should be fatal")
	}
	if got := c.Snapshot().FramesTooLarge; got != 1 {
		t.Errorf("FramesTooLarge = %d, want 1", got)
	}
}

func TestDeframer_Scenario(t *testing.T) {
	var stream []byte
	for _, p := range []string{"a", "bb", "ccc", "dddd", "eeee"} {
		stream = append(stream, encodeFrame([]byte(p))...)
	}

	for _, step := range []int{1, 2, 3, 4, 5, 7, len(stream)} {
		t.Run(fmt.Sprintf("step=%d", step), func(t *testing.T) {
			got, err := run(NewDeframer(stage.Identity()), stream, step)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if string(got) != "abbcccddddeeee" {
				t.Errorf("output = %q, want %q", got, "abbcccddddeeee")
			}
		})
	}
}

func TestDeframer_BoundaryStraddlingReadSize(t *testing.T) {
	for i := range 13 {
		aLen := 8180 + i
		stream := append(encodeFrame(bytes.Repeat([]byte("a"), aLen)), encodeFrame(bytes.Repeat([]byte("b"), 16))...)

		got, err := run(NewDeframer(nil), stream, 4)
		if err != nil {
			t.Fatalf("i=%d: run failed: %v", i, err)
		}
		want := strings.Repeat("a", aLen) + strings.Repeat("b", 16)
		if string(got) != want {
			t.Errorf("i=%d: output length %d, want %d", i, len(got), len(want))
		}
	}
}

func TestDeframer_ZeroLengthFrame(t *testing.T) {
	var calls int
	h := stage.HandlerFunc(func(b []byte) ([]byte, error) {
		calls++
		return b, nil
	})
	stream := append(encodeFrame(nil), encodeFrame([]byte("z"))...)
	got, err := run(NewDeframer(h), stream, 1)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if string(got) != "z" {
		t.Errorf("output = %q, want %q", got, "z")
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestDeframer_Truncated(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"partial header", []byte{5, 0}},
		{"partial payload", append([]byte{5, 0, 0, 0}, "hel"...)},
		{"header only", []byte{5, 0, 0, 0}},
		{"complete frame then partial header", append(encodeFrame([]byte("ok")), 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := metrics.NewCollector("", "", "", "", "")
			_, err := run(NewDeframer(nil, WithCollector(c)), tt.input, 1)
			if err == nil {
				t.Fatal("expected truncated frame error")
			}
			var frameErr *FrameError
			if !errors.As(err, &frameErr) {
				t.Fatalf("expected *FrameError, got %T", err)
			}
			if frameErr.Kind != FrameErrorTruncated {
				t.Errorf("Kind = %v, want %v", frameErr.Kind, FrameErrorTruncated)
			}
			if !errors.Is(err, ErrTruncated) {
				t.Error("errors.Is(err, ErrTruncated) = false, want true")
			}
			if got := c.Snapshot().FramesTruncated; got != 1 {
				t.Errorf("FramesTruncated = %d, want 1", got)
			}
		})
	}
}

func TestDeframer_EmptyStream(t *testing.T) {
	got, err := run(NewDeframer(nil), nil, 1)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("output = %v, want empty", got)
	}
}

func TestDeframer_OversizedHeader(t *testing.T) {
	d := NewDeframer(nil, WithMaxPayload(1024))
	header := AppendHeader(nil, 1025)
	_, err := d.Process(header)

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %v", err)
	}
	if frameErr.Kind != FrameErrorTooLarge {
		t.Errorf("Kind = %v, want %v", frameErr.Kind, FrameErrorTooLarge)
	}
}

func TestDeframer_DefaultLimit(t *testing.T) {
	d := NewDeframer(nil)
	if d.MaxPayload() != DefaultMaxPayloadSize {
		t.Errorf("MaxPayload() = %d, want %d", d.MaxPayload(), DefaultMaxPayloadSize)
	}
	_, err := d.Process(AppendHeader(nil, DefaultMaxPayloadSize+1))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Process error = %v, want ErrTooLarge", err)
	}
}

func TestWithMaxPayload_FallbackFitsInt(t *testing.T) {
	for _, n := range []int{0, -1} {
		d := NewDeframer(nil, WithMaxPayload(n))
		limit := d.MaxPayload()
		if limit > uint64(math.MaxInt) {
			t.Errorf("WithMaxPayload(%d) limit %d exceeds math.MaxInt", n, limit)
		}
		if limit > MaxEncodablePayload {
			t.Errorf("WithMaxPayload(%d) limit %d exceeds MaxEncodablePayload", n, limit)
		}
		if int(limit) < 0 {
			t.Errorf("WithMaxPayload(%d) limit %d wraps when converted to int", n, limit)
		}
	}
}

func TestDeframer_HandlerErrorPassesThrough(t *testing.T) {
	boom := errors.New("bad payload")
	d := NewDeframer(stage.HandlerFunc(func([]byte) ([]byte, error) { return nil, boom }))
	_, err := d.Process(encodeFrame([]byte("x")))
	if !errors.Is(err, boom) {
		t.Fatalf("Process error = %v, want %v", err, boom)
	}
	if IsFatalFrameError(err) {
		t.Error("handler errors must not be classified as frame errors")
	}
}

func TestDeframer_PendingInvariant(t *testing.T) {
	d := NewDeframer(nil)
	frame := encodeFrame([]byte("payload"))
	for i, b := range frame[:len(frame)-1] {
		if _, err := d.Process([]byte{b}); err != nil {
			t.Fatalf("Process byte %d failed: %v", i, err)
		}
		if d.Pending() && d.Buffered() >= 7 {
			t.Fatalf("buffered %d bytes with expectation of 7", d.Buffered())
		}
		if !d.Pending() && d.Buffered() >= HeaderSize {
			t.Fatalf("buffered %d bytes without expectation", d.Buffered())
		}
	}
}

func TestRoundTrip_ArbitraryChunking(t *testing.T) {
	f := func(data []byte, sizeSeed, stepSeed uint8) bool {
		size := int(sizeSeed%32) + 1
		step := int(stepSeed%17) + 1

		enc, err := NewChunkedFramer(size, nil)
		if err != nil {
			return false
		}
		framed, err := run(enc, data, step)
		if err != nil {
			return false
		}
		plain, err := run(NewDeframer(nil), framed, step+1)
		if err != nil {
			return false
		}
		return bytes.Equal(plain, data)
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 300}); err != nil {
		t.Error(err)
	}
}

func TestReader_ReadsFrames(t *testing.T) {
	var stream []byte
	for _, p := range []string{"a", "", "ccc"} {
		stream = append(stream, encodeFrame([]byte(p))...)
	}

	r := NewReader(iotest.OneByteReader(bytes.NewReader(stream)))
	var infos []Info
	for {
		info, payload, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if len(payload) != info.Length {
			t.Errorf("payload length %d, info.Length %d", len(payload), info.Length)
		}
		infos = append(infos, info)
	}

	want := []Info{
		{Index: 0, Offset: 0, Length: 1},
		{Index: 1, Offset: 5, Length: 0},
		{Index: 2, Offset: 9, Length: 3},
	}
	if len(infos) != len(want) {
		t.Fatalf("got %d frames, want %d", len(infos), len(want))
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("frame %d = %+v, want %+v", i, infos[i], want[i])
		}
	}
}

func TestReader_Truncated(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"partial header", []byte{1, 0}},
		{"partial payload", append([]byte{5, 0, 0, 0}, "he"...)},
		{"header without payload", []byte{5, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.input)).ReadFrame()
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("ReadFrame error = %v, want ErrTruncated", err)
			}
		})
	}
}

func TestReader_SourceErrorNotFrameError(t *testing.T) {
	boom := errors.New("disk on fire")
	_, err := NewReader(iotest.ErrReader(boom)).ReadFrame()
	if !errors.Is(err, boom) {
		t.Fatalf("ReadFrame error = %v, want %v", err, boom)
	}
	if IsFatalFrameError(err) {
		t.Error("source errors must not be classified as frame errors")
	}
}

func TestWriter_ReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	payloads := [][]byte{[]byte("one"), {}, bytes.Repeat([]byte{0xff}, 300)}
	for _, p := range payloads {
		if err := w.WriteFrame(p); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	var got [][]byte
	err := Scan(iotest.HalfReader(&buf), func(_ Info, p []byte) error {
		got = append(got, p)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got) != len(payloads) {
		t.Fatalf("got %d frames, want %d", len(got), len(payloads))
	}
	for i := range payloads {
		if !bytes.Equal(got[i], payloads[i]) {
			t.Errorf("frame %d = %v, want %v", i, got[i], payloads[i])
		}
	}
}

func TestWriter_TooLarge(t *testing.T) {
	w := NewWriter(io.Discard, WithMaxPayload(2))
	if err := w.WriteFrame([]byte("abc")); !errors.Is(err, ErrTooLarge) {
		t.Errorf("WriteFrame error = %v, want ErrTooLarge", err)
	}
}

func TestScan_StopsOnCallbackError(t *testing.T) {
	stream := append(encodeFrame([]byte("a")), encodeFrame([]byte("b"))...)
	stop := errors.New("stop")
	var seen int
	err := Scan(bytes.NewReader(stream), func(Info, []byte) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Scan error = %v, want %v", err, stop)
	}
	if seen != 1 {
		t.Errorf("callback calls = %d, want 1", seen)
	}
}
