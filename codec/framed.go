package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/pithecene-io/conduit/crypt"
	"github.com/pithecene-io/conduit/frame"
	"github.com/pithecene-io/conduit/stage"
)

// encodeOptions bounds encoded frames only by what a header can carry.
// MaxFrameSize guards decoding; fitsFrame checks encoder settings against it
// when the stage is built.
func (e Env) encodeOptions() []frame.Option {
	return []frame.Option{frame.WithCollector(e.Collector), frame.WithMaxPayload(0)}
}

// fitsFrame rejects a block size whose encoded frames a reader using the same
// frame limit would refuse. overhead is the per-block growth of the encoding.
func (e Env) fitsFrame(stageName string, size, overhead int) error {
	limit := e.MaxFrameSize
	if limit <= 0 {
		limit = frame.DefaultMaxPayloadSize
	}
	if size <= 0 {
		size = e.chunkSize()
	}
	if size+overhead > limit {
		return fmt.Errorf("%w: %s chunk %d plus %d bytes overhead exceeds max frame size %d",
			ErrInvalidSpec, stageName, size, overhead, limit)
	}
	return nil
}

func (e Env) frameOptions() []frame.Option {
	opts := []frame.Option{frame.WithCollector(e.Collector)}
	if e.MaxFrameSize > 0 {
		opts = append(opts, frame.WithMaxPayload(e.MaxFrameSize))
	}
	return opts
}

// NewEncrypter returns a stage that splits input into size-byte blocks,
// encrypts each block and emits it as one frame. The final short block is
// encrypted and framed at Flush, even when empty.
func NewEncrypter(env Env, size int) (stage.Stage, error) {
	if env.Cipher == nil {
		return nil, ErrMissingCipher
	}
	if err := env.fitsFrame("encrypt", size, crypt.Overhead(env.Cipher)); err != nil {
		return nil, err
	}
	s, err := frame.NewChunkedFramer(size, stage.HandlerFunc(env.Cipher.Encrypt), env.encodeOptions()...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewDecrypter returns a stage that decrypts each frame of an encrypted stream.
func NewDecrypter(env Env) (stage.Stage, error) {
	if env.Cipher == nil {
		return nil, ErrMissingCipher
	}
	return frame.NewDeframer(stage.HandlerFunc(env.Cipher.Decrypt), env.frameOptions()...), nil
}

// encoders holds one shared zstd encoder per level. EncodeAll is safe for
// concurrent use.
var encoders sync.Map // zstd.EncoderLevel -> *zstd.Encoder

func encoderFor(level zstd.EncoderLevel) (*zstd.Encoder, error) {
	if enc, ok := encoders.Load(level); ok {
		return enc.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(level),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	actual, loaded := encoders.LoadOrStore(level, enc)
	if loaded {
		_ = enc.Close()
	}
	return actual.(*zstd.Encoder), nil
}

// parseLevel accepts zstd level names: fastest, default, better, best.
func parseLevel(s string) (zstd.EncoderLevel, error) {
	if s == "" {
		return zstd.SpeedDefault, nil
	}
	ok, level := zstd.EncoderLevelFromString(s)
	if !ok {
		return 0, fmt.Errorf("%w: unknown compression level %q", ErrInvalidSpec, s)
	}
	return level, nil
}

// NewCompressor returns a stage that zstd-compresses size-byte blocks, one
// frame per block.
func NewCompressor(env Env, size int, level string) (stage.Stage, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	// Blocks are decompressed under the same limit, and incompressible
	// input grows by the zstd frame overhead.
	if err := env.fitsFrame("compress", size, zstdOverhead(size)); err != nil {
		return nil, err
	}
	enc, err := encoderFor(lvl)
	if err != nil {
		return nil, err
	}
	compress := stage.Pure(func(block []byte) []byte {
		return enc.EncodeAll(block, nil)
	})
	s, err := frame.NewChunkedFramer(size, compress, env.encodeOptions()...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// zstdOverhead bounds how much zstd can grow an n-byte block: the
// ZSTD_COMPRESSBOUND margin plus frame header and checksum.
func zstdOverhead(n int) int {
	margin := n >> 8
	if n < 128<<10 {
		margin += ((128 << 10) - n) >> 11
	}
	return margin + 32
}

// zstdDecoder decompresses one frame payload per call and releases the
// decoder at end of input.
type zstdDecoder struct {
	dec *zstd.Decoder
}

func (z *zstdDecoder) Handle(payload []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w: %w", ErrMalformedInput, err)
	}
	return out, nil
}

func (z *zstdDecoder) FlushHandler() ([]byte, error) {
	z.dec.Close()
	return nil, nil
}

// NewDecompressor returns a stage that decompresses each frame. Decoded
// blocks are bounded by the same limit as frame payloads.
func NewDecompressor(env Env) (stage.Stage, error) {
	limit := uint64(frame.DefaultMaxPayloadSize)
	if env.MaxFrameSize > 0 {
		limit = uint64(env.MaxFrameSize)
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(limit),
	)
	if err != nil {
		return nil, err
	}
	return frame.NewDeframer(&zstdDecoder{dec: dec}, env.frameOptions()...), nil
}
