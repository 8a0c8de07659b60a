package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/quick"

	"github.com/pithecene-io/conduit/crypt"
	"github.com/pithecene-io/conduit/frame"
	"github.com/pithecene-io/conduit/pipeline"
	"github.com/pithecene-io/conduit/stage"
)

func testEnv(t *testing.T) Env {
	t.Helper()
	c, err := crypt.NewAESGCM(bytes.Repeat([]byte{1}, crypt.KeySize))
	if err != nil {
		t.Fatalf("NewAESGCM failed: %v", err)
	}
	return Env{Cipher: c}
}

// runSpecs builds specs from the default registry and runs input through them.
func runSpecs(t *testing.T, env Env, input []byte, readSize int, specs ...string) ([]byte, error) {
	t.Helper()
	stages := make([]stage.Stage, 0, len(specs))
	for _, s := range specs {
		st, err := Build(env, s)
		if err != nil {
			t.Fatalf("Build(%q) failed: %v", s, err)
		}
		stages = append(stages, st)
	}
	var out bytes.Buffer
	_, err := pipeline.Run(t.Context(), bytes.NewReader(input), &out, stages, pipeline.WithReadSize(readSize))
	return out.Bytes(), err
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in   string
		want Spec
	}{
		{"upper", Spec{Name: "upper"}},
		{" encrypt:chunk=4096 ", Spec{Name: "encrypt", Args: map[string]string{"chunk": "4096"}}},
		{"replace:old=foo,new=", Spec{Name: "replace", Args: map[string]string{"old": "foo", "new": ""}}},
	}
	for _, tt := range tests {
		got, err := ParseSpec(tt.in)
		if err != nil {
			t.Errorf("ParseSpec(%q) failed: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want.String() {
			t.Errorf("ParseSpec(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", ":chunk=1", "encrypt:chunk", "encrypt:=1"} {
		if _, err := ParseSpec(bad); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("ParseSpec(%q) error = %v, want ErrInvalidSpec", bad, err)
		}
	}
}

func TestParseChain(t *testing.T) {
	specs, err := ParseChain("upper | compress:level=best|encrypt:chunk=4096")
	if err != nil {
		t.Fatalf("ParseChain failed: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("len = %d, want 3", len(specs))
	}
	if got := FormatChain(specs); got != "upper|compress:level=best|encrypt:chunk=4096" {
		t.Errorf("FormatChain = %q", got)
	}

	for _, bad := range []string{"", "  ", "upper||lower"} {
		if _, err := ParseChain(bad); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("ParseChain(%q) error = %v, want ErrInvalidSpec", bad, err)
		}
	}
}

func TestRegistry_BuildErrors(t *testing.T) {
	env := testEnv(t)
	tests := []struct {
		spec string
		want error
	}{
		{"nope", ErrUnknownStage},
		{"upper:x=1", ErrInvalidSpec},
		{"encrypt:chunk=0", ErrInvalidSpec},
		{"compress:level=ludicrous", ErrInvalidSpec},
		{"replace:old=", ErrEmptyPattern},
	}
	for _, tt := range tests {
		if _, err := Build(env, tt.spec); !errors.Is(err, tt.want) {
			t.Errorf("Build(%q) error = %v, want %v", tt.spec, err, tt.want)
		}
	}

	if _, err := Build(Env{}, "encrypt"); !errors.Is(err, ErrMissingCipher) {
		t.Errorf("Build(encrypt) without cipher error = %v, want ErrMissingCipher", err)
	}
}

func TestRegistry_NamesStages(t *testing.T) {
	s, err := Build(testEnv(t), "encrypt:chunk=16")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := stage.NameOf(s); got != "encrypt:chunk=16" {
		t.Errorf("NameOf = %q, want %q", got, "encrypt:chunk=16")
	}
}

func TestCatalogue_InversesAreSymmetric(t *testing.T) {
	entries := Catalogue()
	if len(entries) == 0 {
		t.Fatal("empty catalogue")
	}
	for _, e := range entries {
		if e.Factory == nil {
			t.Errorf("%s has no factory", e.Name)
		}
		inv, ok := Inverse(e.Name)
		if !ok {
			continue
		}
		back, ok := Inverse(inv)
		if !ok || back != e.Name {
			t.Errorf("Inverse(Inverse(%s)) = %q, want %q", e.Name, back, e.Name)
		}
	}
}

func TestText(t *testing.T) {
	in := []byte("Hello, World! \xc3\xa9")
	if got := string(Upper(in)); got != "HELLO, WORLD! \xc3\xa9" {
		t.Errorf("Upper = %q", got)
	}
	if got := string(Lower(in)); got != "hello, world! \xc3\xa9" {
		t.Errorf("Lower = %q", got)
	}
	if got := string(Rot13([]byte("Hello"))); got != "Uryyb" {
		t.Errorf("Rot13 = %q, want %q", got, "Uryyb")
	}
	if got := string(Rot13(Rot13(in))); got != string(in) {
		t.Errorf("Rot13(Rot13(x)) = %q, want %q", got, in)
	}
}

func TestReplacer_AcrossChunkBoundaries(t *testing.T) {
	input := []byte("foo bar fofoo ffoo foo")
	want := strings.ReplaceAll(string(input), "foo", "X")

	for readSize := 1; readSize <= len(input); readSize++ {
		got, err := runSpecs(t, Env{}, input, readSize, "replace:old=foo,new=X")
		if err != nil {
			t.Fatalf("readSize=%d: run failed: %v", readSize, err)
		}
		if string(got) != want {
			t.Errorf("readSize=%d: output = %q, want %q", readSize, got, want)
		}
	}
}

func TestReplacer_HoldsPartialMatch(t *testing.T) {
	r, err := NewReplacer([]byte("abc"), []byte("-"))
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Process([]byte("ab"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !res.NeedsMoreInput() {
		t.Errorf("Process(ab) = %v, want need_more_input", res)
	}
	res, err = r.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if string(res.Bytes()) != "ab" {
		t.Errorf("Flush = %q, want %q", res.Bytes(), "ab")
	}
}

func TestReplacer_EmptyReplacementProducesEmpty(t *testing.T) {
	r, err := NewReplacer([]byte("foo"), nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Process([]byte("foo"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.NeedsMoreInput() {
		t.Fatal("a fully replaced chunk should produce empty output, not need_more_input")
	}
	if len(res.Bytes()) != 0 {
		t.Errorf("Process(foo) = %q, want empty", res.Bytes())
	}

	got, err := runSpecs(t, Env{}, []byte("foofoo"), 3, "replace:old=foo,new=")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("output = %q, want empty", got)
	}
}

func TestCodecs_RoundTripAnyChunking(t *testing.T) {
	env := testEnv(t)
	pairs := [][2]string{
		{"hex", "unhex"},
		{"base64-encode", "base64-decode"},
		{"encrypt:chunk=7", "decrypt"},
		{"compress:chunk=64", "decompress"},
		{"rot13", "rot13"},
	}

	for _, pair := range pairs {
		t.Run(pair[0], func(t *testing.T) {
			f := func(data []byte, encStep, decStep uint8) bool {
				encoded, err := runSpecs(t, env, data, int(encStep%13)+1, pair[0])
				if err != nil {
					return false
				}
				decoded, err := runSpecs(t, env, encoded, int(decStep%13)+1, pair[1])
				if err != nil {
					return false
				}
				return bytes.Equal(decoded, data)
			}
			if err := quick.Check(f, &quick.Config{MaxCount: 100}); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestChain_EncryptThenHexRoundTrip(t *testing.T) {
	env := testEnv(t)
	input := bytes.Repeat([]byte("The quick brown fox. "), 1000)

	encoded, err := runSpecs(t, env, input, 8192, "upper", "compress", "encrypt", "base64-encode")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := runSpecs(t, env, encoded, 3, "base64-decode", "decrypt", "decompress", "lower")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(decoded, bytes.ToLower(input)) {
		t.Errorf("round trip mismatch: %d bytes, want %d", len(decoded), len(input))
	}
}

func TestEncrypt_FramesEachBlock(t *testing.T) {
	env := testEnv(t)
	out, err := runSpecs(t, env, []byte("0123456789"), 8192, "encrypt:chunk=4")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	var lengths []int
	err = frame.Scan(bytes.NewReader(out), func(info frame.Info, _ []byte) error {
		lengths = append(lengths, info.Length)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	overhead := crypt.Overhead(env.Cipher)
	want := []int{4 + overhead, 4 + overhead, 2 + overhead}
	if fmt.Sprint(lengths) != fmt.Sprint(want) {
		t.Errorf("frame lengths = %v, want %v", lengths, want)
	}
}

func TestEncrypt_FrameLimitAppliesToDecodeOnly(t *testing.T) {
	env := testEnv(t)
	overhead := crypt.Overhead(env.Cipher)
	env.MaxFrameSize = 64 + overhead

	input := bytes.Repeat([]byte("x"), 200)
	enc, err := runSpecs(t, env, input, 8192, "encrypt:chunk=64")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	dec, err := runSpecs(t, env, enc, 7, "decrypt")
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(dec, input) {
		t.Errorf("round trip mismatch: %d bytes, want %d", len(dec), len(input))
	}
}

func TestBuild_ChunkExceedsFrameLimit(t *testing.T) {
	env := testEnv(t)
	env.MaxFrameSize = 64

	tests := []string{
		"encrypt:chunk=64",
		"encrypt:chunk=40",
		"compress:chunk=64",
	}
	for _, spec := range tests {
		if _, err := Build(env, spec); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("Build(%q) error = %v, want ErrInvalidSpec", spec, err)
		}
	}

	// Block plus nonce and tag fits exactly.
	fit := 64 - crypt.Overhead(env.Cipher)
	if _, err := Build(env, fmt.Sprintf("encrypt:chunk=%d", fit)); err != nil {
		t.Errorf("Build(encrypt:chunk=%d) failed: %v", fit, err)
	}
	// Default chunk size against the default frame limit.
	if _, err := Build(testEnv(t), "compress"); err != nil {
		t.Errorf("Build(compress) failed: %v", err)
	}
}

func TestDecrypt_TruncatedStream(t *testing.T) {
	env := testEnv(t)
	enc, err := runSpecs(t, env, []byte("secret"), 8192, "encrypt")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	_, err = runSpecs(t, env, enc[:len(enc)-1], 8192, "decrypt")
	if !errors.Is(err, frame.ErrTruncated) {
		t.Errorf("decrypt error = %v, want ErrTruncated", err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	env := testEnv(t)
	enc, err := runSpecs(t, env, []byte("secret"), 8192, "encrypt")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	other, _ := crypt.NewAESGCM(bytes.Repeat([]byte{2}, crypt.KeySize))
	_, err = runSpecs(t, Env{Cipher: other}, enc, 8192, "decrypt")
	if !errors.Is(err, crypt.ErrDecryptionFailed) {
		t.Errorf("decrypt error = %v, want ErrDecryptionFailed", err)
	}
	if frame.IsFatalFrameError(err) {
		t.Error("cipher failures must not be classified as frame errors")
	}
}

func TestDecoders_MalformedInput(t *testing.T) {
	tests := []struct {
		spec  string
		input string
	}{
		{"unhex", "zz"},
		{"unhex", "abc"},
		{"base64-decode", "@@@@"},
		{"base64-decode", "QUJ"},
	}
	for _, tt := range tests {
		_, err := runSpecs(t, Env{}, []byte(tt.input), 8192, tt.spec)
		if !errors.Is(err, ErrMalformedInput) {
			t.Errorf("%s(%q) error = %v, want ErrMalformedInput", tt.spec, tt.input, err)
		}
	}
}

func TestDecoders_IgnoreLineBreaks(t *testing.T) {
	got, err := runSpecs(t, Env{}, []byte("68\r\n65\n6c6c\n6f"), 2, "unhex")
	if err != nil {
		t.Fatalf("unhex failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("unhex = %q, want %q", got, "hello")
	}

	got, err = runSpecs(t, Env{}, []byte("aGVs\nbG8="), 3, "base64-decode")
	if err != nil {
		t.Fatalf("base64-decode failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("base64-decode = %q, want %q", got, "hello")
	}
}

func TestBase64Encoder_MatchesStdlib(t *testing.T) {
	input := []byte("any carnal pleasure.")
	got, err := runSpecs(t, Env{}, input, 1, "base64-encode")
	if err != nil {
		t.Fatalf("base64-encode failed: %v", err)
	}
	if string(got) != "YW55IGNhcm5hbCBwbGVhc3VyZS4=" {
		t.Errorf("base64-encode = %q", got)
	}
}
