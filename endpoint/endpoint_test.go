package endpoint

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lodelib "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/conduit/lode"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in        string
		wantKind  Kind
		wantValue string
	}{
		{"-", KindStdio, ""},
		{"str:hello world", KindString, "hello world"},
		{"str:", KindString, ""},
		{"lode://runs/out.bin", KindLode, "runs/out.bin"},
		{"file:///tmp/in.bin", KindFile, "/tmp/in.bin"},
		{"./in.bin", KindFile, "./in.bin"},
	}
	for _, tt := range tests {
		loc, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tt.in, err)
			continue
		}
		if loc.Kind != tt.wantKind || loc.Value != tt.wantValue {
			t.Errorf("Parse(%q) = {%v %q}, want {%v %q}", tt.in, loc.Kind, loc.Value, tt.wantKind, tt.wantValue)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse(""); !errors.Is(err, ErrEmptyLocation) {
		t.Errorf("Parse(\"\") = %v, want ErrEmptyLocation", err)
	}
	if _, err := Parse("lode://../etc"); !errors.Is(err, lode.ErrInvalidKey) {
		t.Errorf("Parse(lode://../etc) = %v, want ErrInvalidKey", err)
	}
}

func TestLocationString(t *testing.T) {
	for _, s := range []string{"-", "str:abc", "lode://a/b.bin", "/tmp/x"} {
		loc, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", s, err)
		}
		if loc.String() != s {
			t.Errorf("String() = %q, want %q", loc.String(), s)
		}
	}
}

func TestStdio(t *testing.T) {
	var out bytes.Buffer
	opts := Options{Stdin: strings.NewReader("from stdin"), Stdout: &out}

	src, err := OpenSource(t.Context(), "-", opts)
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	dst, err := OpenSink(t.Context(), "-", opts)
	if err != nil {
		t.Fatalf("OpenSink failed: %v", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if out.String() != "from stdin" {
		t.Errorf("stdout = %q, want %q", out.String(), "from stdin")
	}
}

func TestStringSource(t *testing.T) {
	src, err := OpenSource(t.Context(), "str:abc", Options{})
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	got, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("source = %q, want %q", got, "abc")
	}

	if _, err := OpenSink(t.Context(), "str:abc", Options{}); !errors.Is(err, ErrNotSink) {
		t.Errorf("OpenSink(str:) = %v, want ErrNotSink", err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")

	dst, err := OpenSink(t.Context(), path, Options{})
	if err != nil {
		t.Fatalf("OpenSink failed: %v", err)
	}
	if _, err := dst.Write([]byte("file data")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	src, err := OpenSource(t.Context(), FilePrefix+path, Options{})
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	defer src.Close()
	got, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "file data" {
		t.Errorf("file = %q, want %q", got, "file data")
	}
}

func TestFileSourceMissing(t *testing.T) {
	_, err := OpenSource(t.Context(), filepath.Join(t.TempDir(), "missing"), Options{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("OpenSource(missing) = %v, want os.ErrNotExist", err)
	}
}

func TestLodeRoundTrip(t *testing.T) {
	store := lodelib.NewMemory()
	objs := lode.NewObjects(func() (lodelib.Store, error) { return store, nil }, nil)
	opts := Options{Objects: objs}

	dst, err := OpenSink(t.Context(), "lode://rt/out.bin", opts)
	if err != nil {
		t.Fatalf("OpenSink failed: %v", err)
	}
	if _, err := dst.Write([]byte("object data")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	src, err := OpenSource(t.Context(), "lode://rt/out.bin", opts)
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	defer src.Close()
	got, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "object data" {
		t.Errorf("object = %q, want %q", got, "object data")
	}
}

func TestLodeWithoutStore(t *testing.T) {
	if _, err := OpenSource(t.Context(), "lode://x", Options{}); !errors.Is(err, ErrNoStore) {
		t.Errorf("OpenSource = %v, want ErrNoStore", err)
	}
	if _, err := OpenSink(t.Context(), "lode://x", Options{}); !errors.Is(err, ErrNoStore) {
		t.Errorf("OpenSink = %v, want ErrNoStore", err)
	}
}

func TestAbort_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.bin")
	dst, err := OpenSink(t.Context(), path, Options{})
	if err != nil {
		t.Fatalf("OpenSink failed: %v", err)
	}
	if _, err := dst.Write([]byte("partial")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := Abort(dst, errors.New("stage failed")); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "partial" {
		t.Errorf("file = %q, want partial output kept", got)
	}
}
