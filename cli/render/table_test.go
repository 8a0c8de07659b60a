package render

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type testFrame struct {
	Index  int   `json:"index"`
	Offset int64 `json:"offset"`
	Length int   `json:"length"`
}

type testListing struct {
	Source   string      `json:"source"`
	Frames   []testFrame `json:"frames"`
	Count    int         `json:"frame_count"`
	Error    string      `json:"error,omitempty"`
	Internal string      `json:"-"`
}

func renderTableString(t *testing.T, data any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, false, &buf).Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return buf.String()
}

func TestTable_RecordWithNestedGrid(t *testing.T) {
	got := renderTableString(t, testListing{
		Source: "in.bin",
		Frames: []testFrame{{0, 0, 3}, {1, 7, 0}},
		Count:  2,
	})

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if !strings.HasPrefix(lines[0], "source:") || !strings.Contains(lines[0], "in.bin") {
		t.Errorf("first line = %q, want source row", lines[0])
	}
	if !strings.Contains(got, "frame_count:") {
		t.Errorf("missing frame_count row:\n%s", got)
	}
	if !strings.Contains(got, "\nframes:\n") {
		t.Errorf("nested grid should be titled:\n%s", got)
	}
	header := strings.Fields(lines[len(lines)-3])
	if strings.Join(header, " ") != "index offset length" {
		t.Errorf("grid header = %v", header)
	}
	if last := strings.Fields(lines[len(lines)-1]); strings.Join(last, " ") != "1 7 0" {
		t.Errorf("last grid row = %v", last)
	}
}

func TestTable_SkipsOmittedFields(t *testing.T) {
	got := renderTableString(t, testListing{Source: "x", Internal: "secret"})
	if strings.Contains(got, "error:") {
		t.Errorf("empty omitempty field rendered:\n%s", got)
	}
	if strings.Contains(got, "secret") {
		t.Errorf(`json:"-" field rendered:\n%s`, got)
	}
	// Empty frames stay inline.
	if !strings.Contains(got, "frames:") || !strings.Contains(got, "[]") {
		t.Errorf("empty slice should render inline:\n%s", got)
	}
}

func TestTable_SliceOfStructs(t *testing.T) {
	got := renderTableString(t, []*testFrame{{Index: 0, Length: 5}, nil, {Index: 2, Offset: 9, Length: 1}})
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header plus 3 rows:\n%s", len(lines), got)
	}
	if strings.TrimSpace(lines[2]) != "" {
		t.Errorf("nil element should render blank, got %q", lines[2])
	}
}

func TestTable_MapSortedByKey(t *testing.T) {
	got := renderTableString(t, map[string]int{"zeta": 1, "alpha": 2, "mid": 3})
	a, m, z := strings.Index(got, "alpha"), strings.Index(got, "mid"), strings.Index(got, "zeta")
	if a < 0 || a > m || m > z {
		t.Errorf("keys not sorted:\n%s", got)
	}
}

func TestTable_EmptySlice(t *testing.T) {
	got := renderTableString(t, []string{})
	if !strings.Contains(got, "(no results)") {
		t.Errorf("empty slice should show '(no results)', got: %s", got)
	}
}

func TestCell_Formats(t *testing.T) {
	type row struct {
		Payload  []byte        `json:"payload"`
		Stages   []string      `json:"stages"`
		Elapsed  time.Duration `json:"elapsed"`
		Started  time.Time     `json:"started"`
		Optional *int          `json:"optional"`
	}
	got := renderTableString(t, row{
		Payload: []byte("abcd"),
		Stages:  []string{"upper", "encrypt"},
		Elapsed: 1500 * time.Millisecond,
		Started: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	})

	for _, want := range []string{"4 bytes", "upper, encrypt", "1.5s", "2026-10-18T12:00:00Z"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
