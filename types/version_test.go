package types //nolint:revive // types is a valid package name

import (
	"strconv"
	"strings"
	"testing"
)

// parseSemver splits "MAJOR.MINOR.PATCH[-pre]" into its numeric parts.
func parseSemver(t *testing.T, v string) [3]int {
	t.Helper()
	core, _, _ := strings.Cut(v, "-")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		t.Fatalf("%q: want MAJOR.MINOR.PATCH", v)
	}
	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			t.Fatalf("%q: part %q is not a non-negative integer", v, p)
		}
		out[i] = n
	}
	return out
}

func TestVersion_IsSemver(t *testing.T) {
	got := parseSemver(t, Version)
	if got == [3]int{} {
		t.Errorf("Version %q must not be 0.0.0", Version)
	}
}

func TestReportVersion_Lockstep(t *testing.T) {
	if ReportVersion != Version {
		t.Errorf("ReportVersion = %q, want %q", ReportVersion, Version)
	}
}
