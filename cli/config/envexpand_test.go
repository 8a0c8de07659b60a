package config

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CONDUIT_TEST_SET", "hello")
	t.Setenv("CONDUIT_TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "value: ${CONDUIT_TEST_SET}", "value: hello"},
		{"unset", "value: ${CONDUIT_TEST_UNSET}", "value: "},
		{"default when unset", "value: ${CONDUIT_TEST_UNSET:-fallback}", "value: fallback"},
		{"default ignored when set", "value: ${CONDUIT_TEST_SET:-fallback}", "value: hello"},
		{"default when empty", "value: ${CONDUIT_TEST_EMPTY:-fallback}", "value: fallback"},
		{"empty default", "value: ${CONDUIT_TEST_UNSET:-}", "value: "},
		{"required and set", "key: ${CONDUIT_TEST_SET:?need a key}", "key: hello"},
		{"multiple", "${CONDUIT_TEST_SET}:${CONDUIT_TEST_UNSET:-x}", "hello:x"},
		{"no vars", "no variables here", "no variables here"},
		{"bare dollar untouched", "cost: $5 and $HOME", "cost: $5 and $HOME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnv(tt.input)
			if err != nil {
				t.Fatalf("ExpandEnv(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandEnv_RequiredMissing(t *testing.T) {
	t.Setenv("CONDUIT_TEST_EMPTY", "")

	_, err := ExpandEnv("passphrase: ${CONDUIT_TEST_UNSET:?}\nkey: ${CONDUIT_TEST_EMPTY:?set by the vault agent}")
	if !errors.Is(err, ErrRequiredEnv) {
		t.Fatalf("err = %v, want ErrRequiredEnv", err)
	}
	for _, want := range []string{"CONDUIT_TEST_UNSET", "CONDUIT_TEST_EMPTY (set by the vault agent)"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestExpandEnv_NestedInYAML(t *testing.T) {
	t.Setenv("HOOK_TOKEN", "secret")
	t.Setenv("HOOK_HOST", "hooks.example.com")

	input := `adapter:
  url: https://${HOOK_HOST}/conduit
  headers:
    Authorization: Bearer ${HOOK_TOKEN}`

	got, err := ExpandEnv(input)
	if err != nil {
		t.Fatalf("ExpandEnv: %v", err)
	}
	want := `adapter:
  url: https://hooks.example.com/conduit
  headers:
    Authorization: Bearer secret`

	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
