// Package config loads conduit.yaml. Every value is a default that the
// matching command-line flag overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}`)

// ErrRequiredEnv is returned for a ${VAR:?message} whose variable is unset
// or empty.
var ErrRequiredEnv = errors.New("required environment variable not set")

// ExpandEnv substitutes environment references in a config document:
//
//	${VAR}           value, or empty when unset
//	${VAR:-default}  value, or default when unset or empty
//	${VAR:?message}  value, or an error naming VAR and message
//
// Key material usually arrives this way (passphrase: ${CONDUIT_PASS:?}),
// so a missing required variable fails the load instead of producing an
// empty secret. Every missing required variable is reported.
func ExpandEnv(input string) (string, error) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, op, arg := groups[1], groups[2], groups[3]

		if value := os.Getenv(name); value != "" {
			return value
		}
		switch op {
		case "-":
			return arg
		case "?":
			if arg == "" {
				missing = append(missing, name)
			} else {
				missing = append(missing, fmt.Sprintf("%s (%s)", name, arg))
			}
		}
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrRequiredEnv, strings.Join(missing, ", "))
	}
	return out, nil
}
