package crypt

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/argon2"
)

// KeySize is the key length produced by GenerateKey and DeriveKey (256 bits).
const KeySize = 32

// ErrInvalidKey is returned when key material cannot be decoded.
var ErrInvalidKey = errors.New("invalid key encoding")

// DefaultSalt is the salt for passphrase-derived keys when none is configured.
// The stream format carries no salt, so both sides must agree on it out of
// band; configure a per-deployment salt where passphrases are shared.
var DefaultSalt = []byte("conduit/stream-key/v1")

// KDFParams configures Argon2id key derivation.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams returns recommended Argon2id parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:    1,
		Memory:  64 * 1024, // 64 MiB
		Threads: 4,
	}
}

// DeriveKey stretches a passphrase into a KeySize key with Argon2id.
// A nil salt selects DefaultSalt.
func DeriveKey(passphrase string, salt []byte, params KDFParams) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty passphrase", ErrInvalidKey)
	}
	if salt == nil {
		salt = DefaultSalt
	}
	return argon2.IDKey([]byte(passphrase), salt, params.Time, params.Memory, params.Threads, KeySize), nil
}

// GenerateKey returns KeySize random bytes.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// EncodeKey returns the canonical text form of a key ("hex:<digits>").
func EncodeKey(key []byte) string {
	return "hex:" + hex.EncodeToString(key)
}

// ParseKey decodes key text. Accepted forms are "hex:<digits>",
// "base64:<std encoding>" and bare hex.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	var (
		key []byte
		err error
	)
	switch {
	case strings.HasPrefix(s, "hex:"):
		key, err = hex.DecodeString(strings.TrimPrefix(s, "hex:"))
	case strings.HasPrefix(s, "base64:"):
		key, err = base64.StdEncoding.DecodeString(strings.TrimPrefix(s, "base64:"))
	default:
		key, err = hex.DecodeString(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return key, nil
}

// LoadKeyFile reads and parses a key file written by EncodeKey.
func LoadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return ParseKey(string(data))
}
