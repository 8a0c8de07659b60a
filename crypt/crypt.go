// Package crypt provides the authenticated ciphers used by the encrypt and
// decrypt stages.
//
// Every Encrypt call seals one chunk under a fresh random nonce and returns
// nonce ++ ciphertext ++ tag. Decrypt reverses it. Chunks are independent,
// so a framed stream of them can be decrypted frame by frame.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encryption errors.
var (
	ErrInvalidKeySize   = errors.New("invalid key size")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrUnknownAlgorithm = errors.New("unknown cipher algorithm")
)

// Cipher encrypts and decrypts independent chunks.
// Decrypt(Encrypt(x)) == x for every x, including the empty chunk.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Algorithm names a cipher construction.
type Algorithm string

// Supported algorithms.
const (
	// AESGCM is AES-256-GCM with a 12-byte random nonce.
	AESGCM Algorithm = "aes-gcm"
	// XChaCha20Poly1305 uses a 24-byte random nonce.
	XChaCha20Poly1305 Algorithm = "xchacha20poly1305"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = AESGCM

// ParseAlgorithm resolves an algorithm name. Empty selects DefaultAlgorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultAlgorithm, nil
	case AESGCM, "aes", "aes-256-gcm":
		return AESGCM, nil
	case XChaCha20Poly1305, "xchacha":
		return XChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// New returns a Cipher for algo keyed with key.
func New(algo Algorithm, key []byte) (Cipher, error) {
	switch algo {
	case AESGCM, "":
		return NewAESGCM(key)
	case XChaCha20Poly1305:
		return NewXChaCha20Poly1305(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
}

// aeadCipher seals chunks with a random nonce prefix.
type aeadCipher struct {
	aead cipher.AEAD
}

// NewAESGCM returns an AES-GCM cipher.
// Key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
func NewAESGCM(key []byte) (Cipher, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 16, 24, or 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &aeadCipher{aead: gcm}, nil
}

// NewXChaCha20Poly1305 returns an XChaCha20-Poly1305 cipher. Key must be 32 bytes.
func NewXChaCha20Poly1305(key []byte) (Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKeySize, chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &aeadCipher{aead: aead}, nil
}

// Overhead returns the bytes Encrypt adds to each chunk.
func Overhead(c Cipher) int {
	if a, ok := c.(*aeadCipher); ok {
		return a.aead.NonceSize() + a.aead.Overhead()
	}
	return 0
}

func (c *aeadCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, err
	}

	// Prepend nonce to ciphertext
	return c.aead.Seal(out, out[:nonceSize], plaintext, nil), nil
}

func (c *aeadCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextShort, len(ciphertext))
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}
