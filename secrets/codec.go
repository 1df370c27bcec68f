// Package secrets holds the encrypt/decrypt boundary applied to connection secrets at rest.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24

	secretboxPrefix = "sb1:"
)

// ErrMalformedCiphertext is returned when a stored value cannot be opened
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Codec encrypts values before they are stored and decrypts them after they are read
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SecretboxCodec seals values with NaCl secretbox under a single 32 byte key
type SecretboxCodec struct {
	key [keySize]byte
}

// NewSecretboxCodec builds a codec from a base64 (std or URL) encoded 32 byte key
func NewSecretboxCodec(encodedKey string) (*SecretboxCodec, error) {
	raw, err := decodeKey(strings.TrimSpace(encodedKey))
	if err != nil {
		return nil, fmt.Errorf("failed to decode secrets key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("secrets key must be %d bytes, got %d", keySize, len(raw))
	}

	codec := &SecretboxCodec{}
	copy(codec.key[:], raw)
	return codec, nil
}

func (c *SecretboxCodec) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return secretboxPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *SecretboxCodec) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, secretboxPrefix) {
		return "", ErrMalformedCiphertext
	}

	sealed, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, secretboxPrefix))
	if err != nil || len(sealed) < nonceSize+secretbox.Overhead {
		return "", ErrMalformedCiphertext
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	opened, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", fmt.Errorf("failed to open secret: %w", ErrMalformedCiphertext)
	}
	return string(opened), nil
}

// PlaintextCodec stores values as-is. Only meant for local development without SECRETS_KEY.
type PlaintextCodec struct{}

func (PlaintextCodec) Encrypt(plaintext string) (string, error) { return plaintext, nil }

func (PlaintextCodec) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// GenerateKey returns a new random key encoded for the SECRETS_KEY variable
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate secrets key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func decodeKey(encoded string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(encoded); err == nil {
			return raw, nil
		}
	}
	return nil, errors.New("key is not valid base64")
}

// NewCodec returns a secretbox codec for a configured key and the plaintext codec when the key is empty
func NewCodec(encodedKey string) (Codec, error) {
	if strings.TrimSpace(encodedKey) == "" {
		return PlaintextCodec{}, nil
	}
	return NewSecretboxCodec(encodedKey)
}
