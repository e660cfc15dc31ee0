// Package secure seals provider access tokens at rest with NaCl secretbox.
package secure

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
)

// ErrCorrupt is returned when a sealed value cannot be opened.
var ErrCorrupt = errors.New("sealed token is corrupt or was sealed with another key")

// TokenBox seals and opens tokens. The zero-key box is a passthrough, so
// deployments without PLAID_ENCRYPTION_KEY store tokens as given.
type TokenBox struct {
	key *[keySize]byte
}

// NewTokenBox builds a box from a base64 (standard or URL alphabet) encoded
// 32-byte key. An empty key yields a passthrough box.
func NewTokenBox(encodedKey string) (*TokenBox, error) {
	encodedKey = strings.TrimSpace(encodedKey)
	if encodedKey == "" {
		return &TokenBox{}, nil
	}

	raw, err := decodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(raw))
	}

	var key [keySize]byte
	copy(key[:], raw)
	return &TokenBox{key: &key}, nil
}

// Enabled reports whether tokens are actually encrypted.
func (b *TokenBox) Enabled() bool {
	return b.key != nil
}

// Seal encrypts plaintext under a fresh random nonce. Output is
// base64url(nonce || ciphertext).
func (b *TokenBox) Seal(plaintext string) (string, error) {
	if b.key == nil {
		return plaintext, nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, b.key)
	return base64.URLEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (b *TokenBox) Open(sealed string) (string, error) {
	if b.key == nil {
		return sealed, nil
	}

	raw, err := base64.URLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCorrupt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, b.key)
	if !ok {
		return "", ErrCorrupt
	}
	return string(plain), nil
}

func decodeKey(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		if raw, err := enc.DecodeString(s); err == nil {
			return raw, nil
		}
	}
	return nil, errors.New("key is not valid base64")
}
