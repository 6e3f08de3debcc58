package rgpd

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrCipherIntegrity is returned when a ciphertext cannot be authenticated:
// corrupt data, tampering, or the wrong key. Callers must treat it as fatal
// for the enclosing operation. Decryption never falls back to returning the
// raw ciphertext; doing so would mask tampering and leak ciphertext to users.
var ErrCipherIntegrity = errors.New("field decryption failed integrity check")

// FieldCipher encrypts and decrypts individual sensitive field values.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Codec provides AES-256-GCM field-level encryption for patient identity data.
// Empty values pass through unchanged in both directions: an absent field is
// stored absent, not as an encryption of the empty string.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec creates a Codec with the given 32-byte AES-256 key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("field codec: key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("field codec: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("field codec: create GCM: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encrypt encrypts the plaintext and returns a base64-encoded ciphertext with
// the nonce prepended. The empty string is returned as-is.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	encrypted, err := c.encryptBytes([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// Decrypt decodes the base64 ciphertext, extracts the prepended nonce, and
// decrypts. The empty string is returned as-is. Every failure mode, including
// malformed encoding, yields ErrCipherIntegrity.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("field decrypt: base64 decode: %w", ErrCipherIntegrity)
	}

	plaintext, err := c.decryptBytes(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (c *Codec) encryptBytes(data []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("field encrypt: generate nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, so the result is nonce + ciphertext.
	return c.aead.Seal(nonce, nonce, data, nil), nil
}

func (c *Codec) decryptBytes(data []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("field decrypt: ciphertext too short: %w", ErrCipherIntegrity)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("field decrypt: %w", ErrCipherIntegrity)
	}
	return plaintext, nil
}
