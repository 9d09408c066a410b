package codec

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size in bytes of a decoded encryption key.
const KeySize = chacha20poly1305.KeySize

// GenerateKey produces a new random encryption key
// in its textual form: URL-safe base64 of KeySize random bytes.
// Callers must persist it; blobs written with a key can only be read with the same key.
func GenerateKey() ([]byte, error) {
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		return nil, errors.Wrap(err, "reading random bytes")
	}
	out := make([]byte, base64.URLEncoding.EncodedLen(KeySize))
	base64.URLEncoding.Encode(out, raw)
	return out, nil
}

// ParseKey decodes a textual key as produced by GenerateKey.
// Surrounding whitespace is ignored.
func ParseKey(text []byte) ([]byte, error) {
	text = bytes.TrimSpace(text)
	raw := make([]byte, base64.URLEncoding.DecodedLen(len(text)))
	n, err := base64.URLEncoding.Decode(raw, text)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidKey, "decoding base64: %s", err)
	}
	if n != KeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "got %d bytes, want %d", n, KeySize)
	}
	return raw[:n], nil
}

// Cipher encrypts and authenticates with XChaCha20-Poly1305.
// Sealed output is a random nonce followed by the ciphertext and tag.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher produces a Cipher from a textual key.
func NewCipher(key []byte) (*Cipher, error) {
	raw, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, errors.Wrap(err, "creating aead")
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Name() string { return "xchacha20poly1305" }

// Seal encrypts plaintext under a fresh random nonce.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	out := make([]byte, ns, ns+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, errors.Wrap(err, "generating nonce")
	}
	return c.aead.Seal(out, out[:ns], plaintext, nil), nil
}

// Open reverses Seal.
// It returns ErrAuth if the input was not sealed under this key
// or was modified afterwards.
func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < ns+c.aead.Overhead() {
		return nil, errors.Wrapf(ErrAuth, "input too short (%d bytes)", len(sealed))
	}
	out, err := c.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, ErrAuth
	}
	return out, nil
}
