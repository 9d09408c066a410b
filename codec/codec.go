// Package codec implements the reversible transform
// applied to blob payloads on their way into and out of a store.
//
// The transform compresses and then encrypts;
// decoding decrypts and then decompresses.
// Both stages are optional.
package codec

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrDecode is matched (via errors.Is) by every error from Codec.Decode.
	ErrDecode = errors.New("decode failed")

	// ErrAuth means decryption failed authentication:
	// the data was tampered with or the key is wrong.
	ErrAuth = errors.New("message authentication failed")

	// ErrUnknownCompression means no compressor is registered under the requested name.
	ErrUnknownCompression = errors.New("unknown compression")

	// ErrInvalidKey means an encryption key is not in the format GenerateKey produces.
	ErrInvalidKey = errors.New("invalid encryption key")
)

// DecodeError is the error type returned by Codec.Decode.
type DecodeError struct {
	Stage string // "decrypt" or "uncompress"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Config selects a compressor by name (see Names) and an optional textual encryption key.
type Config struct {
	Compression string
	Key         []byte
}

// Codec is an immutable compress+encrypt pipeline.
// It is safe for concurrent use.
type Codec struct {
	c Compressor
	x *Cipher // nil means no encryption
}

// New produces a Codec from conf.
// Configuration errors wrap ErrUnknownCompression or ErrInvalidKey.
func New(conf Config) (*Codec, error) {
	c, err := Lookup(conf.Compression)
	if err != nil {
		return nil, err
	}
	result := &Codec{c: c}
	if len(conf.Key) > 0 {
		result.x, err = NewCipher(conf.Key)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Compression is the name of the codec's compressor.
func (c *Codec) Compression() string { return c.c.Name() }

// Encrypted tells whether the codec encrypts.
func (c *Codec) Encrypted() bool { return c.x != nil }

func (c *Codec) String() string {
	if c.x == nil {
		return c.c.Name()
	}
	return c.c.Name() + "+" + c.x.Name()
}

// Encode transforms raw bytes into their stored form.
func (c *Codec) Encode(raw []byte) ([]byte, error) {
	out, err := c.c.Compress(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "compressing with %s", c.c.Name())
	}
	if c.x == nil {
		return out, nil
	}
	out, err = c.x.Seal(out)
	return out, errors.Wrap(err, "encrypting")
}

// Decode reverses Encode.
func (c *Codec) Decode(stored []byte) ([]byte, error) {
	out := stored
	if c.x != nil {
		var err error
		out, err = c.x.Open(out)
		if err != nil {
			return nil, &DecodeError{Stage: "decrypt", Err: err}
		}
	}
	out, err := c.c.Uncompress(out)
	if err != nil {
		return nil, &DecodeError{Stage: "uncompress with " + c.c.Name(), Err: err}
	}
	return out, nil
}
