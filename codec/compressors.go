package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Compressor is a lossless, self-framing compression algorithm.
// Uncompress must be the inverse of Compress
// and must fail on input that Compress could not have produced
// rather than return wrong bytes silently.
type Compressor interface {
	Name() string
	Compress([]byte) ([]byte, error)
	Uncompress([]byte) ([]byte, error)
}

// None is the identity Compressor.
type None struct{}

func (None) Name() string                          { return "none" }
func (None) Compress(inp []byte) ([]byte, error)   { return inp, nil }
func (None) Uncompress(inp []byte) ([]byte, error) { return inp, nil }

// ErrNoFrame is the error from uncompressing empty input
// with a compressor that always writes at least one frame.
// Both readers would otherwise take it for an empty stream.
var ErrNoFrame = errors.New("no compressed frame")

// DefaultGzipLevel is the level used by the registered "gzip" compressor.
const DefaultGzipLevel = gzip.DefaultCompression

// Gzip is a Compressor implementing RFC1952 gzip.
type Gzip struct {
	Level int
}

func (Gzip) Name() string { return "gzip" }

func (g Gzip) Compress(inp []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w, err := gzip.NewWriterLevel(buf, g.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "creating gzip writer at level %d", g.Level)
	}
	if _, err = w.Write(inp); err != nil {
		return nil, errors.Wrap(err, "gzip-compressing")
	}
	if err = w.Close(); err != nil {
		return nil, errors.Wrap(err, "closing gzip writer")
	}
	return buf.Bytes(), nil
}

func (Gzip) Uncompress(inp []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(inp))
	if err != nil {
		return nil, errors.Wrap(err, "reading gzip header")
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Zstd is a Compressor implementing Zstandard.
// Its encoder and decoder are safe for concurrent use.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstd produces a Zstd with default settings.
func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithZeroFrames(true))
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd decoder")
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

func (*Zstd) Name() string { return "zstd" }

func (z *Zstd) Compress(inp []byte) ([]byte, error) {
	return z.enc.EncodeAll(inp, nil), nil
}

func (z *Zstd) Uncompress(inp []byte) ([]byte, error) {
	if len(inp) == 0 {
		return nil, errors.Wrap(ErrNoFrame, "zstd")
	}
	return z.dec.DecodeAll(inp, nil)
}

// LZ4 is a Compressor implementing the LZ4 frame format.
type LZ4 struct{}

func (LZ4) Name() string { return "lz4" }

func (LZ4) Compress(inp []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := lz4.NewWriter(buf)
	if _, err := w.Write(inp); err != nil {
		return nil, errors.Wrap(err, "lz4-compressing")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "closing lz4 writer")
	}
	return buf.Bytes(), nil
}

func (LZ4) Uncompress(inp []byte) ([]byte, error) {
	if len(inp) == 0 {
		return nil, errors.Wrap(ErrNoFrame, "lz4")
	}
	return io.ReadAll(lz4.NewReader(bytes.NewReader(inp)))
}
