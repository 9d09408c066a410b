package codec

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Factory produces a Compressor.
type Factory func() (Compressor, error)

var registry = make(map[string]Factory)

// Register makes a compressor available under the given name.
// It replaces any previous registration of that name.
func Register(name string, f Factory) {
	registry[strings.ToLower(name)] = f
}

// Lookup produces the compressor registered under name.
// The empty name means "none".
func Lookup(name string) (Compressor, error) {
	if name == "" {
		name = None{}.Name()
	}
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCompression, "%q (have %s)", name, strings.Join(Names(), ", "))
	}
	return f()
}

// Names lists the registered compressor names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("none", func() (Compressor, error) { return None{}, nil })
	Register("gzip", func() (Compressor, error) { return Gzip{Level: DefaultGzipLevel}, nil })
	Register("zstd", func() (Compressor, error) { return NewZstd() })
	Register("lz4", func() (Compressor, error) { return LZ4{}, nil })
}
