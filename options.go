package blobts

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// Defaults for the corresponding options.
const (
	DefaultMaxCollisions   = 1000
	DefaultMaxPushAttempts = 5
	DefaultBackoff         = 250 * time.Millisecond
	DefaultMaxBackoff      = 10 * time.Second
)

type config struct {
	compression     string
	key             []byte
	clock           Clock
	logger          logr.Logger
	maxCollisions   int
	maxPushAttempts int
	backoff         time.Duration
	maxBackoff      time.Duration
	cacheSize       int
	commitMessage   func([]Key) string
}

func defaultConfig() config {
	return config{
		clock:           SystemClock,
		logger:          logr.Discard(),
		maxCollisions:   DefaultMaxCollisions,
		maxPushAttempts: DefaultMaxPushAttempts,
		backoff:         DefaultBackoff,
		maxBackoff:      DefaultMaxBackoff,
		commitMessage:   defaultCommitMessage,
	}
}

func defaultCommitMessage(keys []Key) string {
	if len(keys) == 1 {
		return fmt.Sprintf("Add blob %s", keys[0])
	}
	return fmt.Sprintf("Add %d blobs %s..%s", len(keys), keys[0], keys[len(keys)-1])
}

// Option configures a Store.
type Option func(*config)

// WithCompression selects a compressor by name: "none" (the default), "gzip", "zstd", or "lz4".
// See codec.Names.
func WithCompression(name string) Option {
	return func(c *config) { c.compression = name }
}

// WithKey enables encryption with a textual key as produced by codec.GenerateKey.
func WithKey(key []byte) Option {
	return func(c *config) { c.key = key }
}

// WithClock sets the time source for keys of blobs added without an explicit time.
func WithClock(clock Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithLogger sets the logger for store operations.
// The default discards.
func WithLogger(logger logr.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMaxCollisions bounds how many times a write bumps its key
// past an existing file before failing with ErrKeyCollision.
func WithMaxCollisions(n int) Option {
	return func(c *config) { c.maxCollisions = n }
}

// WithMaxPushAttempts bounds how many times a write tries to push
// after the remote diverges,
// and separately how many times it redoes the write
// after another writer claimed one of its filenames.
func WithMaxPushAttempts(n int) Option {
	return func(c *config) { c.maxPushAttempts = n }
}

// WithBackoff sets the initial and maximum delay between push attempts.
// The delay grows exponentially with jitter.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(c *config) {
		c.backoff = initial
		c.maxBackoff = maxDelay
	}
}

// WithCacheSize enables an LRU cache of up to n decoded blobs.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithCommitMessage sets the function producing the commit message for a write.
func WithCommitMessage(f func([]Key) string) Option {
	return func(c *config) { c.commitMessage = f }
}
