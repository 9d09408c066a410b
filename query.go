package blobts

import (
	"bytes"
	"context"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/pkg/errors"
)

type queryConfig struct {
	pull bool
}

// QueryOption configures Query, Blobs, and Keys.
type QueryOption func(*queryConfig)

// WithPull tells whether to pull from the remote before enumerating keys.
// The default is true.
func WithPull(pull bool) QueryOption {
	return func(c *queryConfig) { c.pull = pull }
}

// Query calls f on each blob whose key is in iv,
// in ascending key order,
// or descending if iv.Descending().
//
// Blobs are read and decoded one at a time,
// just before being passed to f.
// If one cannot be decoded,
// Query returns the error after f has seen every blob before it.
// An error from f stops the iteration and is returned.
func (s *Store) Query(ctx context.Context, iv Interval, f func(Blob) error, opts ...QueryOption) error {
	keys, err := s.Keys(ctx, iv, opts...)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := s.get(k)
		if err != nil {
			return err
		}
		if err := f(Blob{Key: k, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

// Blobs is the iterator form of Query.
// A non-nil error is the last value produced.
func (s *Store) Blobs(ctx context.Context, iv Interval, opts ...QueryOption) iter.Seq2[Blob, error] {
	return func(yield func(Blob, error) bool) {
		var stopped bool
		err := s.Query(ctx, iv, func(b Blob) error {
			if !yield(b, nil) {
				stopped = true
				return errStop
			}
			return nil
		}, opts...)
		if err != nil && !stopped {
			yield(Blob{}, err)
		}
	}
}

var errStop = errors.New("stop")

// Keys lists the keys in iv,
// in the order Query would produce them.
func (s *Store) Keys(ctx context.Context, iv Interval, opts ...QueryOption) ([]Key, error) {
	conf := queryConfig{pull: true}
	for _, o := range opts {
		o(&conf)
	}

	lo, hi := iv.Bounds()
	switch {
	case lo == hi:
		s.log.Info("query interval holds a single key", "key", lo)
	case lo == MinKey && hi == MaxKey:
		s.log.Info("querying all keys")
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if conf.pull {
		if err = s.pull(ctx); err != nil {
			return nil, err
		}
	}
	if err = s.buildIndex(); err != nil {
		return nil, err
	}

	i := sort.Search(len(s.index), func(n int) bool { return s.index[n] >= lo })
	j := sort.Search(len(s.index), func(n int) bool { return s.index[n] > hi })
	result := slices.Clone(s.index[i:j])
	if iv.Descending() {
		slices.Reverse(result)
	}
	s.log.V(1).Info("selected keys", "start", iv.Start, "end", iv.End, "count", len(result))
	return result, nil
}

// Get reads and decodes the blob with key k.
// If there is no such blob, the error wraps os.ErrNotExist.
// Get does not pull.
func (s *Store) Get(_ context.Context, k Key) ([]byte, error) {
	return s.get(k)
}

func (s *Store) get(k Key) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(k); ok {
			return bytes.Clone(data.([]byte)), nil
		}
	}
	stored, err := os.ReadFile(filepath.Join(s.root, k.String()))
	if err != nil {
		return nil, errors.Wrapf(err, "reading blob %s", k)
	}
	data, err := s.codec.Decode(stored)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding blob %s", k)
	}
	if s.cache != nil {
		s.cache.Add(k, bytes.Clone(data))
	}
	return data, nil
}

// Caller must hold the lock.
func (s *Store) buildIndex() error {
	if s.indexed {
		return nil
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return errors.Wrapf(err, "reading directory %s", s.root)
	}
	index := make([]Key, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		k, err := ParseKey(e.Name())
		if err != nil {
			continue
		}
		index = append(index, k)
	}
	slices.Sort(index)
	s.index = index
	s.indexed = true
	s.log.V(1).Info("indexed working directory", "count", len(index))
	return nil
}
