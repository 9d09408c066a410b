package blobts

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/bobg/flock"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/bobg/blobts/codec"
	"github.com/bobg/blobts/vcs"
)

// LockDuration is how long a file lock holds without being refreshed.
// An older lock file is taken to be left over from a crashed writer.
// Writers refresh theirs between push attempts.
const LockDuration = 5 * time.Minute

// Store is a time-indexed blob store in the working directory of a vcs.VCS.
//
// Store methods may be called concurrently.
// Writes and syncs are serialized by an internal mutex
// and, if the collaborator is a vcs.Locker,
// by an advisory file lock shared with other processes.
// A caller waiting for another process's lock
// polls until it is released or the context is done.
type Store struct {
	v     vcs.VCS
	root  string
	codec *codec.Codec
	gen   *Generator
	log   logr.Logger
	conf  config
	cache *lru.Cache // Key -> []byte, nil if disabled

	mu       sync.Mutex // serializes writes, syncs, and enumeration
	flocker  flock.Locker
	lockPath string // empty if no file lock

	index   []Key // sorted keys of the working directory; valid if indexed
	indexed bool
}

// New produces a Store over the working directory of v.
// Invalid options produce a *ConfigError,
// and a missing working directory a *PreconditionError,
// before any I/O on the repository.
func New(v vcs.VCS, opts ...Option) (*Store, error) {
	conf := defaultConfig()
	for _, o := range opts {
		o(&conf)
	}

	c, err := codec.New(codec.Config{Compression: conf.compression, Key: conf.key})
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	if conf.maxCollisions < 0 {
		return nil, &ConfigError{Err: errors.Errorf("max collisions %d is negative", conf.maxCollisions)}
	}
	if conf.maxPushAttempts < 1 {
		return nil, &ConfigError{Err: errors.Errorf("max push attempts %d is less than 1", conf.maxPushAttempts)}
	}
	if conf.clock == nil {
		conf.clock = SystemClock
	}

	root := v.Root()
	info, err := os.Stat(root)
	if err != nil {
		return nil, &PreconditionError{Path: root, Err: vcs.ErrNoSuchPath, Detail: err.Error()}
	}
	if !info.IsDir() {
		return nil, &PreconditionError{Path: root, Err: vcs.ErrNoSuchPath, Detail: "not a directory"}
	}

	s := &Store{
		v:     v,
		root:  root,
		codec: c,
		gen:   NewGenerator(conf.clock),
		log:   conf.logger,
		conf:  conf,
	}
	s.flocker.LockDur = LockDuration
	if l, ok := v.(vcs.Locker); ok {
		s.lockPath = l.LockPath()
	}
	if conf.cacheSize > 0 {
		s.cache, err = lru.New(conf.cacheSize)
		if err != nil {
			return nil, &ConfigError{Err: errors.Wrap(err, "creating cache")}
		}
	}

	s.log.Info("opened store", "root", root, "codec", c.String(), "encrypted", c.Encrypted(), "lock", s.lockPath)
	return s, nil
}

// Root is the working directory of the store.
func (s *Store) Root() string { return s.root }

// Sync pulls remote changes into the working directory,
// so that later queries observe other writers' blobs.
func (s *Store) Sync(ctx context.Context) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.pull(ctx)
}

// Caller must hold the lock.
func (s *Store) pull(ctx context.Context) error {
	s.invalidate()
	if err := s.v.Pull(ctx); err != nil {
		return errors.Wrap(err, "pulling")
	}
	s.log.V(1).Info("pulled")
	return nil
}

// Caller must hold the lock.
func (s *Store) invalidate() {
	s.index = nil
	s.indexed = false
}

// The returned function releases the lock.
func (s *Store) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if s.lockPath == "" {
		return s.mu.Unlock, nil
	}

	op := func() error {
		err := s.flocker.Lock(s.lockPath)
		if err != nil && !errors.Is(err, flock.ErrLocked) {
			return backoff.Permanent(err)
		}
		return err
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = lockPoll
	eb.MaxInterval = maxLockPoll
	eb.MaxElapsedTime = 0
	err := backoff.RetryNotify(op, backoff.WithContext(eb, ctx), func(_ error, next time.Duration) {
		s.log.V(1).Info("waiting for file lock", "path", s.lockPath, "backoff", next)
	})
	if err != nil {
		s.mu.Unlock()
		return nil, errors.Wrapf(err, "locking %s", s.lockPath)
	}

	return func() {
		if err := s.flocker.Unlock(s.lockPath); err != nil {
			s.log.Error(err, "unlocking", "path", s.lockPath)
		}
		s.mu.Unlock()
	}, nil
}

const (
	lockPoll    = 10 * time.Millisecond
	maxLockPoll = time.Second
)

// Keeps a held file lock from expiring.
// Caller must hold the lock.
func (s *Store) refreshLock() {
	if s.lockPath == "" {
		return
	}
	if err := s.flocker.Refresh(s.lockPath); err != nil {
		s.log.Error(err, "refreshing lock", "path", s.lockPath)
	}
}
