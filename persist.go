package blobts

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/bobg/blobts/vcs"
)

// Add stores a blob and returns its key.
// The key is for the requested time at, or for the current time if at is nil,
// bumped as needed to keep keys unique and increasing.
// The blob is committed and pushed to the remote before Add returns.
func (s *Store) Add(ctx context.Context, data []byte, at *time.Time) (Key, error) {
	var ats []*time.Time
	if at != nil {
		ats = []*time.Time{at}
	}
	keys, err := s.AddMany(ctx, [][]byte{data}, ats)
	if err != nil {
		return 0, err
	}
	return keys[0], nil
}

// AddMany stores several blobs in a single commit and push.
// The ith blob's requested time is ats[i];
// ats may be shorter than blobs (or nil),
// in which case the remaining blobs get the current time.
// The keys are returned in the order of the blobs and are strictly increasing.
//
// AddMany is all-or-nothing.
// If it fails, none of the blobs are committed,
// and the working directory is left as it was (plus anything pulled from the remote).
//
// If the remote has advanced, AddMany pulls and retries the push,
// with exponential backoff, up to the configured number of attempts,
// failing with a *SyncError after that.
// If another writer has pushed a blob under one of the same keys,
// AddMany discards its commit and writes the blobs again under new keys.
func (s *Store) AddMany(ctx context.Context, blobs [][]byte, ats []*time.Time) ([]Key, error) {
	if len(ats) > len(blobs) {
		return nil, errors.Errorf("%d times supplied for %d blobs", len(ats), len(blobs))
	}
	if len(blobs) == 0 {
		return nil, nil
	}

	encoded := make([][]byte, len(blobs))
	for i, b := range blobs {
		e, err := s.codec.Encode(b)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding blob %d", i)
		}
		encoded[i] = e
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	defer s.invalidate()

	// Pulling first keeps collisions with other writers rare:
	// their files are then found locally and skipped at write time.
	if err = s.pull(ctx); err != nil {
		return nil, err
	}

	keys, err := s.gen.NextN(len(blobs), ats)
	if err != nil {
		return nil, err
	}

	for round := 1; ; round++ {
		s.refreshLock()
		names, err := s.write(keys, ats, blobs, encoded)
		if err != nil {
			return nil, err
		}
		if err = s.commit(ctx, names, keys); err != nil {
			return nil, err
		}

		err = s.push(ctx)
		if err == nil {
			s.log.Info("added blobs", "count", len(keys), "first", keys[0], "last", keys[len(keys)-1])
			return keys, nil
		}

		// Rolling back must not be cut short by the cancellation that may have failed the push.
		if rerr := s.v.Rollback(context.WithoutCancel(ctx), names); rerr != nil {
			return nil, errors.Wrapf(rerr, "rolling back after: %s", err)
		}

		var cerr *vcs.ConflictError
		if !errors.As(err, &cerr) {
			return nil, err
		}
		if round >= s.conf.maxPushAttempts {
			return nil, &SyncError{Attempts: round, Err: err}
		}

		s.log.Info("another writer used the same keys, rewriting", "paths", cerr.Paths, "round", round)
		for _, p := range cerr.Paths {
			if k, perr := ParseKey(filepath.Base(p)); perr == nil {
				s.gen.Advance(k)
			}
		}
		if err = s.pull(ctx); err != nil {
			return nil, err
		}
		if keys, err = s.gen.NextN(len(blobs), ats); err != nil {
			return nil, err
		}
	}
}

// Writes one file per blob.
// On finding a file already present under keys[i],
// it issues new keys for blobs i and later (preserving their order) and tries again.
// On error, files already written are removed.
// Caller must hold the lock.
func (s *Store) write(keys []Key, ats []*time.Time, blobs, encoded [][]byte) (names []string, err error) {
	names = make([]string, 0, len(keys))
	defer func() {
		if err != nil {
			s.remove(names)
		}
	}()

	var collisions int
	for i := 0; i < len(keys); {
		name := keys[i].String()
		err := s.create(name, encoded[i])
		if errors.Is(err, os.ErrExist) {
			collisions++
			if collisions > s.conf.maxCollisions {
				return names, errors.Wrapf(ErrKeyCollision, "%d collisions, last at %s", collisions, name)
			}
			s.log.V(1).Info("key collision", "key", name)
			s.gen.Advance(keys[i])
			var tail []*time.Time
			if i < len(ats) {
				tail = ats[i:]
			}
			fresh, err := s.gen.NextN(len(keys)-i, tail)
			if err != nil {
				return names, err
			}
			copy(keys[i:], fresh)
			continue
		}
		if err != nil {
			return names, err
		}
		names = append(names, name)
		if err = s.verify(name, blobs[i]); err != nil {
			return names, err
		}
		s.log.V(1).Info("wrote blob", "key", name, "size", len(blobs[i]), "stored", len(encoded[i]))
		i++
	}
	return names, nil
}

// Creates a new file,
// failing with an error wrapping os.ErrExist if it is already present.
func (s *Store) create(name string, data []byte) error {
	path := filepath.Join(s.root, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return errors.Wrapf(err, "writing data to %s", path)
	}
	return nil
}

// Reads back a written file and checks that it decodes to want.
func (s *Store) verify(name string, want []byte) error {
	stored, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		return errors.Wrapf(err, "rereading %s", name)
	}
	got, err := s.codec.Decode(stored)
	if err != nil {
		return errors.Wrapf(err, "verifying %s", name)
	}
	if !bytes.Equal(got, want) {
		return errors.Errorf("verifying %s: content mismatch", name)
	}
	return nil
}

// Stages and commits the named files.
// On failure, unstages and removes them.
// Caller must hold the lock.
func (s *Store) commit(ctx context.Context, names []string, keys []Key) error {
	if err := s.v.Stage(ctx, names); err != nil {
		s.discard(ctx, names)
		return errors.Wrap(err, "staging")
	}
	if err := s.v.Commit(ctx, s.conf.commitMessage(keys)); err != nil {
		s.discard(ctx, names)
		return errors.Wrap(err, "committing")
	}
	s.log.V(1).Info("committed", "count", len(names))
	return nil
}

// Pushes, pulling and retrying with backoff when the remote has diverged.
// A *vcs.ConflictError from the pull is returned as is.
// Caller must hold the lock.
func (s *Store) push(ctx context.Context) error {
	var attempts int
	op := func() error {
		attempts++
		s.refreshLock()
		err := s.v.Push(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, vcs.ErrDiverged) {
			return backoff.Permanent(errors.Wrap(err, "pushing"))
		}
		if perr := s.v.Pull(ctx); perr != nil {
			var cerr *vcs.ConflictError
			if errors.As(perr, &cerr) {
				return backoff.Permanent(perr)
			}
			return backoff.Permanent(errors.Wrap(perr, "pulling after rejected push"))
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.conf.backoff
	eb.MaxInterval = s.conf.maxBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.conf.maxPushAttempts-1)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		s.log.Error(err, "push rejected, retrying", "attempt", attempts, "backoff", next)
	})
	if errors.Is(err, vcs.ErrDiverged) {
		return &SyncError{Attempts: attempts, Err: err}
	}
	if err == nil {
		s.log.V(1).Info("pushed", "attempts", attempts)
	}
	return err
}

// Runs even if ctx is done.
// Caller must hold the lock.
func (s *Store) discard(ctx context.Context, names []string) {
	if err := s.v.Unstage(context.WithoutCancel(ctx), names); err != nil {
		s.log.Error(err, "unstaging", "count", len(names))
	}
	s.remove(names)
}

func (s *Store) remove(names []string) {
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.root, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Error(err, "removing", "name", name)
		}
	}
}
