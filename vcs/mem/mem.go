// Package mem implements an in-memory remote repository
// and working copies of it backed by real directories.
// It stands in for git in tests.
package mem

import (
	"bytes"
	"context"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/bobg/blobts/vcs"
)

// Remote is an in-memory remote repository.
// It is safe for concurrent use by any number of Repos.
type Remote struct {
	mu      sync.Mutex
	files   map[string][]byte
	version int // incremented on every accepted push
}

// NewRemote produces an empty Remote.
func NewRemote() *Remote {
	return &Remote{files: make(map[string][]byte)}
}

// Put adds a file to the remote as if some other writer had pushed it.
func (r *Remote) Put(name string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[name] = bytes.Clone(data)
	r.version++
}

// Names lists the files in the remote in sorted order.
func (r *Remote) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the content of a file in the remote.
func (r *Remote) Get(name string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.files[name]
	return data, ok
}

var _ vcs.VCS = &Repo{}

// Repo is a working copy of a Remote in a directory.
// It is not safe for concurrent use.
// Like the git collaborator,
// its methods fail with the context's error once the context is done.
type Repo struct {
	remote *Remote
	root   string

	base     int                 // remote version last integrated
	upstream map[string][]byte   // remote files as of base
	tracked  map[string][]byte   // upstream plus local commits
	staged   map[string][]byte   // index
	commits  []map[string][]byte // local commits not yet pushed

	// StageHook, if set, is called for each path passed to Stage.
	// A non-nil error fails the Stage call.
	StageHook func(path string) error

	// PushHook, if set, is called at the start of every Push.
	// A non-nil error is returned from Push.
	PushHook func(ctx context.Context) error

	// Lock is the path reported by LockPath.
	Lock string

	pushes, pulls int
}

// New produces a Repo for remote with its working directory at root.
// The directory must exist.
func New(remote *Remote, root string) *Repo {
	return &Repo{
		remote:   remote,
		root:     root,
		upstream: make(map[string][]byte),
		tracked:  make(map[string][]byte),
		staged:   make(map[string][]byte),
	}
}

// Root implements vcs.VCS.
func (r *Repo) Root() string { return r.root }

// LockPath implements vcs.Locker.
func (r *Repo) LockPath() string { return r.Lock }

// Stage implements vcs.VCS.
func (r *Repo) Stage(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, path := range paths {
		if r.StageHook != nil {
			if err := r.StageHook(path); err != nil {
				return errors.Wrapf(err, "staging %s", path)
			}
		}
		data, err := os.ReadFile(filepath.Join(r.root, path))
		if err != nil {
			return errors.Wrapf(err, "staging %s", path)
		}
		r.staged[path] = data
	}
	return nil
}

// Unstage implements vcs.VCS.
func (r *Repo) Unstage(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, path := range paths {
		delete(r.staged, path)
	}
	return nil
}

// Commit implements vcs.VCS.
func (r *Repo) Commit(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(r.staged) == 0 {
		return vcs.ErrNothingToCommit
	}
	for path, data := range r.staged {
		r.tracked[path] = data
	}
	r.commits = append(r.commits, r.staged)
	r.staged = make(map[string][]byte)
	return nil
}

// Push implements vcs.VCS.
func (r *Repo) Push(ctx context.Context) error {
	r.pushes++
	if r.PushHook != nil {
		if err := r.PushHook(ctx); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.remote.mu.Lock()
	defer r.remote.mu.Unlock()

	if r.base != r.remote.version {
		return errors.Wrapf(vcs.ErrDiverged, "local base %d, remote version %d", r.base, r.remote.version)
	}
	if len(r.commits) == 0 {
		return nil
	}
	for _, c := range r.commits {
		for path, data := range c {
			r.remote.files[path] = data
			r.upstream[path] = data
		}
	}
	r.remote.version++
	r.base = r.remote.version
	r.commits = nil
	return nil
}

// Pull implements vcs.VCS.
func (r *Repo) Pull(ctx context.Context) error {
	r.pulls++
	if err := ctx.Err(); err != nil {
		return err
	}

	r.remote.mu.Lock()
	defer r.remote.mu.Unlock()

	if r.base == r.remote.version {
		return nil
	}

	var (
		incoming  = make(map[string][]byte)
		conflicts []string
	)
	for path, data := range r.remote.files {
		if have, ok := r.tracked[path]; ok && bytes.Equal(have, data) {
			incoming[path] = data
			continue
		}
		local, err := os.ReadFile(filepath.Join(r.root, path))
		if err == nil && !bytes.Equal(local, data) {
			conflicts = append(conflicts, path)
			continue
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "reading %s", path)
		}
		incoming[path] = data
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return &vcs.ConflictError{Paths: conflicts}
	}

	for path, data := range incoming {
		if err := os.WriteFile(filepath.Join(r.root, path), data, 0644); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
		r.upstream[path] = data
		r.tracked[path] = data
	}
	r.base = r.remote.version
	return nil
}

// Rollback implements vcs.VCS.
func (r *Repo) Rollback(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.commits = nil
	r.tracked = maps.Clone(r.upstream)
	for _, path := range paths {
		delete(r.staged, path)
		fullpath := filepath.Join(r.root, path)
		if data, ok := r.upstream[path]; ok {
			if err := os.WriteFile(fullpath, data, 0644); err != nil {
				return errors.Wrapf(err, "restoring %s", path)
			}
			continue
		}
		err := os.Remove(fullpath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "removing %s", path)
		}
	}
	return nil
}

// Pending is the number of local commits not yet pushed.
func (r *Repo) Pending() int { return len(r.commits) }

// Pushes is the number of Push calls so far.
func (r *Repo) Pushes() int { return r.pushes }

// Pulls is the number of Pull calls so far.
func (r *Repo) Pulls() int { return r.pulls }
