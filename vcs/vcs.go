// Package vcs describes the version-control collaborator of a blobts store.
//
// A collaborator manages a working directory linked to a remote replica.
// The store only ever adds files to that directory
// and asks the collaborator to stage, commit, push, and pull them.
package vcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// VCS is a working copy of a version-controlled repository with a remote.
// Implementations need not be safe for concurrent use;
// the store serializes all calls against one working directory.
type VCS interface {
	// Root is the working directory in which blob files live.
	Root() string

	// Stage adds the named files (relative to Root) to the index.
	Stage(ctx context.Context, paths []string) error

	// Unstage removes the named files from the index,
	// leaving them on disk.
	Unstage(ctx context.Context, paths []string) error

	// Commit records the staged files as a new local commit.
	// It returns ErrNothingToCommit if nothing is staged.
	Commit(ctx context.Context, msg string) error

	// Push propagates local commits to the remote.
	// It returns an error wrapping ErrDiverged
	// if the remote has history the working copy lacks.
	Push(ctx context.Context) error

	// Pull integrates remote history into the working copy.
	// If there is no remote history yet, Pull is a no-op.
	// If integration would overwrite a differing local file,
	// Pull leaves the working copy unchanged and returns a *ConflictError.
	Pull(ctx context.Context) error

	// Rollback discards every local commit not yet on the remote,
	// keeping whatever Pull has integrated,
	// and removes the named files (the content of those commits)
	// from the working directory,
	// except those the remote has, which are restored to the remote's content.
	Rollback(ctx context.Context, paths []string) error
}

// Locker is implemented by collaborators that can name a file
// suitable for advisory locking of their working copy.
// The file must not live inside the tracked part of Root.
type Locker interface {
	LockPath() string
}

var (
	// ErrDiverged means a push was rejected because the remote has advanced.
	ErrDiverged = errors.New("remote has diverged")

	// ErrNothingToCommit means Commit was called with an empty index.
	ErrNothingToCommit = errors.New("nothing to commit")
)

// Reasons for a PreconditionError.
var (
	ErrNoSuchPath        = errors.New("no such directory")
	ErrNotWorkTree       = errors.New("not a working tree")
	ErrBare              = errors.New("repository is bare")
	ErrDirty             = errors.New("repository has uncommitted changes")
	ErrUntracked         = errors.New("repository has untracked files")
	ErrNoRemote          = errors.New("repository has no such remote")
	ErrRemoteUnreachable = errors.New("remote does not exist or is unreachable")
)

// PreconditionError means a working directory is unfit to back a store.
// Err is one of the reasons above.
type PreconditionError struct {
	Path   string
	Err    error
	Detail string
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Err, e.Detail)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// ConflictError is the error returned by Pull
// when remote files collide with differing local ones.
type ConflictError struct {
	Paths []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting paths: %s", strings.Join(e.Paths, ", "))
}
