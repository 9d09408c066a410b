// Package git implements the blobts version-control collaborator
// by running the git executable in a working directory.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/bobg/blobts/vcs"
)

var (
	_ vcs.VCS    = &Repo{}
	_ vcs.Locker = &Repo{}
)

// LockFileName is the name of the advisory lock file inside the git directory.
const LockFileName = "blobts.lock"

// Repo is a git working copy with a remote.
type Repo struct {
	dir    string
	gitDir string
	remote string
	branch string
	exe    string
}

// Option configures Open.
type Option func(*Repo)

// WithRemote names the remote to push to and pull from.
// The default is "origin",
// or the only configured remote if there is exactly one.
func WithRemote(name string) Option {
	return func(r *Repo) { r.remote = name }
}

// WithBranch names the remote branch.
// The default is the currently checked-out branch.
func WithBranch(name string) Option {
	return func(r *Repo) { r.branch = name }
}

// WithExecutable sets the git executable to run.
// The default is "git" looked up in PATH.
func WithExecutable(path string) Option {
	return func(r *Repo) { r.exe = path }
}

// CmdError is the error from a failed git invocation.
type CmdError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CmdError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("git %s: %s: %s", strings.Join(e.Args, " "), e.Err, msg)
}

func (e *CmdError) Unwrap() error { return e.Err }

// ExitCode is the exit status of git, or -1 if it did not run to completion.
func (e *CmdError) ExitCode() int {
	var xerr *exec.ExitError
	if errors.As(e.Err, &xerr) {
		return xerr.ExitCode()
	}
	return -1
}

// Open checks that dir is the top of a clean, non-bare git working tree
// with a reachable remote,
// and produces a Repo for it.
// Unmet conditions are reported as a *vcs.PreconditionError.
func Open(ctx context.Context, dir string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", dir)
	}
	r := &Repo{dir: abs, exe: "git"}
	for _, o := range opts {
		o(r)
	}

	precondition := func(reason error, detail string) error {
		return &vcs.PreconditionError{Path: abs, Err: reason, Detail: detail}
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, precondition(vcs.ErrNoSuchPath, "")
	}

	out, err := r.run(ctx, "rev-parse", "--is-bare-repository")
	if err != nil {
		return nil, precondition(vcs.ErrNotWorkTree, err.Error())
	}
	if out == "true" {
		return nil, precondition(vcs.ErrBare, "")
	}
	top, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, precondition(vcs.ErrNotWorkTree, err.Error())
	}
	if !samePath(top, abs) {
		return nil, precondition(vcs.ErrNotWorkTree, "working tree top is "+top)
	}
	r.gitDir, err = r.run(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return nil, errors.Wrap(err, "locating git directory")
	}

	status, err := r.run(ctx, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, errors.Wrap(err, "getting status")
	}
	var untracked, dirty []string
	for _, line := range strings.Split(status, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "?? "):
			untracked = append(untracked, line[3:])
		default:
			dirty = append(dirty, line)
		}
	}
	if len(dirty) > 0 {
		return nil, precondition(vcs.ErrDirty, strings.Join(dirty, "; "))
	}
	if len(untracked) > 0 {
		return nil, precondition(vcs.ErrUntracked, strings.Join(untracked, ", "))
	}

	remotes, err := r.run(ctx, "remote")
	if err != nil {
		return nil, errors.Wrap(err, "listing remotes")
	}
	names := strings.Fields(remotes)
	if r.remote == "" {
		r.remote = "origin"
		if len(names) == 1 {
			r.remote = names[0]
		}
	}
	if !contains(names, r.remote) {
		return nil, precondition(vcs.ErrNoRemote, r.remote)
	}
	if _, err = r.run(ctx, "ls-remote", "--heads", r.remote); err != nil {
		return nil, precondition(vcs.ErrRemoteUnreachable, err.Error())
	}

	if r.branch == "" {
		r.branch, err = r.run(ctx, "symbolic-ref", "--short", "HEAD")
		if err != nil {
			return nil, errors.Wrap(err, "determining current branch")
		}
	}

	return r, nil
}

// Root implements vcs.VCS.
func (r *Repo) Root() string { return r.dir }

// LockPath implements vcs.Locker.
func (r *Repo) LockPath() string { return filepath.Join(r.gitDir, LockFileName) }

// Remote is the name of the remote.
func (r *Repo) Remote() string { return r.remote }

// Branch is the name of the remote branch.
func (r *Repo) Branch() string { return r.branch }

// Stage implements vcs.VCS.
func (r *Repo) Stage(ctx context.Context, paths []string) error {
	_, err := r.run(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

// Unstage implements vcs.VCS.
func (r *Repo) Unstage(ctx context.Context, paths []string) error {
	_, err := r.run(ctx, append([]string{"rm", "-q", "--cached", "--ignore-unmatch", "--"}, paths...)...)
	return err
}

// Commit implements vcs.VCS.
func (r *Repo) Commit(ctx context.Context, msg string) error {
	_, err := r.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return vcs.ErrNothingToCommit
	}
	var cerr *CmdError
	if !errors.As(err, &cerr) || cerr.ExitCode() != 1 {
		return errors.Wrap(err, "checking index")
	}
	_, err = r.run(ctx, "commit", "-q", "--no-verify", "--allow-empty-message", "-m", msg)
	return err
}

// Push implements vcs.VCS.
func (r *Repo) Push(ctx context.Context) error {
	_, err := r.run(ctx, "push", "--porcelain", r.remote, "HEAD:refs/heads/"+r.branch)
	var cerr *CmdError
	if errors.As(err, &cerr) && isRejection(cerr.Stderr) {
		return errors.Wrap(vcs.ErrDiverged, cerr.Error())
	}
	return err
}

var rejectionMarkers = []string{"[rejected]", "non-fast-forward", "fetch first", "[remote rejected]"}

func isRejection(output string) bool {
	for _, m := range rejectionMarkers {
		if strings.Contains(output, m) {
			return true
		}
	}
	return false
}

// Pull implements vcs.VCS.
func (r *Repo) Pull(ctx context.Context) error {
	_, err := r.run(ctx, "ls-remote", "--exit-code", "--heads", r.remote, r.branch)
	var cerr *CmdError
	if errors.As(err, &cerr) && cerr.ExitCode() == 2 {
		// Nothing has been pushed yet.
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "querying remote branch")
	}

	if _, err = r.run(ctx, "fetch", "-q", r.remote, r.branch); err != nil {
		return errors.Wrap(err, "fetching")
	}
	_, err = r.run(ctx, "merge", "-q", "--no-edit", "--allow-unrelated-histories", "FETCH_HEAD")
	if err == nil {
		return nil
	}
	if !errors.As(err, &cerr) {
		return errors.Wrap(err, "merging")
	}

	conflicts := overwrittenPaths(cerr.Stderr)
	merging, merr := r.hasRef(ctx, "MERGE_HEAD")
	if merr != nil {
		return errors.Wrapf(merr, "after failed merge (%s)", err)
	}
	if merging {
		unmerged, uerr := r.run(ctx, "diff", "--name-only", "--diff-filter=U")
		if uerr == nil {
			conflicts = append(conflicts, strings.Fields(unmerged)...)
		}
		if _, aerr := r.run(ctx, "merge", "--abort"); aerr != nil {
			return errors.Wrapf(aerr, "aborting failed merge (%s)", err)
		}
	}
	if len(conflicts) > 0 {
		return &vcs.ConflictError{Paths: conflicts}
	}
	return errors.Wrap(err, "merging")
}

// Names git lists, one per tab-indented line,
// when a merge would clobber untracked or modified files.
func overwrittenPaths(stderr string) []string {
	var (
		result  []string
		inBlock bool
	)
	for _, line := range strings.Split(stderr, "\n") {
		switch {
		case strings.Contains(line, "would be overwritten by merge"):
			inBlock = true
		case inBlock && strings.HasPrefix(line, "\t"):
			result = append(result, strings.TrimSpace(line))
		default:
			inBlock = false
		}
	}
	return result
}

// Rollback implements vcs.VCS.
func (r *Repo) Rollback(ctx context.Context, paths []string) error {
	upstream := "refs/remotes/" + r.remote + "/" + r.branch
	keep := make(map[string]bool)
	pushed, err := r.hasRef(ctx, upstream)
	if err != nil {
		return err
	}
	if pushed {
		if _, err = r.run(ctx, "reset", "-q", "--hard", upstream); err != nil {
			return errors.Wrapf(err, "resetting to %s", upstream)
		}
		if len(paths) > 0 {
			// Paths the remote also has were restored by the reset.
			tracked, err := r.run(ctx, append([]string{"ls-tree", "--name-only", upstream, "--"}, paths...)...)
			if err != nil {
				return errors.Wrapf(err, "listing %s", upstream)
			}
			for _, name := range strings.Split(tracked, "\n") {
				keep[name] = true
			}
		}
	} else {
		// The branch has never been pushed: return it to the unborn state.
		if _, err := r.run(ctx, "update-ref", "-d", "HEAD"); err != nil {
			return errors.Wrap(err, "deleting HEAD")
		}
		if len(paths) > 0 {
			if err := r.Unstage(ctx, paths); err != nil {
				return err
			}
		}
	}
	for _, path := range paths {
		if keep[path] {
			continue
		}
		err := os.Remove(filepath.Join(r.dir, path))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "removing %s", path)
		}
	}
	return nil
}

// Tells whether ref exists.
// Only a clean "no such ref" from git counts as false;
// any other failure is an error.
func (r *Repo) hasRef(ctx context.Context, ref string) (bool, error) {
	_, err := r.run(ctx, "rev-parse", "-q", "--verify", ref)
	if err == nil {
		return true, nil
	}
	var cerr *CmdError
	if errors.As(err, &cerr) && cerr.ExitCode() == 1 {
		return false, nil
	}
	return false, errors.Wrapf(err, "resolving %s", ref)
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.exe, args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// Push reports rejections on stdout with --porcelain.
		return "", &CmdError{Args: args, Stderr: stderr.String() + stdout.String(), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	ra, err1 := filepath.EvalSymlinks(a)
	rb, err2 := filepath.EvalSymlinks(b)
	return err1 == nil && err2 == nil && ra == rb
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
