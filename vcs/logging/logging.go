// Package logging implements a version-control collaborator
// that delegates everything to a nested one,
// logging operations as they happen.
package logging

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/bobg/blobts/vcs"
)

var (
	_ vcs.VCS    = &VCS{}
	_ vcs.Locker = &VCS{}
)

type VCS struct {
	v   vcs.VCS
	log logr.Logger
}

func New(v vcs.VCS, log logr.Logger) *VCS {
	return &VCS{v: v, log: log.WithValues("root", v.Root())}
}

func (l *VCS) Root() string { return l.v.Root() }

// LockPath implements vcs.Locker.
// It is empty if the nested collaborator is not a vcs.Locker.
func (l *VCS) LockPath() string {
	if lk, ok := l.v.(vcs.Locker); ok {
		return lk.LockPath()
	}
	return ""
}

func (l *VCS) Stage(ctx context.Context, paths []string) error {
	return l.do("Stage", func() error { return l.v.Stage(ctx, paths) }, "paths", len(paths))
}

func (l *VCS) Unstage(ctx context.Context, paths []string) error {
	return l.do("Unstage", func() error { return l.v.Unstage(ctx, paths) }, "paths", len(paths))
}

func (l *VCS) Commit(ctx context.Context, msg string) error {
	return l.do("Commit", func() error { return l.v.Commit(ctx, msg) }, "message", msg)
}

func (l *VCS) Push(ctx context.Context) error {
	return l.do("Push", func() error { return l.v.Push(ctx) })
}

func (l *VCS) Pull(ctx context.Context) error {
	return l.do("Pull", func() error { return l.v.Pull(ctx) })
}

func (l *VCS) Rollback(ctx context.Context, paths []string) error {
	return l.do("Rollback", func() error { return l.v.Rollback(ctx, paths) }, "paths", len(paths))
}

func (l *VCS) do(op string, f func() error, kv ...interface{}) error {
	start := time.Now()
	err := f()
	kv = append(kv, "op", op, "elapsed", time.Since(start))
	if err != nil {
		l.log.Error(err, "vcs operation failed", kv...)
	} else {
		l.log.V(1).Info("vcs operation", kv...)
	}
	return err
}
