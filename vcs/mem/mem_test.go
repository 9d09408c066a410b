package mem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/blobts/vcs"
)

func write(t *testing.T, r *Repo, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(r.Root(), name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func commit(ctx context.Context, t *testing.T, r *Repo, names ...string) {
	t.Helper()
	if err := r.Stage(ctx, names); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(ctx, ""); err != nil {
		t.Fatal(err)
	}
}

func TestPushPull(t *testing.T) {
	var (
		ctx    = context.Background()
		remote = NewRemote()
		a      = New(remote, t.TempDir())
		b      = New(remote, t.TempDir())
	)

	if err := a.Commit(ctx, ""); !errors.Is(err, vcs.ErrNothingToCommit) {
		t.Errorf("got %v, want ErrNothingToCommit", err)
	}

	write(t, a, "1", "one")
	commit(ctx, t, a, "1")
	if err := a.Push(ctx); err != nil {
		t.Fatal(err)
	}

	write(t, b, "2", "two")
	commit(ctx, t, b, "2")
	if err := b.Push(ctx); !errors.Is(err, vcs.ErrDiverged) {
		t.Fatalf("got %v, want ErrDiverged", err)
	}
	if err := b.Pull(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Push(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Pull(ctx); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"1", "2"}, remote.Names()); diff != "" {
		t.Errorf("remote mismatch (-want +got):\n%s", diff)
	}
	got, err := os.ReadFile(filepath.Join(a.Root(), "2"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two" {
		t.Errorf("got %q, want %q", got, "two")
	}
	if a.Pending() != 0 || b.Pending() != 0 {
		t.Errorf("pending commits: a %d, b %d", a.Pending(), b.Pending())
	}
}

func TestConflictAndRollback(t *testing.T) {
	var (
		ctx    = context.Background()
		remote = NewRemote()
		a      = New(remote, t.TempDir())
		b      = New(remote, t.TempDir())
	)

	write(t, a, "5", "from a")
	commit(ctx, t, a, "5")
	if err := a.Push(ctx); err != nil {
		t.Fatal(err)
	}

	write(t, b, "5", "from b")
	commit(ctx, t, b, "5")
	if err := b.Push(ctx); !errors.Is(err, vcs.ErrDiverged) {
		t.Fatalf("got %v, want ErrDiverged", err)
	}

	err := b.Pull(ctx)
	var cerr *vcs.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want ConflictError", err)
	}
	if diff := cmp.Diff([]string{"5"}, cerr.Paths); diff != "" {
		t.Errorf("conflict mismatch (-want +got):\n%s", diff)
	}

	if err := b.Rollback(ctx, []string{"5"}); err != nil {
		t.Fatal(err)
	}
	if b.Pending() != 0 {
		t.Errorf("%d pending commits after rollback", b.Pending())
	}
	if _, err := os.Stat(filepath.Join(b.Root(), "5")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file 5 still present after rollback (%v)", err)
	}

	if err := b.Pull(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(b.Root(), "5"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "from a" {
		t.Errorf("got %q, want %q", got, "from a")
	}
}

func TestHooks(t *testing.T) {
	var (
		ctx     = context.Background()
		remote  = NewRemote()
		r       = New(remote, t.TempDir())
		failure = errors.New("boom")
	)
	r.StageHook = func(path string) error {
		if path == "bad" {
			return failure
		}
		return nil
	}
	write(t, r, "good", "x")
	write(t, r, "bad", "y")
	if err := r.Stage(ctx, []string{"good", "bad"}); !errors.Is(err, failure) {
		t.Errorf("got %v, want %v", err, failure)
	}

	r.PushHook = func(context.Context) error {
		remote.Put("other", []byte("z"))
		return nil
	}
	commit(ctx, t, r, "good")
	if err := r.Push(ctx); !errors.Is(err, vcs.ErrDiverged) {
		t.Errorf("got %v, want ErrDiverged", err)
	}
	if r.Pushes() != 1 {
		t.Errorf("got %d pushes, want 1", r.Pushes())
	}
}

func TestRollbackRestores(t *testing.T) {
	var (
		ctx    = context.Background()
		remote = NewRemote()
		r      = New(remote, t.TempDir())
	)

	write(t, r, "7", "pushed")
	commit(ctx, t, r, "7")
	if err := r.Push(ctx); err != nil {
		t.Fatal(err)
	}

	write(t, r, "7", "local")
	write(t, r, "8", "local")
	commit(ctx, t, r, "7", "8")
	if err := r.Rollback(ctx, []string{"7", "8"}); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(r.Root(), "7"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "pushed" {
		t.Errorf("got %q, want %q", got, "pushed")
	}
	if _, err := os.Stat(filepath.Join(r.Root(), "8")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file 8 still present after rollback (%v)", err)
	}
	if r.Pending() != 0 {
		t.Errorf("%d pending commits after rollback", r.Pending())
	}
}
