package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bobg/subcmd"
	"github.com/go-logr/logr"

	"github.com/bobg/blobts"
	"github.com/bobg/blobts/codec"
	"github.com/bobg/blobts/testutil"
	"github.com/bobg/blobts/vcs/mem"
)

func TestSubcmds(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.MemStore(t, mem.NewRemote())
	for _, b := range []struct {
		ns   int64
		data string
	}{{10, "one"}, {20, "two"}} {
		at := time.Unix(0, b.ns)
		if _, err := s.Add(ctx, []byte(b.data), &at); err != nil {
			t.Fatal(err)
		}
	}

	run := func(stdin string, args ...string) (string, error) {
		var out bytes.Buffer
		c := &maincmd{log: logr.Discard(), s: s, stdin: strings.NewReader(stdin), stdout: &out}
		err := subcmd.Run(ctx, c, args)
		return out.String(), err
	}
	line := func(k blobts.Key, extra ...any) string {
		fields := []any{k, k.Time().Format(time.RFC3339Nano)}
		return fmt.Sprintln(append(fields, extra...)...)
	}

	t.Run("keygen", func(t *testing.T) {
		out, err := run("", "keygen")
		if err != nil {
			t.Fatal(err)
		}
		if _, err = codec.New(codec.Config{Key: []byte(strings.TrimSpace(out))}); err != nil {
			t.Errorf("generated key %q does not work: %s", out, err)
		}

		filename := filepath.Join(t.TempDir(), "key")
		if out, err = run("", "keygen", "-o", filename); err != nil {
			t.Fatal(err)
		}
		if out != "" {
			t.Errorf("got output %q with -o", out)
		}
		info, err := os.Stat(filename)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("got mode %o, want 600", perm)
		}
		if _, err = run("", "keygen", "-o", filename); !errors.Is(err, os.ErrExist) {
			t.Errorf("got %v overwriting a key file, want ErrExist", err)
		}
	})

	t.Run("add", func(t *testing.T) {
		out, err := run("three", "add", "-at", "30")
		if err != nil {
			t.Fatal(err)
		}
		if out != "30\n" {
			t.Errorf("got %q, want %q", out, "30\n")
		}
	})

	t.Run("list", func(t *testing.T) {
		out, err := run("", "list")
		if err != nil {
			t.Fatal(err)
		}
		if want := line(10) + line(20) + line(30); out != want {
			t.Errorf("got %q, want %q", out, want)
		}

		out, err = run("", "list", "-reverse", "-sizes", "-nopull", "-start", "15")
		if err != nil {
			t.Fatal(err)
		}
		if want := line(30, 5) + line(20, 3); out != want {
			t.Errorf("got %q, want %q", out, want)
		}
	})

	t.Run("get", func(t *testing.T) {
		out, err := run("", "get", "-nopull", "20", "10")
		if err != nil {
			t.Fatal(err)
		}
		if out != "twoone" {
			t.Errorf("got %q, want %q", out, "twoone")
		}
		if _, err = run("", "get"); err == nil {
			t.Error("got no error for missing key")
		}
	})

	t.Run("sync", func(t *testing.T) {
		if _, err := run("", "sync"); err != nil {
			t.Fatal(err)
		}
	})

	if _, err := run("", "bogus"); !errors.Is(err, subcmd.ErrUnknown) {
		t.Errorf("got %v, want ErrUnknown", err)
	}
}
