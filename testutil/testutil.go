// Package testutil contains helpers for testing blob stores
// over any version-control collaborator.
package testutil

import (
	"context"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/bobg/blobts"
	"github.com/bobg/blobts/vcs/mem"
)

// MemStore produces a store over a fresh working copy of remote
// in a temporary directory.
// The working copy is returned too, for inspection and fault injection.
func MemStore(t *testing.T, remote *mem.Remote, opts ...blobts.Option) (*blobts.Store, *mem.Repo) {
	t.Helper()
	repo := mem.New(remote, t.TempDir())
	s, err := blobts.New(repo, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s, repo
}

// RoundTrip adds blobs to a store,
// the first half one at a time and the rest in a single batch,
// then checks that queries in both directions produce them again.
// It returns the keys of the added blobs.
func RoundTrip(ctx context.Context, t *testing.T, store *blobts.Store, blobs [][]byte) []blobts.Key {
	t.Helper()
	if len(blobs) == 0 {
		return nil
	}

	half := len(blobs) / 2
	keys := make([]blobts.Key, 0, len(blobs))
	for _, b := range blobs[:half] {
		k, err := store.Add(ctx, b, nil)
		if err != nil {
			t.Fatal(err)
		}
		keys = append(keys, k)
	}
	more, err := store.AddMany(ctx, blobs[half:], nil)
	if err != nil {
		t.Fatal(err)
	}
	keys = append(keys, more...)

	for i := 1; i < len(keys); i++ {
		if keys[i] <= keys[i-1] {
			t.Fatalf("key %d (%s) is not greater than key %d (%s)", i, keys[i], i-1, keys[i-1])
		}
	}

	want := make([]blobts.Blob, len(blobs))
	for i, b := range blobs {
		want[i] = blobts.Blob{Key: keys[i], Data: b}
	}
	first, last := keys[0], keys[len(keys)-1]

	got := Collect(ctx, t, store, blobts.Interval{Start: first, End: last})
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("ascending mismatch (-want +got):\n%s", diff)
	}

	slices.Reverse(want)
	got = Collect(ctx, t, store, blobts.Interval{Start: last, End: first})
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("descending mismatch (-want +got):\n%s", diff)
	}

	return keys
}

// Collect gathers the blobs in iv, failing the test on error.
func Collect(ctx context.Context, t *testing.T, store *blobts.Store, iv blobts.Interval, opts ...blobts.QueryOption) []blobts.Blob {
	t.Helper()
	var result []blobts.Blob
	err := store.Query(ctx, iv, func(b blobts.Blob) error {
		result = append(result, b)
		return nil
	}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return result
}

// Keys checks that the keys in iv are want.
func Keys(ctx context.Context, t *testing.T, store *blobts.Store, iv blobts.Interval, want []blobts.Key, opts ...blobts.QueryOption) {
	t.Helper()
	got, err := store.Keys(ctx, iv, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}
