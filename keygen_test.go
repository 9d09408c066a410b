package blobts

import (
	"errors"
	"testing"
	"testing/quick"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fixedClock(ns int64) Clock {
	return ClockFunc(func() time.Time { return time.Unix(0, ns) })
}

func TestGeneratorBump(t *testing.T) {
	g := NewGenerator(fixedClock(1000))
	for _, want := range []Key{1000, 1001, 1002} {
		got, err := g.Next(nil)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	}

	at := time.Unix(0, 500)
	got, err := g.Next(&at)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1003 {
		t.Errorf("got %s for a time in the past, want 1003", got)
	}

	at = time.Unix(0, 5000)
	if got, err = g.Next(&at); err != nil {
		t.Fatal(err)
	}
	if got != 5000 {
		t.Errorf("got %s, want 5000", got)
	}

	if last, ok := g.Last(); !ok || last != 5000 {
		t.Errorf("got last %s, %v, want 5000, true", last, ok)
	}
}

func TestGeneratorAdvance(t *testing.T) {
	g := NewGenerator(fixedClock(1000))
	if _, ok := g.Last(); ok {
		t.Error("fresh generator reports a last key")
	}
	g.Advance(1000)
	got, err := g.Next(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1001 {
		t.Errorf("got %s, want 1001", got)
	}
	g.Advance(10)
	if got, err = g.Next(nil); err != nil {
		t.Fatal(err)
	}
	if got != 1002 {
		t.Errorf("got %s after advancing into the past, want 1002", got)
	}
}

func TestGeneratorErrors(t *testing.T) {
	g := NewGenerator(fixedClock(-1))
	if _, err := g.Next(nil); !errors.Is(err, ErrTimeInvalid) {
		t.Errorf("got %v for a clock before the epoch, want ErrTimeInvalid", err)
	}

	g = NewGenerator(fixedClock(int64(MaxKey)))
	if _, err := g.Next(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Next(nil); !errors.Is(err, ErrTimeInvalid) {
		t.Errorf("got %v after MaxKey, want ErrTimeInvalid", err)
	}
}

// Keys strictly increase no matter what the clock does.
func TestGeneratorMonotonic(t *testing.T) {
	f := func(times []uint32, explicit []bool) bool {
		var (
			i     int
			clock = ClockFunc(func() time.Time {
				return time.Unix(0, int64(times[i]))
			})
			g    = NewGenerator(clock)
			prev = Key(-1)
		)
		for i = range times {
			var at *time.Time
			if i < len(explicit) && explicit[i] {
				tm := time.Unix(0, int64(times[i]))
				at = &tm
			}
			k, err := g.Next(at)
			if err != nil {
				t.Log(err)
				return false
			}
			if k <= prev {
				t.Logf("key %d is %s, not greater than %s", i, k, prev)
				return false
			}
			prev = k
		}
		return true
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestNextN(t *testing.T) {
	g := NewGenerator(fixedClock(1000))
	t1 := time.Unix(0, 2000)
	got, err := g.NextN(4, []*time.Time{nil, &t1, nil})
	if err != nil {
		t.Fatal(err)
	}
	want := []Key{1000, 2000, 2001, 2002}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err = g.NextN(1, []*time.Time{nil, nil}); err == nil {
		t.Error("got no error for too many times")
	}
}
