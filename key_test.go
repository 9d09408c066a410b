package blobts

import (
	"errors"
	"testing"
	"testing/quick"
	"time"
)

func TestParseKey(t *testing.T) {
	cases := []struct {
		s       string
		want    Key
		wantErr bool
	}{
		{s: "0", want: 0},
		{s: "1000", want: 1000},
		{s: "9223372036854775807", want: MaxKey},
		{s: "", wantErr: true},
		{s: "01", wantErr: true},
		{s: "-1", wantErr: true},
		{s: "+1", wantErr: true},
		{s: "12a", wantErr: true},
		{s: "1.5", wantErr: true},
		{s: "9223372036854775808", wantErr: true},
		{s: ".git", wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.s, func(t *testing.T) {
			got, err := ParseKey(c.s)
			if c.wantErr {
				if err == nil {
					t.Errorf("got %s, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != c.want {
				t.Errorf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	f := func(n int64) bool {
		if n < 0 {
			n = -(n + 1)
		}
		k := Key(n)
		got, err := ParseKey(k.String())
		return err == nil && got == k
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestKeyFromTime(t *testing.T) {
	t1 := time.Date(2020, 1, 2, 3, 4, 5, 6, time.FixedZone("UTC-4", -4*60*60))
	k, err := KeyFromTime(t1)
	if err != nil {
		t.Fatal(err)
	}
	if !k.Time().Equal(t1) {
		t.Errorf("got %s, want %s", k.Time(), t1)
	}
	if k.Time().Location() != time.UTC {
		t.Errorf("got location %s, want UTC", k.Time().Location())
	}

	if k, err := KeyFromTime(time.Unix(0, 0)); err != nil || k != MinKey {
		t.Errorf("got %s, %v at the epoch", k, err)
	}
	if _, err := KeyFromTime(time.Unix(-1, 0)); !errors.Is(err, ErrTimeInvalid) {
		t.Errorf("got %v before the epoch, want ErrTimeInvalid", err)
	}
	if _, err := KeyFromTime(MaxKey.Time().Add(time.Nanosecond)); !errors.Is(err, ErrTimeInvalid) {
		t.Errorf("got %v beyond MaxKey, want ErrTimeInvalid", err)
	}
}

func TestInterval(t *testing.T) {
	before := time.Unix(-100, 0)
	iv := Between(before, time.Unix(0, 50))
	if iv.Start != MinKey || iv.End != 50 {
		t.Errorf("got %+v, want [0, 50]", iv)
	}
	if iv.Descending() {
		t.Error("ascending interval reports descending")
	}

	desc := Interval{Start: 50, End: 10}
	if !desc.Descending() {
		t.Error("descending interval reports ascending")
	}
	if lo, hi := desc.Bounds(); lo != 10 || hi != 50 {
		t.Errorf("got bounds %s, %s, want 10, 50", lo, hi)
	}
	for _, k := range []Key{10, 30, 50} {
		if !desc.Contains(k) {
			t.Errorf("%s not in %+v", k, desc)
		}
	}
	for _, k := range []Key{9, 51} {
		if desc.Contains(k) {
			t.Errorf("%s in %+v", k, desc)
		}
	}

	all := All()
	if !all.Contains(MinKey) || !all.Contains(MaxKey) {
		t.Error("All() lacks an extreme key")
	}
}
