package blobts

import (
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Key is the key of a blob:
// the number of nanoseconds since the Unix epoch, UTC.
// Its decimal string is the blob's filename.
type Key int64

const (
	// MinKey is the smallest key, the epoch itself.
	MinKey Key = 0

	// MaxKey is the largest key, early in the year 2262.
	MaxKey Key = math.MaxInt64
)

var epoch = time.Unix(0, 0)

// KeyFromTime converts a time to a Key.
// Times before the epoch or beyond MaxKey yield ErrTimeInvalid.
func KeyFromTime(t time.Time) (Key, error) {
	if t.Before(epoch) {
		return 0, errors.Wrapf(ErrTimeInvalid, "%s is before the epoch", t.UTC())
	}
	if t.After(MaxKey.Time()) {
		return 0, errors.Wrapf(ErrTimeInvalid, "%s is after %s", t.UTC(), MaxKey.Time())
	}
	return Key(t.UnixNano()), nil
}

// Time is the UTC time denoted by k.
func (k Key) Time() time.Time {
	return time.Unix(0, int64(k)).UTC()
}

func (k Key) String() string {
	return strconv.FormatInt(int64(k), 10)
}

// ParseKey parses a filename as a Key.
// Only the canonical form produced by Key.String is accepted:
// decimal digits, no sign, no leading zeroes.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return 0, errors.New("empty key")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.Errorf("invalid key %q", s)
		}
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, errors.Errorf("non-canonical key %q", s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing key %q", s)
	}
	return Key(n), nil
}

// Interval is a pair of bounds for a range query.
// Both ends are inclusive.
// If Start is after End, results come in descending order.
type Interval struct {
	Start, End Key
}

// All is the interval containing every key, in ascending order.
func All() Interval {
	return Interval{Start: MinKey, End: MaxKey}
}

// Between produces the interval from start to end.
// Times before the epoch are treated as the epoch,
// and times beyond MaxKey as MaxKey.
func Between(start, end time.Time) Interval {
	return Interval{Start: boundKey(start), End: boundKey(end)}
}

func boundKey(t time.Time) Key {
	if t.Before(epoch) {
		return MinKey
	}
	if t.After(MaxKey.Time()) {
		return MaxKey
	}
	return Key(t.UnixNano())
}

// Descending tells whether results are produced in descending key order.
func (iv Interval) Descending() bool {
	return iv.Start > iv.End
}

// Bounds returns the lower and upper inclusive bounds of iv.
func (iv Interval) Bounds() (lo, hi Key) {
	if iv.Descending() {
		return iv.End, iv.Start
	}
	return iv.Start, iv.End
}

// Contains tells whether k is within iv.
func (iv Interval) Contains(k Key) bool {
	lo, hi := iv.Bounds()
	return lo <= k && k <= hi
}
