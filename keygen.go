package blobts

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Clock is a source of the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Generator issues strictly increasing Keys.
// It does not coordinate with other processes;
// collisions with other writers are resolved when files are written and pushed.
// A Generator is safe for concurrent use.
type Generator struct {
	clock Clock

	mu   sync.Mutex
	last Key // -1 until the first key is issued
}

// NewGenerator produces a Generator reading the current time from clock.
// A nil clock means SystemClock.
func NewGenerator(clock Clock) *Generator {
	if clock == nil {
		clock = SystemClock
	}
	return &Generator{clock: clock, last: -1}
}

// Next issues a key for the requested time,
// or for the current time if at is nil.
// The result is greater than every key previously issued by g:
// if the requested time is not, it is bumped to one nanosecond past the last key.
func (g *Generator) Next(at *time.Time) (Key, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next(at)
}

func (g *Generator) next(at *time.Time) (Key, error) {
	var t time.Time
	if at != nil {
		t = *at
	} else {
		t = g.clock.Now()
	}
	k, err := KeyFromTime(t)
	if err != nil {
		return 0, err
	}
	if k <= g.last {
		if g.last == MaxKey {
			return 0, errors.Wrap(ErrTimeInvalid, "key space exhausted")
		}
		k = g.last + 1
	}
	g.last = k
	return k, nil
}

// NextN issues n keys, in order, as if by n calls to Next.
// The ith key is for ats[i],
// or for the current time if ats[i] is nil or i >= len(ats).
func (g *Generator) NextN(n int, ats []*time.Time) ([]Key, error) {
	if len(ats) > n {
		return nil, errors.Errorf("%d times supplied for %d keys", len(ats), n)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	result := make([]Key, n)
	for i := range result {
		var at *time.Time
		if i < len(ats) {
			at = ats[i]
		}
		k, err := g.next(at)
		if err != nil {
			return nil, errors.Wrapf(err, "key %d", i)
		}
		result[i] = k
	}
	return result, nil
}

// Advance ensures every key issued hereafter is greater than past.
func (g *Generator) Advance(past Key) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if past > g.last {
		g.last = past
	}
}

// Last reports the most recently issued (or advanced-past) key.
// The boolean is false if there is none.
func (g *Generator) Last() (Key, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.last >= 0
}
