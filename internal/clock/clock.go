package clock

import (
	"sort"
	"time"
)

// Clock abstracts time so the scheduler and timer engine can be driven by a
// fake in tests. AfterFunc callbacks must run on the caller's event loop.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable deferred callback.
type Timer interface {
	Stop() bool
}

// Real is the system clock. Callbacks are handed to Post, which is expected
// to run them on the single application loop.
type Real struct {
	Post func(func())
}

func (Real) Now() time.Time {
	return time.Now()
}

func (r Real) AfterFunc(d time.Duration, f func()) Timer {
	if r.Post == nil {
		return time.AfterFunc(d, f)
	}
	return time.AfterFunc(d, func() { r.Post(f) })
}

// Fake is a manually advanced clock. Callbacks fire synchronously inside
// Advance/Set, in due-time order. It is not safe for concurrent use.
type Fake struct {
	now     time.Time
	seq     int
	pending []*fakeTimer
}

type fakeTimer struct {
	clock   *Fake
	at      time.Time
	seq     int
	f       func()
	stopped bool
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (c *Fake) Now() time.Time {
	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.pending = append(c.pending, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	t.clock.remove(t)
	return true
}

func (c *Fake) remove(t *fakeTimer) {
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, firing every callback that becomes
// due on the way. Callbacks armed while advancing fire too if they fall
// inside the window.
func (c *Fake) Advance(d time.Duration) {
	c.Set(c.now.Add(d))
}

// Set moves the clock to t, firing due callbacks. Moving backwards only
// changes Now.
func (c *Fake) Set(t time.Time) {
	for {
		next := c.nextDue(t)
		if next == nil {
			break
		}
		if next.at.After(c.now) {
			c.now = next.at
		}
		next.stopped = true
		c.remove(next)
		next.f()
	}
	c.now = t
}

// Jump moves the clock to t without firing anything, like a suspended
// process that wakes up later.
func (c *Fake) Jump(t time.Time) {
	c.now = t
}

// Pending returns the number of armed callbacks.
func (c *Fake) Pending() int {
	return len(c.pending)
}

// FireDue runs every callback already due at Now.
func (c *Fake) FireDue() {
	c.Set(c.now)
}

func (c *Fake) nextDue(limit time.Time) *fakeTimer {
	if len(c.pending) == 0 {
		return nil
	}
	sorted := make([]*fakeTimer, len(c.pending))
	copy(sorted, c.pending)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].at.Equal(sorted[j].at) {
			return sorted[i].seq < sorted[j].seq
		}
		return sorted[i].at.Before(sorted[j].at)
	})
	if sorted[0].at.After(limit) {
		return nil
	}
	return sorted[0]
}
