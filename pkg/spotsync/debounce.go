package spotsync

import (
	"sync"
	"time"
)

// DefaultQuietWindow is how long movement must stop before a settle fires.
const DefaultQuietWindow = 350 * time.Millisecond

type stopper interface {
	Stop() bool
}

type afterFunc func(time.Duration, func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// Debouncer collapses a burst of notifications into one trailing call that
// carries the last value. Each Notify restarts the quiet window.
type Debouncer[T any] struct {
	mu      sync.Mutex
	quiet   time.Duration
	fn      func(T)
	after   afterFunc
	timer   stopper
	seq     uint64
	latest  T
	stopped bool
}

// NewDebouncer returns a debouncer calling fn after quiet has elapsed with no
// further notifications.
func NewDebouncer[T any](quiet time.Duration, fn func(T)) *Debouncer[T] {
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}
	return &Debouncer[T]{quiet: quiet, fn: fn, after: realAfterFunc}
}

// Notify records v and restarts the timer.
func (d *Debouncer[T]) Notify(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.latest = v
	d.seq++
	seq := d.seq
	d.timer = d.after(d.quiet, func() { d.fire(seq) })
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	// A timer that lost the race with Stop or a newer Notify is ignored.
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	v := d.latest
	d.timer = nil
	d.mu.Unlock()
	d.fn(v)
}

// Pending reports whether a settle is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending call. Later notifications are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
