package ui

import (
	"sync"
	"time"
)

// DefaultSearchDelay is the quiet period of the search box.
const DefaultSearchDelay = 300 * time.Millisecond

// Debouncer delays fn until wait has passed without another Call, then runs
// it once with the last argument. Work already dispatched is not cancelled.
type Debouncer[T any] struct {
	mu    sync.Mutex
	wait  time.Duration
	fn    func(T)
	timer *time.Timer
	arg   T
}

func NewDebouncer[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, fn: fn}
}

// Call cancels the pending trigger, if any, and schedules a new one for arg.
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.arg = arg
	d.timer = time.AfterFunc(d.wait, func() { d.fn(arg) })
}

// Flush runs the pending trigger right away on the calling goroutine and
// reports whether there was one. A trigger whose timer already fired is
// not run again.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.timer == nil || !d.timer.Stop() {
		d.timer = nil
		d.mu.Unlock()
		return false
	}
	arg := d.arg
	d.timer = nil
	d.mu.Unlock()
	d.fn(arg)
	return true
}

// Stop drops the pending trigger. It reports whether one was pending.
func (d *Debouncer[T]) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}
