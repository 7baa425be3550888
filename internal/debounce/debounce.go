// Package debounce coalesces bursts of values into a single delayed call.
package debounce

import (
	"sync"
	"time"
)

// Timer is the subset of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// Clock schedules f to run after d.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Option func(*config)

type config struct {
	clock Clock
}

// WithClock replaces the wall clock (for testing).
func WithClock(c Clock) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

// Debouncer calls fn with the latest pushed value once no push has happened
// for the configured delay.
type Debouncer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(T)
	clock   Clock
	timer   Timer
	seq     uint64
	pending T
	armed   bool
	stopped bool
}

func New[T any](delay time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	cfg := config{clock: realClock{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Debouncer[T]{
		delay: delay,
		fn:    fn,
		clock: cfg.clock,
	}
}

// Push records v as the latest value and restarts the quiet interval.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending = v
	d.armed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Flush fires immediately if a value is pending. It reports whether it fired.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	v, ok := d.take()
	d.mu.Unlock()

	if ok {
		d.fn(v)
	}
	return ok
}

// Pending reports whether a value is waiting for its quiet interval.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Stop discards any pending value. Later pushes are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.armed = false
	var zero T
	d.pending = zero
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	// A newer push or a flush superseded this timer.
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	v, ok := d.take()
	d.mu.Unlock()

	if ok {
		d.fn(v)
	}
}

// take must be called with mu held.
func (d *Debouncer[T]) take() (T, bool) {
	var zero T
	if !d.armed || d.stopped {
		return zero, false
	}
	v := d.pending
	d.pending = zero
	d.armed = false
	return v, true
}
