// Package debounce delays a value until it has stopped changing.
package debounce

import (
	"sync"
	"time"
)

// Debouncer settles on the latest value passed to Set once no newer value has
// arrived for the configured delay.
type Debouncer[T any] struct {
	delay     time.Duration
	afterFunc func(time.Duration) <-chan time.Time
	onUpdate  func(T)

	mutex      sync.Mutex
	generation uint64
	pending    chan struct{}
	value      T
	settled    bool
	closed     bool
	running    sync.WaitGroup
}

// New returns a debouncer. onUpdate, if not nil, is called with each settled
// value from the goroutine that waited out the delay.
func New[T any](delay time.Duration, afterFunc func(time.Duration) <-chan time.Time, onUpdate func(T)) *Debouncer[T] {
	return &Debouncer[T]{
		delay:     delay,
		afterFunc: afterFunc,
		onUpdate:  onUpdate,
	}
}

// Set discards any pending value and starts waiting for v to settle
func (d *Debouncer[T]) Set(v T) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return
	}

	if d.pending != nil {
		close(d.pending)
	}
	d.generation++
	generation := d.generation
	pending := make(chan struct{})
	d.pending = pending

	timer := d.afterFunc(d.delay)
	d.running.Add(1)
	go func() {
		defer d.running.Done()

		select {
		case <-pending:
			return
		case <-timer:
		}

		d.mutex.Lock()
		if d.closed || d.generation != generation {
			d.mutex.Unlock()
			return
		}
		d.value = v
		d.settled = true
		d.pending = nil
		d.mutex.Unlock()

		if d.onUpdate != nil {
			d.onUpdate(v)
		}
	}()
}

// Value returns the last settled value, and false if nothing has settled yet
func (d *Debouncer[T]) Value() (T, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.value, d.settled
}

// Close drops any value that has not settled yet and waits for a running
// onUpdate to return. Later calls to Set are ignored. Close must not be called
// from onUpdate.
func (d *Debouncer[T]) Close() {
	d.mutex.Lock()
	if !d.closed {
		d.closed = true
		if d.pending != nil {
			close(d.pending)
			d.pending = nil
		}
	}
	d.mutex.Unlock()

	d.running.Wait()
}
