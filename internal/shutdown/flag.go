// Package shutdown provides the write-once flag used to stop loops which
// do not consume from the task queue.
package shutdown

import (
	"sync"
	"sync/atomic"
)

// Flag is a boolean which can only go from false to true. It is safe for
// concurrent use and its zero value is ready to use.
type Flag struct {
	set      atomic.Bool
	once     sync.Once
	done     chan struct{}
	initOnce sync.Once
}

// Set raises the flag. Calling it more than once has no further effect.
func (f *Flag) Set() {
	f.once.Do(func() {
		f.set.Store(true)
		close(f.doneChan())
	})
}

// IsSet reports whether Set has been called. It never blocks.
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// Done returns a channel closed by Set. Sleepers select on it to wake up
// early.
func (f *Flag) Done() <-chan struct{} {
	return f.doneChan()
}

func (f *Flag) doneChan() chan struct{} {
	f.initOnce.Do(func() {
		f.done = make(chan struct{})
	})
	return f.done
}
