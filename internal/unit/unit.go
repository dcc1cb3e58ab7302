// Package unit runs a function on its own goroutine and makes any failure
// of that function observable by whoever joins it.
//
// A failure is either a non-nil error returned by the function or a panic
// raised inside it. Panics are recovered at the unit boundary together with
// the stack of the panicking goroutine and reported as *PanicError, so a
// failing unit never takes the whole process down and is never silently lost.
//
//	u := unit.Start(ctx, "failer", func(ctx context.Context) error {
//		panic(errBoom)
//	})
//	err := u.Join() // errors.Is(err, errBoom) == true
package unit

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/CZERTAINLY/poolsvc/internal/log"
)

// Func is the work executed by a Unit.
type Func func(ctx context.Context) error

// FailureFunc is called from the unit goroutine right after a failure has
// been captured. It must not block.
type FailureFunc func(u *Unit, err error)

var live atomic.Int64

// Live returns the number of units in the process which have been started
// and have not finished yet.
func Live() int64 {
	return live.Load()
}

type Unit struct {
	name      string
	g         errgroup.Group
	done      chan struct{}
	err       error
	joined    atomic.Bool
	onFailure FailureFunc
}

type Option func(*Unit)

// WithFailureHook registers fn to be notified about the captured failure.
// The failure is still returned by Join.
func WithFailureHook(fn FailureFunc) Option {
	return func(u *Unit) {
		u.onFailure = fn
	}
}

// Start runs fn on a new goroutine and returns immediately. Records logged
// with ctx by fn carry the unit name.
func Start(ctx context.Context, name string, fn Func, opts ...Option) *Unit {
	u := &Unit{
		name: name,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}

	ctx = log.ContextAttrs(ctx, slog.String("unit", name))
	live.Add(1)
	u.g.Go(func() error {
		defer close(u.done)
		defer live.Add(-1)
		u.err = u.run(ctx, fn)
		if u.err != nil && u.onFailure != nil {
			u.onFailure(u, u.err)
		}
		return u.err
	})
	return u
}

func (u *Unit) run(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Unit:  u.name,
				Value: r,
				Stack: debug.Stack(),
			}
		}
	}()
	return fn(ctx)
}

func (u *Unit) Name() string {
	return u.name
}

// Done returns a channel closed once the unit has finished.
func (u *Unit) Done() <-chan struct{} {
	return u.done
}

// Err returns the captured failure. It is only meaningful after Done is
// closed and, unlike Join, reports the failure on every call.
func (u *Unit) Err() error {
	select {
	case <-u.done:
		return u.err
	default:
		return nil
	}
}

// Join waits until the unit has finished. The first Join returns the
// captured failure unchanged, later calls return nil.
func (u *Unit) Join() error {
	err := u.g.Wait()
	if !u.joined.CompareAndSwap(false, true) {
		return nil
	}
	return err
}
