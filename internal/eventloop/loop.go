// Package eventloop runs tasks and timer callbacks one at a time on a single goroutine.
// Components that share the document, the tag cache or the panel session only touch
// them from inside a task, so they need no locks of their own.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when posting to a loop that has stopped.
var ErrClosed = errors.New("event loop closed")

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the callback was still pending.
	Stop() bool
}

// Scheduler queues work onto a single logical thread.
type Scheduler interface {
	// Post queues fn to run after the current task.
	Post(fn func())
	// AfterFunc runs fn on the loop once d has elapsed, unless stopped first.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop is the goroutine-backed Scheduler.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

// New creates a Loop whose queue holds up to buffer tasks before Post blocks.
func New(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Close stops the loop. Pending tasks are dropped.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
}

// Post queues fn. Posting to a closed loop is a no-op.
func (l *Loop) Post(fn func()) {
	if l.closed.Load() {
		return
	}
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	if l.closed.Load() {
		return ErrClosed
	}
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc schedules fn on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			// Stop may have been called on the loop after the runtime timer fired
			// but before this task ran.
			if t.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return t
}

type loopTimer struct {
	timer   *time.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return !t.stopped.Swap(true)
}
